// Package webhook delivers signed batch notifications over HTTP.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/pricehist/models"
)

// EventBatchCompleted is sent once a batch job has processed every input.
const EventBatchCompleted = "batch.completed"

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Pricehist-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string      `json:"type"`
	JobID     string      `json:"job_id"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// BatchSummary is the Data of a batch.completed event. Records are not
// included; clients fetch them from the batch status endpoint.
type BatchSummary struct {
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    []string           `json:"failed,omitempty"`
	Items     []BatchSummaryItem `json:"items"`
}

// BatchSummaryItem summarizes one input of the batch.
type BatchSummaryItem struct {
	Input    string              `json:"input"`
	Ticker   string              `json:"ticker"`
	Status   models.Status       `json:"status"`
	Records  int                 `json:"records"`
	Degraded bool                `json:"degraded,omitempty"`
	Error    *models.ErrorDetail `json:"error,omitempty"`
}

// NewBatchCompleted builds the batch.completed event for report.
func NewBatchCompleted(jobID string, report *models.BatchReport, now time.Time) *Event {
	summary := BatchSummary{
		Total:     len(report.Results),
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Items:     make([]BatchSummaryItem, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		summary.Items = append(summary.Items, BatchSummaryItem{
			Input:    r.Input.RawValue,
			Ticker:   r.Ticker,
			Status:   r.Status,
			Records:  len(r.Records),
			Degraded: r.Degraded,
			Error:    r.Error,
		})
	}
	return &Event{
		Type:      EventBatchCompleted,
		JobID:     jobID,
		Timestamp: now.Unix(),
		Data:      summary,
	}
}

// Sign returns the signature header value of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier posts events with retries.
type Notifier struct {
	client *http.Client
	secret string
	delays []time.Duration
	logger *slog.Logger
}

// NewNotifier creates a Notifier. Retry intervals are 1s, 5s, 30s.
func NewNotifier(secret string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client: &http.Client{Timeout: 10 * time.Second},
		secret: secret,
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		logger: logger,
	}
}

// Deliver sends a webhook event synchronously.
func (n *Notifier) Deliver(ctx context.Context, url string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pricehist-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverRetry retries Deliver on the configured intervals until it
// succeeds, the intervals run out or ctx ends.
func (n *Notifier) DeliverRetry(ctx context.Context, url string, event *Event) error {
	var err error
	for attempt, delay := range n.delays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = n.Deliver(attemptCtx, url, event)
		cancel()
		if err == nil {
			n.logger.Info("webhook delivered",
				"url", url, "event", event.Type, "job_id", event.JobID, "attempt", attempt+1)
			return nil
		}
		n.logger.Warn("webhook delivery failed",
			"url", url, "event", event.Type, "job_id", event.JobID, "attempt", attempt+1, "error", err)
	}
	n.logger.Error("webhook delivery exhausted all retries",
		"url", url, "event", event.Type, "job_id", event.JobID)
	return err
}

// DeliverAsync runs DeliverRetry in the background.
func (n *Notifier) DeliverAsync(url string, event *Event) {
	go func() {
		_ = n.DeliverRetry(context.Background(), url, event)
	}()
}
