package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/pricehist/models"
)

func sampleReport() *models.BatchReport {
	r := &models.BatchReport{}
	r.Add(&models.ExtractionResult{
		Ticker:  "D05.SI",
		Input:   models.InputItem{RawValue: "D05.SI"},
		Status:  models.StatusSuccess,
		Records: make([]models.PriceRecord, 3),
	})
	r.Add(&models.ExtractionResult{
		Ticker: "ZZZ.SI",
		Input:  models.InputItem{RawValue: "ZZZ.SI"},
		Status: models.StatusFailed,
		Error:  &models.ErrorDetail{Code: models.ErrCodeEmptyResult, Message: "no rows"},
	})
	return r
}

func TestDeliver_SignsBody(t *testing.T) {
	const secret = "s3cret"
	var gotSig string
	var gotEvent struct {
		Type  string       `json:"type"`
		JobID string       `json:"job_id"`
		Data  BatchSummary `json:"data"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		if gotSig != Sign(body, secret) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.Unmarshal(body, &gotEvent)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(secret, nil)
	event := NewBatchCompleted("job-1", sampleReport(), time.Unix(1700000000, 0))
	if err := n.Deliver(context.Background(), srv.URL, event); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if gotEvent.Type != EventBatchCompleted || gotEvent.JobID != "job-1" {
		t.Errorf("unexpected event %+v", gotEvent)
	}
	if gotEvent.Data.Total != 2 || gotEvent.Data.Succeeded != 1 || gotEvent.Data.Items[0].Records != 3 {
		t.Errorf("unexpected summary %+v", gotEvent.Data)
	}
}

func TestDeliver_NoSecretNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SignatureHeader) != "" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	n := NewNotifier("", nil)
	if err := n.Deliver(context.Background(), srv.URL, &Event{Type: EventBatchCompleted}); err != nil {
		t.Errorf("Deliver: %v", err)
	}
}

func TestDeliverRetry_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("", nil)
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}

	if err := n.DeliverRetry(context.Background(), srv.URL, &Event{Type: EventBatchCompleted}); err != nil {
		t.Fatalf("DeliverRetry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDeliverRetry_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier("", nil)
	n.delays = []time.Duration{0, time.Millisecond}

	if err := n.DeliverRetry(context.Background(), srv.URL, &Event{}); err == nil {
		t.Error("expected an error after all retries fail")
	}
}
