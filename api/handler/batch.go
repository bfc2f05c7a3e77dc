package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricehist/models"
	"github.com/use-agent/pricehist/webhook"
)

// BatchOptions carries the collaborators of the batch endpoints.
type BatchOptions struct {
	// Ctx bounds background jobs; cancel it on shutdown.
	Ctx      context.Context
	Jobs     *JobStore
	Notifier *webhook.Notifier

	// DefaultWebhook is used when a request names no webhook_url.
	DefaultWebhook string
}

// PostBatch returns a handler for POST /api/v1/batch/history. The job runs
// in the background; progress is readable through GetBatch.
func PostBatch(ex Extractor, opts BatchOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.ErrCodeInvalidInput, err.Error())
			return
		}
		if !validInputs(req.Inputs) {
			respondError(c, models.ErrCodeInvalidInput, "inputs must not be blank")
			return
		}

		items := ex.Resolve(req.Inputs)
		job := opts.Jobs.Create(len(items))

		hook := req.WebhookURL
		if hook == "" {
			hook = opts.DefaultWebhook
		}
		go runBatch(opts, ex, job.ID, items, hook)

		c.JSON(http.StatusAccepted, models.BatchResponse{
			ID:     job.ID,
			Status: job.Status,
			Total:  job.Total,
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch(jobs *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.HistoryResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		c.JSON(http.StatusOK, models.BatchStatusResponse{
			ID:        job.ID,
			Status:    job.Status,
			Completed: job.Completed,
			Total:     job.Total,
			Report:    job.Report,
		})
	}
}

func runBatch(opts BatchOptions, ex Extractor, id string, items []models.InputItem, hook string) {
	ctx := opts.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	partial := &models.BatchReport{StartedAt: time.Now()}
	report := ex.Run(ctx, items, func(done int, r *models.ExtractionResult) {
		partial.Add(r)
		snapshot := cloneReport(partial)
		opts.Jobs.Update(id, func(j *models.BatchJob) {
			j.Completed = done
			j.Report = snapshot
		})
	})

	status := JobCompleted
	switch {
	case report.Fatal():
		status = JobFailed
	case len(report.Failed) > 0:
		status = JobPartial
	}
	opts.Jobs.Update(id, func(j *models.BatchJob) {
		j.Status = status
		j.Completed = len(report.Results)
		j.Report = report
	})

	slog.Info("batch job finished",
		"id", id,
		"status", status,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"total", len(items),
	)

	if hook != "" && opts.Notifier != nil {
		opts.Notifier.DeliverAsync(hook, webhook.NewBatchCompleted(id, report, time.Now()))
	}
}

// cloneReport copies the slices of r so the copy can be read while r keeps
// growing.
func cloneReport(r *models.BatchReport) *models.BatchReport {
	c := *r
	c.Results = append([]*models.ExtractionResult(nil), r.Results...)
	c.Failed = append([]string(nil), r.Failed...)
	return &c
}
