package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricehist/cache"
	"github.com/use-agent/pricehist/models"
)

// History returns a handler for POST /api/v1/history.
//
// Flow:
//  1. Bind and validate the request.
//  2. Serve inputs from the cache when max_age_ms allows it.
//  3. Run the remaining inputs as one batch on the shared browser.
//  4. Merge both in input order. 200 when any input succeeded, else 502
//     with the report attached.
func History(ex Extractor, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.HistoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.ErrCodeInvalidInput, err.Error())
			return
		}
		if !validInputs(req.Inputs) {
			respondError(c, models.ErrCodeInvalidInput, "inputs must not be blank")
			return
		}

		items := ex.Resolve(req.Inputs)
		maxAge := time.Duration(req.MaxAge) * time.Millisecond

		results := make([]*models.ExtractionResult, len(items))
		var hits []string
		var misses []int
		for i, item := range items {
			if cc != nil {
				if r, ok := cc.Get(cache.Key(item.RawValue), maxAge); ok {
					results[i] = r
					hits = append(hits, item.RawValue)
					continue
				}
			}
			misses = append(misses, i)
		}

		if len(misses) > 0 {
			pending := make([]models.InputItem, len(misses))
			for j, idx := range misses {
				pending[j] = items[idx]
			}
			run := ex.Run(c.Request.Context(), pending, nil)
			for j, idx := range misses {
				results[idx] = run.Results[j]
				if cc != nil {
					cc.Set(cache.Key(items[idx].RawValue), run.Results[j])
				}
			}
		}

		report := &models.BatchReport{StartedAt: start}
		for _, r := range results {
			report.Add(r)
		}
		report.FinishedAt = time.Now()

		resp := models.HistoryResponse{
			Success:   !report.Fatal(),
			Report:    report,
			CacheHits: hits,
			TotalMs:   time.Since(start).Milliseconds(),
		}
		if report.Fatal() {
			resp.Error = &models.ErrorDetail{Code: failureCode(report), Message: "no input produced any records"}
			c.JSON(http.StatusBadGateway, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// failureCode is the shared code of all failures, or NAVIGATION_FAILED
// when they differ.
func failureCode(report *models.BatchReport) string {
	code := ""
	for _, r := range report.Results {
		if r.Error == nil {
			continue
		}
		if code == "" {
			code = r.Error.Code
		} else if code != r.Error.Code {
			return models.ErrCodeNavigation
		}
	}
	if code == "" {
		return models.ErrCodeInternal
	}
	return code
}
