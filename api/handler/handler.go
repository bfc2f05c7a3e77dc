// Package handler implements the HTTP endpoints of the price-history API.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricehist/models"
	"github.com/use-agent/pricehist/scraper"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Extractor is the part of *scraper.Scraper the handlers depend on.
type Extractor interface {
	Resolve(raws []string) []models.InputItem
	Run(ctx context.Context, items []models.InputItem, progress scraper.ProgressFunc) *models.BatchReport
	Stats() models.SessionStats
}

var _ Extractor = (*scraper.Scraper)(nil)

// respondError writes a failed HistoryResponse with the status mapped from
// the error code.
func respondError(c *gin.Context, code, msg string) {
	c.JSON(mapErrorToStatus(code), models.HistoryResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: msg},
	})
}

func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCodeInternal, models.ErrCodeBrowserCrash:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// validInputs rejects blank entries.
func validInputs(inputs []string) bool {
	for _, in := range inputs {
		if strings.TrimSpace(in) == "" {
			return false
		}
	}
	return true
}
