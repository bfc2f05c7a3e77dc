package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricehist/models"
)

// Health returns a handler for GET /api/v1/health. Status is "busy" while
// a batch holds the browser.
func Health(ex Extractor, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := ex.Stats()

		status := "healthy"
		if stats.Busy {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Session: stats,
			Version: Version,
		})
	}
}
