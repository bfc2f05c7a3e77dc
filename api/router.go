package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricehist/api/handler"
	"github.com/use-agent/pricehist/api/middleware"
	"github.com/use-agent/pricehist/cache"
	"github.com/use-agent/pricehist/config"
)

// Deps are the long-lived collaborators shared by the handlers.
type Deps struct {
	Extractor handler.Extractor
	Cache     *cache.Cache
	Limiters  *middleware.Limiters
	Batch     handler.BatchOptions
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring checks always work.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Extractor, d.StartTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	if d.Limiters != nil {
		protected.Use(middleware.RateLimit(d.Limiters))
	}

	protected.POST("/history", handler.History(d.Extractor, d.Cache))
	protected.POST("/batch/history", handler.PostBatch(d.Extractor, d.Batch))
	protected.GET("/batch/:id", handler.GetBatch(d.Batch.Jobs))

	return r
}
