// Package api serves the operational HTTP surface: health, metrics,
// statistics, and pattern control.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/postpilot/internal/archive"
	"github.com/jonesrussell/postpilot/internal/config"
	"github.com/jonesrussell/postpilot/internal/diversity"
	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/metrics"
	"github.com/jonesrussell/postpilot/internal/ratelimit"
	"github.com/jonesrussell/postpilot/internal/schedule"
)

// Deps carries the services the API reads from. Archive and Metrics may
// be nil; their routes return 404 when absent.
type Deps struct {
	Scheduler *schedule.Scheduler
	Diversity *diversity.Service
	Limiter   *ratelimit.Limiter
	Archive   *archive.Repository
	Metrics   *metrics.Tracker
	Logger    logger.Logger
}

type handler struct {
	deps Deps
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	h := handler{deps: deps}

	router.GET("/health", h.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stats/posting", h.postingStats)
		v1.GET("/stats/diversity", h.diversityStats)
		v1.GET("/stats/ratelimit", h.rateLimitStats)
		v1.PUT("/pattern", h.adjustPattern)
		v1.GET("/history/posts", h.postHistory)
		if deps.Archive != nil {
			v1.GET("/archive/summary", h.archiveSummary)
			v1.GET("/archive/recent", h.archiveRecent)
		}
	}

	return router
}

// NewServer wraps the router in an http.Server with the configured
// timeouts.
func NewServer(cfg *config.Config, deps Deps) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
