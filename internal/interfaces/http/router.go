// Package http assembles the gin route tree and the HTTP server around it.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/prometheus"
	"github.com/civicplan/planschedule/internal/interfaces/http/handlers"
	"github.com/civicplan/planschedule/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies required
// to construct the complete route tree.  Nil middleware entries are skipped,
// which keeps tests free to wire only what they exercise.
type RouterConfig struct {
	ScheduleHandler *handlers.ScheduleHandler
	DateTypeHandler *handlers.DateTypeHandler
	HealthHandler   *handlers.HealthHandler

	PrivilegeMiddleware *middleware.PrivilegeMiddleware
	CORSMiddleware      *middleware.CORSMiddleware
	LoggingMiddleware   *middleware.LoggingMiddleware
	MetricsMiddleware   *middleware.MetricsMiddleware

	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter constructs the route tree: public probe endpoints, the metrics
// exposition, and the versioned scheduling API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if cfg.LoggingMiddleware != nil {
		r.Use(cfg.LoggingMiddleware.Handler())
	}
	if cfg.MetricsMiddleware != nil {
		r.Use(cfg.MetricsMiddleware.Handler())
	}
	if cfg.CORSMiddleware != nil {
		r.Use(cfg.CORSMiddleware.Handler())
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}

	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.PrivilegeMiddleware != nil {
		api.Use(cfg.PrivilegeMiddleware.Handler())
	}
	registerScheduleRoutes(api, cfg.ScheduleHandler)
	registerDateTypeRoutes(api, cfg.DateTypeHandler)

	return r
}

func registerScheduleRoutes(r *gin.RouterGroup, h *handlers.ScheduleHandler) {
	if h == nil {
		return
	}
	projects := r.Group("/projects")
	projects.POST("/recalculate", h.RecalculateAll)
	projects.GET("/:id/schedule", h.GetSchedule)
	projects.POST("/:id/recalculate", h.Recalculate)
	projects.POST("/:id/schedule/preview", h.Preview)
	projects.PUT("/:id/deadlines/:deadline", h.SetDate)
	projects.POST("/:id/deadlines/:deadline/validate", h.Validate)
	projects.GET("/:id/deadlines/:deadline/explain", h.Explain)
}

func registerDateTypeRoutes(r *gin.RouterGroup, h *handlers.DateTypeHandler) {
	if h == nil {
		return
	}
	r.GET("/datetypes/:id/dates", h.ListDates)
}
