package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

// Pinger checks one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	dependencies map[string]Pinger
	logger       logging.Logger
	timeout      time.Duration
}

func NewHealthHandler(logger logging.Logger) *HealthHandler {
	return &HealthHandler{
		dependencies: make(map[string]Pinger),
		logger:       logger.Named("health-handler"),
		timeout:      3 * time.Second,
	}
}

// Register adds a named dependency to the readiness check.
func (h *HealthHandler) Register(name string, p Pinger) {
	h.dependencies[name] = p
}

// Liveness handles GET /healthz.  It answers as long as the process serves
// requests, without touching any dependency.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz.  Every registered dependency must answer
// within the probe timeout.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.dependencies))
	healthy := true
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed",
				logging.String("dependency", name),
				logging.Err(err))
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status": overall,
		"checks": checks,
	})
}
