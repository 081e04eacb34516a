package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/prometheus"
)

// MetricsMiddleware records per-request counters and latency histograms.
// The route template, not the concrete URL, is used as the path label to
// keep cardinality bounded.
type MetricsMiddleware struct {
	metrics *prometheus.AppMetrics
}

func NewMetricsMiddleware(metrics *prometheus.AppMetrics) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: metrics}
}

func (m *MetricsMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		active := m.metrics.HTTPActiveRequests.WithLabelValues(c.Request.Method)
		active.Inc()

		c.Next()

		active.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
