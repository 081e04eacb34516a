package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

// RequestIDHeader carries the request correlation ID.  An incoming value is
// propagated; otherwise one is generated.
const RequestIDHeader = "X-Request-Id"

// LoggingMiddleware emits one structured log line per request.
type LoggingMiddleware struct {
	logger logging.Logger
}

func NewLoggingMiddleware(log logging.Logger) *LoggingMiddleware {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &LoggingMiddleware{logger: log}
}

func (m *LoggingMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		c.Next()

		fields := []logging.Field{
			logging.String("request_id", requestID),
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(start)),
			logging.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			m.logger.Error("HTTP request", fields...)
		case c.Writer.Status() >= 400:
			m.logger.Warn("HTTP request", fields...)
		default:
			m.logger.Info("HTTP request", fields...)
		}
	}
}
