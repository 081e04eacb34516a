package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: Namespace}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewMetricsCollector_RequiresNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestRecordHTTPRequest(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.RecordHTTPRequest("GET", "/v1/projects/:id/schedule", 200, 42*time.Millisecond)
	m.RecordHTTPRequest("GET", "/v1/projects/:id/schedule", 200, 17*time.Millisecond)
	m.RecordHTTPRequest("POST", "/v1/projects/:id/deadlines/:deadline", 403, 5*time.Millisecond)

	body := scrape(t, c)
	assert.Contains(t, body, `planschedule_http_requests_total{method="GET",path="/v1/projects/:id/schedule",status_code="200"} 2`)
	assert.Contains(t, body, `status_code="403"} 1`)
}

func TestEngineMetrics(t *testing.T) {
	c := newTestCollector(t)
	m := NewEngineMetrics(NewAppMetrics(c))

	m.SchedulingRun(true, 4, 120*time.Millisecond)
	m.SchedulingRun(false, 0, 30*time.Millisecond)
	m.ValidationFailure()

	body := scrape(t, c)
	assert.Contains(t, body, `planschedule_scheduling_runs_total{kind="initial"} 1`)
	assert.Contains(t, body, `planschedule_scheduling_runs_total{kind="update"} 1`)
	assert.Contains(t, body, `planschedule_validation_failures_total 1`)
}

func TestRegister_DuplicateNameReturnsSameInstrument(t *testing.T) {
	c := newTestCollector(t)

	first := c.RegisterCounter("errors_total", "Total errors", "module")
	second := c.RegisterCounter("errors_total", "Total errors", "module")

	first.WithLabelValues("SCHED").Inc()
	second.WithLabelValues("SCHED").Inc()

	body := scrape(t, c)
	assert.Contains(t, body, `planschedule_errors_total{module="SCHED"} 2`)
	assert.Equal(t, 1, strings.Count(body, "# HELP planschedule_errors_total"))
}

func TestRegister_TypeMismatchFallsBackToNoop(t *testing.T) {
	c := newTestCollector(t)

	c.RegisterCounter("mixed_metric", "first registration", "l")
	gauge := c.RegisterGauge("mixed_metric", "second registration with a different type", "l")

	// The no-op fallback must absorb writes without panicking.
	gauge.WithLabelValues("x").Set(1)
}
