package prometheus

import (
	"strconv"
	"time"

	"github.com/civicplan/planschedule/internal/application/schedule"
)

// Namespace is the metric namespace for all service metrics.
const Namespace = "planschedule"

// Histogram buckets.
var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	SchedulingDurationBuckets  = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	ChangedRowsBuckets         = []float64{0, 1, 2, 5, 10, 20, 50, 100}
)

// AppMetrics holds the service's metric instruments.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Scheduling engine
	SchedulingRunsTotal    CounterVec
	SchedulingRunDuration  HistogramVec
	SchedulingChangedRows  HistogramVec
	ValidationFailuresTotal CounterVec

	// Infrastructure
	DBPoolOpen      GaugeVec
	DBPoolInUse     GaugeVec
	CacheHitsTotal  CounterVec
	CacheMissesTotal CounterVec
	ErrorsTotal     CounterVec
}

// NewAppMetrics registers all instruments with the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.SchedulingRunsTotal = collector.RegisterCounter("scheduling_runs_total", "Scheduling runs", "kind")
	m.SchedulingRunDuration = collector.RegisterHistogram("scheduling_run_duration_seconds", "Scheduling run duration", SchedulingDurationBuckets, "kind")
	m.SchedulingChangedRows = collector.RegisterHistogram("scheduling_changed_rows", "Deadline rows changed per run", ChangedRowsBuckets, "kind")
	m.ValidationFailuresTotal = collector.RegisterCounter("validation_failures_total", "Rejected user date edits")

	m.DBPoolOpen = collector.RegisterGauge("db_pool_open", "Open database connections", "db")
	m.DBPoolInUse = collector.RegisterGauge("db_pool_in_use", "In-use database connections", "db")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "module")

	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts one error against its module prefix.
func (m *AppMetrics) RecordError(module string) {
	m.ErrorsTotal.WithLabelValues(module).Inc()
}

// EngineMetrics adapts AppMetrics to the scheduling service's metrics
// contract.
type EngineMetrics struct {
	app *AppMetrics
}

var _ schedule.Metrics = (*EngineMetrics)(nil)

// NewEngineMetrics wraps app for the scheduling service.
func NewEngineMetrics(app *AppMetrics) *EngineMetrics {
	return &EngineMetrics{app: app}
}

func (m *EngineMetrics) SchedulingRun(initial bool, changed int, duration time.Duration) {
	kind := "update"
	if initial {
		kind = "initial"
	}
	m.app.SchedulingRunsTotal.WithLabelValues(kind).Inc()
	m.app.SchedulingRunDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.app.SchedulingChangedRows.WithLabelValues(kind).Observe(float64(changed))
}

func (m *EngineMetrics) ValidationFailure() {
	m.app.ValidationFailuresTotal.WithLabelValues().Inc()
}
