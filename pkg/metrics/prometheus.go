// Package metrics provides Prometheus metrics for the boxscore ingestion service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Reconciliation
	sweepsTotal   *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	eventsTotal   *prometheus.CounterVec
	ledgerSize    prometheus.Gauge

	// Snapshot store
	snapshotsTotal *prometheus.CounterVec
	snapshotCount  prometheus.Gauge

	// Caches
	scheduleCacheTotal *prometheus.CounterVec
	recentWindowTotal  *prometheus.CounterVec

	// Upstream
	upstreamRequests   *prometheus.CounterVec
	upstreamLatency    *prometheus.HistogramVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	warmupAttempts     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "boxscore",
		subsystem:        "ingest",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}

	m.sweepsTotal = counterVec("sweeps_total", "Reconciliation sweeps by outcome", "outcome")
	m.sweepDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sweep_duration_milliseconds",
		Help:        "Wall time of a reconciliation sweep in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	})
	m.eventsTotal = counterVec("events_total", "Completed events seen by the reconciler, by result", "result")
	m.ledgerSize = gauge("ledger_entries", "Number of events recorded as fully reconciled")

	m.snapshotsTotal = counterVec("snapshots_total", "Snapshot writes and skips by source", "source", "result")
	m.snapshotCount = gauge("snapshots", "Number of stored stat snapshots")

	m.scheduleCacheTotal = counterVec("schedule_cache_total", "Schedule cache reads by result", "result")
	m.recentWindowTotal = counterVec("recent_window_total", "Recent window reads by freshness result", "result")

	m.upstreamRequests = counterVec("upstream_requests_total", "Upstream requests by endpoint and outcome", "endpoint", "outcome")
	m.upstreamLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "upstream_latency_milliseconds",
		Help:        "Upstream request latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint"})
	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "circuit_breaker_state",
		Help:        "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		ConstLabels: constLabels,
	}, []string{"name"})
	m.breakerTransitions = counterVec("circuit_breaker_transitions_total", "Circuit breaker state transitions", "name", "from", "to")
	m.warmupAttempts = counterVec("warmup_attempts_total", "Startup warm-up attempts by outcome", "name", "outcome")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = counterVec("http_errors_total", "HTTP responses with a 4xx or 5xx status by error type and severity", "endpoint", "method", "error_type", "severity")

	m.systemMemoryUsage = gauge("system_memory_bytes", "Current heap allocation in bytes")
	m.systemGoroutineCount = gauge("system_goroutines", "Current number of goroutines")
}

// GetRegistry returns the registry the global manager publishes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RecordSweep counts a sweep by outcome: completed, skipped_overlap or failed.
func RecordSweep(outcome string) {
	if globalManager.enabled {
		globalManager.sweepsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveSweepDuration records a sweep's wall time.
func ObserveSweepDuration(ms float64) {
	if globalManager.enabled {
		globalManager.sweepDuration.Observe(ms)
	}
}

// RecordEvent counts a completed event by reconciliation result.
func RecordEvent(result string) {
	if globalManager.enabled {
		globalManager.eventsTotal.WithLabelValues(result).Inc()
	}
}

// UpdateLedgerSize sets the ledger size gauge.
func UpdateLedgerSize(n int64) {
	if globalManager.enabled {
		globalManager.ledgerSize.Set(float64(n))
	}
}

// RecordSnapshot counts a snapshot write or skip by source (reconcile, refresh).
func RecordSnapshot(source, result string) {
	if globalManager.enabled {
		globalManager.snapshotsTotal.WithLabelValues(source, result).Inc()
	}
}

// UpdateSnapshotCount sets the stored snapshot gauge.
func UpdateSnapshotCount(n int) {
	if globalManager.enabled {
		globalManager.snapshotCount.Set(float64(n))
	}
}

// RecordScheduleCache counts a schedule cache read: hit, refreshed, stale_served, fallback or unavailable.
func RecordScheduleCache(result string) {
	if globalManager.enabled {
		globalManager.scheduleCacheTotal.WithLabelValues(result).Inc()
	}
}

// RecordRecentWindow counts a recent window read: fresh, refreshed or refresh_failed.
func RecordRecentWindow(result string) {
	if globalManager.enabled {
		globalManager.recentWindowTotal.WithLabelValues(result).Inc()
	}
}

// RecordUpstreamRequest counts an upstream request by endpoint and outcome.
func RecordUpstreamRequest(endpoint, outcome string) {
	if globalManager.enabled {
		globalManager.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	}
}

// ObserveUpstreamLatency records upstream request latency.
func ObserveUpstreamLatency(endpoint string, ms float64) {
	if globalManager.enabled {
		globalManager.upstreamLatency.WithLabelValues(endpoint).Observe(ms)
	}
}

// UpdateBreakerState sets the circuit breaker state gauge.
func UpdateBreakerState(name string, state float64) {
	if globalManager.enabled {
		globalManager.breakerState.WithLabelValues(name).Set(state)
	}
}

// RecordBreakerTransition counts a circuit breaker state change.
func RecordBreakerTransition(name, from, to string) {
	if globalManager.enabled {
		globalManager.breakerTransitions.WithLabelValues(name, from, to).Inc()
	}
}

// RecordWarmupAttempt counts a warm-up attempt by outcome.
func RecordWarmupAttempt(name, outcome string) {
	if globalManager.enabled {
		globalManager.warmupAttempts.WithLabelValues(name, outcome).Inc()
	}
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordHTTPError records an HTTP response that carried an error status.
func RecordHTTPError(endpoint, method, errorType, severity string) {
	if globalManager.enabled {
		globalManager.httpErrors.WithLabelValues(endpoint, method, errorType, severity).Inc()
	}
}

// UpdateSystemMemoryUsage updates the system memory usage metric.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount updates the system goroutine count metric.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}
