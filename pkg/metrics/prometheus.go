// Package metrics provides Prometheus metrics for the skill estimation service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes tracked by RecordSubmission.
const (
	SubmissionAccepted     = "accepted"
	SubmissionRejected     = "rejected"
	SubmissionBackpressure = "backpressure"
	SubmissionApplied      = "applied"
	SubmissionDuplicate    = "duplicate"
)

// Manager owns all Prometheus collectors of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Estimation
	estimationRuns     prometheus.Counter
	estimationDuration prometheus.Histogram
	estimationPasses   prometheus.Gauge
	estimationConverge prometheus.Gauge
	rosterPlayers      prometheus.Gauge
	rosterEvents       prometheus.Gauge

	// Submissions and recompute worker
	submissions      *prometheus.CounterVec
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	recomputeBatches prometheus.Histogram

	// Archive
	archiveErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

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

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mccskill",
		subsystem:        "estimator",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.estimationRuns = m.counter("runs_total", "Total number of completed estimation runs")
	m.estimationDuration = m.histogram("run_duration_milliseconds",
		"Wall time of one estimation run in milliseconds",
		[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000})
	m.estimationPasses = m.gauge("last_run_passes", "Refinement passes executed by the last run")
	m.estimationConverge = m.gauge("last_run_converged", "1 if the last run stopped on tolerance, else 0")
	m.rosterPlayers = m.gauge("roster_players", "Players in the current roster")
	m.rosterEvents = m.gauge("roster_events", "Events per player in the current roster")

	m.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "submissions_total",
		Help: "Result submissions by outcome",
	}, []string{"status"})
	m.queueSize = m.gauge("queue_size", "Submissions waiting for the recompute worker")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued submissions")
	m.recomputeBatches = m.histogram("recompute_batch_size",
		"Submissions applied per recompute",
		[]float64{1, 2, 5, 10, 25, 50, 100, 250, 500})

	m.archiveErrors = m.counter("archive_errors_total", "Failed attempts to archive a run")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "errors_total",
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordEstimation records a finished run.
func RecordEstimation(durationMs float64, passes int, converged bool) {
	globalManager.estimationRuns.Inc()
	globalManager.estimationDuration.Observe(durationMs)
	globalManager.estimationPasses.Set(float64(passes))
	if converged {
		globalManager.estimationConverge.Set(1)
	} else {
		globalManager.estimationConverge.Set(0)
	}
}

// UpdateRoster sets the roster size gauges.
func UpdateRoster(players, events int) {
	globalManager.rosterPlayers.Set(float64(players))
	globalManager.rosterEvents.Set(float64(events))
}

// RecordSubmission counts a submission outcome.
func RecordSubmission(status string) error {
	switch status {
	case SubmissionAccepted, SubmissionRejected, SubmissionBackpressure, SubmissionApplied, SubmissionDuplicate:
		globalManager.submissions.WithLabelValues(status).Inc()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordRecomputeBatch records how many submissions one recompute applied.
func RecordRecomputeBatch(size int) {
	globalManager.recomputeBatches.Observe(float64(size))
}

// RecordArchiveError counts a failed archive write.
func RecordArchiveError() {
	globalManager.archiveErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
