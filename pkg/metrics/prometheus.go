// Package metrics provides Prometheus metrics for the mapcheck service.
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

// Manager manages all Prometheus metrics for the mapcheck service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Diagnosis metrics
	checksTotal       prometheus.Counter
	checksSkipped     *prometheus.CounterVec
	diagnosticsByType *prometheus.CounterVec
	checkLatency      prometheus.Histogram

	// Debug-file lookup metrics
	lookupOutcomes *prometheus.CounterVec
	lookupLatency  prometheus.Histogram

	// Telemetry collaborators
	errorsCaptured  *prometheus.CounterVec
	analyticsEvents *prometheus.CounterVec

	// Debug-file registry
	debugFilesStored  prometheus.Counter
	debugFilesDeleted prometheus.Counter
	storeQueryLatency prometheus.Histogram

	// Result store
	resultsStored prometheus.Gauge
	staleResults  prometheus.Counter

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// In-flight guard
	inFlightDuplicates prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mapcheck",
		subsystem:        "diagnostics",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
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

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval returns how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.checksTotal = m.counter("checks_total", "Total number of mapping checks run")
	m.checksSkipped = m.counterVec("checks_skipped_total", "Checks that ended without analysis", "reason")
	m.diagnosticsByType = m.counterVec("diagnostics_total", "Diagnostics emitted by type", "type")
	m.checkLatency = m.histogram("check_latency_milliseconds", "Duration of a full check in milliseconds", m.histogramBuckets)

	m.lookupOutcomes = m.counterVec("lookup_total", "Debug-file lookups by outcome", "outcome")
	m.lookupLatency = m.histogram("lookup_latency_milliseconds", "Debug-file lookup latency in milliseconds", m.histogramBuckets)

	m.errorsCaptured = m.counterVec("errors_captured_total", "Errors reported to the telemetry collaborator", "component")
	m.analyticsEvents = m.counterVec("analytics_events_total", "Analytics events recorded", "event", "error_type")

	m.debugFilesStored = m.counter("debug_files_stored_total", "Debug files registered")
	m.debugFilesDeleted = m.counter("debug_files_deleted_total", "Debug files removed")
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Debug-file store query latency in milliseconds", m.histogramBuckets)

	m.resultsStored = m.gauge("results_stored", "Diagnosis results currently held")
	m.staleResults = m.counter("stale_results_total", "Results dropped because a newer revision was stored")

	m.queueSize = m.gauge("queue_size", "Current size of the check queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the check queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (0-1)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Enqueue failures by reason", "reason")

	m.workerCount = m.gauge("worker_count", "Number of check workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker job failures")

	m.inFlightDuplicates = m.counter("in_flight_duplicates_total", "Submissions rejected because the event was already being checked")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.customLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Diagnosis

// RecordCheck increments the checks counter and observes its latency.
func RecordCheck(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.checksTotal.Inc()
	globalManager.checkLatency.Observe(latencyMs)
}

// RecordCheckSkipped counts a check that ended early for the given reason.
func RecordCheckSkipped(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.checksSkipped.WithLabelValues(reason).Inc()
}

// RecordDiagnostic counts an emitted diagnostic by type.
func RecordDiagnostic(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.diagnosticsByType.WithLabelValues(kind).Inc()
}

// Lookup

// RecordLookup counts a debug-file lookup outcome and observes its latency.
func RecordLookup(outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.lookupOutcomes.WithLabelValues(outcome).Inc()
	globalManager.lookupLatency.Observe(latencyMs)
}

// Telemetry

// RecordErrorCaptured counts an error sent to the telemetry reporter.
func RecordErrorCaptured(component string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorsCaptured.WithLabelValues(component).Inc()
}

// RecordAnalyticsEvent counts an analytics event for one error type.
func RecordAnalyticsEvent(event, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.analyticsEvents.WithLabelValues(event, errorType).Inc()
}

// Debug-file registry

// RecordDebugFileStored counts a registered debug file.
func RecordDebugFileStored() {
	if !globalManager.enabled {
		return
	}
	globalManager.debugFilesStored.Inc()
}

// RecordDebugFileDeleted counts a removed debug file.
func RecordDebugFileDeleted() {
	if !globalManager.enabled {
		return
	}
	globalManager.debugFilesDeleted.Inc()
}

// RecordStoreQueryLatency observes a registry query latency.
func RecordStoreQueryLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// Result store

// UpdateResultsStored sets the number of held results.
func UpdateResultsStored(count int) {
	globalManager.resultsStored.Set(float64(count))
}

// RecordStaleResult counts a result rejected for an older revision.
func RecordStaleResult() {
	if !globalManager.enabled {
		return
	}
	globalManager.staleResults.Inc()
}

// Queue

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts an enqueue failure by reason.
func RecordQueueEnqueueError(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Workers

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if !globalManager.enabled {
		return
	}
	globalManager.workerErrors.Inc()
}

// RecordInFlightDuplicate counts a submission for an event already in flight.
func RecordInFlightDuplicate() {
	if !globalManager.enabled {
		return
	}
	globalManager.inFlightDuplicates.Inc()
}

// HTTP

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// SetEnabled toggles recording on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
