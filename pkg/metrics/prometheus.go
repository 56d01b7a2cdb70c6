// Package metrics provides Prometheus metrics for the ladder leaderboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are millisecond buckets sized around the sub-100ms read target.
var latencyBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000} //nolint:gochecknoglobals // shared bucket layout

// Manager manages all Prometheus metrics for the ladder service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Submission path
	submissions   *prometheus.CounterVec
	submitLatency prometheus.Histogram

	// Fast ranking store
	admissions       *prometheus.CounterVec
	fallbackRanks    prometheus.Counter
	rankSetSize      prometheus.Gauge
	rankSetOpLatency *prometheus.HistogramVec
	trims            *prometheus.CounterVec
	trimEvicted      prometheus.Counter

	// Read path
	pageCache          *prometheus.CounterVec
	ledgerQueryLatency *prometheus.HistogramVec

	// Write-behind
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueRejected     prometheus.Counter
	workerCount       prometheus.Gauge
	persisted         prometheus.Counter
	persistFailures   *prometheus.CounterVec
	persistLatency    prometheus.Histogram
	bootstrapDuration prometheus.Gauge
	bootstrapMembers  prometheus.Gauge

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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ladder",
		subsystem:        "leaderboard",
		histogramBuckets: latencyBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.submissions = m.counterVec("submissions_total", "Score submissions by outcome", "outcome")
	m.submitLatency = m.histogram("submit_latency_milliseconds", "Latency of the ranking core submit path")

	m.admissions = m.counterVec("rankset_admissions_total", "Ranked set admission decisions", "decision")
	m.fallbackRanks = m.counter("fallback_ranks_total", "Ranks resolved from durable storage")
	m.rankSetSize = m.gauge("rankset_size", "Members currently held in the ranked set")
	m.rankSetOpLatency = m.histogramVec("rankset_op_latency_milliseconds", "Fast ranking store operation latency", "op")
	m.trims = m.counterVec("rankset_trims_total", "Trim runs by result", "result")
	m.trimEvicted = m.counter("rankset_trim_evicted_total", "Members evicted by trimming")

	m.pageCache = m.counterVec("page_cache_total", "Leaderboard page cache events", "event")
	m.ledgerQueryLatency = m.histogramVec("ledger_query_latency_milliseconds", "Durable ledger query latency", "query")

	m.queueSize = m.gauge("queue_size", "Pending write-behind jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Write-behind queue capacity")
	m.queueRejected = m.counter("queue_rejected_total", "Write-behind jobs rejected for backpressure")
	m.workerCount = m.gauge("worker_count", "Write-behind workers")
	m.persisted = m.counter("persisted_events_total", "Score events persisted to the ledger")
	m.persistFailures = m.counterVec("persist_failures_total", "Write-behind persistence failures", "kind")
	m.persistLatency = m.histogram("persist_latency_milliseconds", "Write-behind persistence latency")
	m.bootstrapDuration = m.gauge("bootstrap_duration_milliseconds", "Duration of the last ranked set rebuild")
	m.bootstrapMembers = m.gauge("bootstrap_members", "Members loaded by the last ranked set rebuild")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSubmission counts a submission with its outcome label.
func RecordSubmission(outcome string) {
	globalManager.submissions.WithLabelValues(outcome).Inc()
}

// RecordSubmitLatency records ranking core submit latency in milliseconds.
func RecordSubmitLatency(latencyMs float64) {
	globalManager.submitLatency.Observe(latencyMs)
}

// RecordAdmission counts an admission decision ("admitted" or "rejected").
func RecordAdmission(decision string) {
	globalManager.admissions.WithLabelValues(decision).Inc()
}

// RecordFallbackRank counts a rank resolved from durable storage.
func RecordFallbackRank() {
	globalManager.fallbackRanks.Inc()
}

// UpdateRankSetSize sets the ranked set size gauge.
func UpdateRankSetSize(size int64) {
	globalManager.rankSetSize.Set(float64(size))
}

// RecordRankSetOpLatency records a fast store operation latency.
func RecordRankSetOpLatency(op string, latencyMs float64) {
	globalManager.rankSetOpLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordTrim counts a trim run and the members it evicted.
func RecordTrim(result string, evicted int) {
	globalManager.trims.WithLabelValues(result).Inc()
	if evicted > 0 {
		globalManager.trimEvicted.Add(float64(evicted))
	}
}

// RecordPageCache counts a page cache event ("hit", "miss", "purge", "error").
func RecordPageCache(event string) {
	globalManager.pageCache.WithLabelValues(event).Inc()
}

// RecordLedgerQueryLatency records a ledger query latency.
func RecordLedgerQueryLatency(query string, latencyMs float64) {
	globalManager.ledgerQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a job rejected by the queue.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordPersisted counts an event persisted to the ledger and its latency.
func RecordPersisted(latencyMs float64) {
	globalManager.persisted.Inc()
	globalManager.persistLatency.Observe(latencyMs)
}

// RecordPersistFailure counts a persistence failure ("retry" or "dropped").
func RecordPersistFailure(kind string) {
	globalManager.persistFailures.WithLabelValues(kind).Inc()
}

// RecordBootstrap records the last ranked set rebuild.
func RecordBootstrap(members int, durationMs float64) {
	globalManager.bootstrapMembers.Set(float64(members))
	globalManager.bootstrapDuration.Set(durationMs)
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
