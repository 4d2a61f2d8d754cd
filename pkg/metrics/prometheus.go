// Package metrics provides Prometheus metrics for the ranking service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Manager owns every Prometheus collector of the ranking service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ordered-set store
	storeOps       *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
	storeTxWrites  prometheus.Histogram
	scanKeysPerOpn prometheus.Histogram

	// Engine
	mutations         *prometheus.CounterVec
	queries           *prometheus.CounterVec
	bestEffortFailure *prometheus.CounterVec
	topKLatency       *prometheus.HistogramVec
	topKSize          prometheus.Histogram

	// Resync and maintenance
	resyncs           *prometheus.CounterVec
	resyncDuration    prometheus.Histogram
	resyncLastSuccess prometheus.Gauge
	resyncUsers       prometheus.Gauge
	resyncEntities    prometheus.Gauge
	resyncSkipped     *prometheus.CounterVec
	forceClearedKeys  prometheus.Counter

	// Submission ingestion
	submissionsAccepted  prometheus.Counter
	submissionsDuplicate prometheus.Counter
	submissionsApplied   *prometheus.CounterVec
	scoringLatency       prometheus.Histogram

	// Queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps default Go collectors out of the exposition.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its collectors on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rank",
		subsystem:        "leaderboard",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// Enabled reports whether recording is on.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often gauges sampled by the service should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.storeOps = auto.NewCounterVec(m.counterOpts("store_operations_total", "Ordered-set store operations by op and status"), []string{"op", "status"})
	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_operation_latency_milliseconds", "Ordered-set store round-trip latency in milliseconds"), []string{"op"})
	m.storeTxWrites = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "store_transaction_commands",
		Help:    "Number of commands queued per store transaction",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
	m.scanKeysPerOpn = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "store_scan_batch_keys",
		Help:    "Keys returned per scan batch",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.mutations = auto.NewCounterVec(m.counterOpts("mutations_total", "Engine mutations by operation and status"), []string{"op", "status"})
	m.queries = auto.NewCounterVec(m.counterOpts("queries_total", "Engine queries by operation and status"), []string{"op", "status"})
	m.bestEffortFailure = auto.NewCounterVec(m.counterOpts("best_effort_failures_total", "Swallowed failures of advisory metadata writes"), []string{"op"})
	m.topKLatency = auto.NewHistogramVec(m.histogramOpts("topk_latency_milliseconds", "Top-K query latency including hydration"), []string{"scope"})
	m.topKSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "topk_result_size",
		Help:    "Entries returned per Top-K query",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	m.resyncs = auto.NewCounterVec(m.counterOpts("resyncs_total", "Resync runs by status"), []string{"status"})
	m.resyncDuration = auto.NewHistogram(m.histogramOpts("resync_duration_milliseconds", "Resync duration in milliseconds"))
	m.resyncLastSuccess = auto.NewGauge(m.gaugeOpts("resync_last_success_unix", "Unix timestamp of the last successful resync"))
	m.resyncUsers = auto.NewGauge(m.gaugeOpts("resync_users", "Users written by the last successful resync"))
	m.resyncEntities = auto.NewGauge(m.gaugeOpts("resync_entities", "Entity sets written by the last successful resync"))
	m.resyncSkipped = auto.NewCounterVec(m.counterOpts("resync_skipped_total", "On-demand resyncs not started"), []string{"reason"})
	m.forceClearedKeys = auto.NewCounter(m.counterOpts("force_cleared_keys_total", "Keys deleted by force-clear"))

	m.submissionsAccepted = auto.NewCounter(m.counterOpts("submissions_accepted_total", "Submissions accepted for processing"))
	m.submissionsDuplicate = auto.NewCounter(m.counterOpts("submissions_duplicate_total", "Submissions rejected as duplicates"))
	m.submissionsApplied = auto.NewCounterVec(m.counterOpts("submissions_applied_total", "Submissions applied to the leaderboard by outcome"), []string{"outcome"})
	m.scoringLatency = auto.NewHistogram(m.histogramOpts("scoring_latency_milliseconds", "Submission scoring latency in milliseconds"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current submission queue depth"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Submission queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Submissions enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Submissions dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Enqueue failures"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Running workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Per-submission processing latency"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Worker processing failures"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func on() bool { return globalManager.enabled }

// RecordStoreOp records one store round trip.
func RecordStoreOp(op string, err error, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.storeOps.WithLabelValues(op, status(err)).Inc()
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreTx records the size of a committed transaction.
func RecordStoreTx(commands int) {
	if on() {
		globalManager.storeTxWrites.Observe(float64(commands))
	}
}

// RecordScanBatch records the number of keys a scan page returned.
func RecordScanBatch(keys int) {
	if on() {
		globalManager.scanKeysPerOpn.Observe(float64(keys))
	}
}

// RecordMutation counts an engine mutation.
func RecordMutation(op string, err error) {
	if on() {
		globalManager.mutations.WithLabelValues(op, status(err)).Inc()
	}
}

// RecordQuery counts an engine query.
func RecordQuery(op string, err error) {
	if on() {
		globalManager.queries.WithLabelValues(op, status(err)).Inc()
	}
}

// RecordBestEffortFailure counts a swallowed metadata write failure.
func RecordBestEffortFailure(op string) {
	if on() {
		globalManager.bestEffortFailure.WithLabelValues(op).Inc()
	}
}

// RecordTopK records latency and size of a Top-K query.
func RecordTopK(scope string, size int, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.topKLatency.WithLabelValues(scope).Observe(latencyMs)
	globalManager.topKSize.Observe(float64(size))
}

// RecordResync records a resync outcome and, on success, its snapshot sizes.
func RecordResync(err error, latencyMs float64, users, entities int) {
	if !on() {
		return
	}
	globalManager.resyncs.WithLabelValues(status(err)).Inc()
	globalManager.resyncDuration.Observe(latencyMs)
	if err != nil {
		return
	}
	globalManager.resyncLastSuccess.Set(float64(time.Now().Unix()))
	globalManager.resyncUsers.Set(float64(users))
	globalManager.resyncEntities.Set(float64(entities))
}

// RecordResyncSkipped counts an on-demand resync that did not start.
func RecordResyncSkipped(reason string) {
	if on() {
		globalManager.resyncSkipped.WithLabelValues(reason).Inc()
	}
}

// AddForceClearedKeys adds to the force-clear deleted key counter.
func AddForceClearedKeys(n int) {
	if on() {
		globalManager.forceClearedKeys.Add(float64(n))
	}
}

// RecordSubmissionAccepted counts a submission accepted at the edge.
func RecordSubmissionAccepted() {
	if on() {
		globalManager.submissionsAccepted.Inc()
	}
}

// RecordSubmissionDuplicate counts a duplicate submission.
func RecordSubmissionDuplicate() {
	if on() {
		globalManager.submissionsDuplicate.Inc()
	}
}

// RecordSubmissionApplied counts a processed submission by outcome
// (first_solve, repeat, rejected, error).
func RecordSubmissionApplied(outcome string) {
	if on() {
		globalManager.submissionsApplied.WithLabelValues(outcome).Inc()
	}
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	if on() {
		globalManager.scoringLatency.Observe(latencyMs)
	}
}

// UpdateQueueSize sets the current queue depth.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue counts an enqueue.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError counts a failed enqueue.
func RecordQueueEnqueueError() {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records per-submission processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a worker failure.
func RecordWorkerError() {
	if on() {
		globalManager.workerErrors.Inc()
	}
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint counts an error by endpoint, method and type.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if on() {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// GetRegistry returns the registry the global manager registers on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
