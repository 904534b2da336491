// Package metrics provides Prometheus metrics for the tierlens insight service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeInsufficient = "insufficient_data"
	OutcomeError        = "error"
)

var iterationBuckets = []float64{10, 25, 50, 100, 200, 300, 400, 500, 1000}

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// analysis pipeline
	analyses              *prometheus.CounterVec
	analysisLatency       prometheus.Histogram
	factorizationLatency  prometheus.Histogram
	factorizationIters    prometheus.Histogram
	matrixRows            prometheus.Gauge
	matrixColumns         prometheus.Gauge
	collaboratorFailures  *prometheus.CounterVec
	rejectedLargeMatrices prometheus.Counter

	// memo cache
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheInvalidations prometheus.Counter
	cacheStaleWrites   prometheus.Counter
	cacheSize          prometheus.Gauge

	// background jobs
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueRejected prometheus.Counter
	jobs          *prometheus.CounterVec
	jobLatency    prometheus.Histogram
	workersActive prometheus.Gauge

	// http
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /healthz

func init() { //nolint:gochecknoinits // global manager setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tierlens",
		subsystem:        "insight",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		enabled:          true,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.analyses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "analyses_total",
		Help: "Analyses run, by outcome",
	}, []string{"outcome"})
	m.analysisLatency = m.histogram("analysis_latency_milliseconds", "End-to-end analysis latency in milliseconds", m.histogramBuckets)
	m.factorizationLatency = m.histogram("factorization_latency_milliseconds", "Factorization latency in milliseconds", m.histogramBuckets)
	m.factorizationIters = m.histogram("factorization_iterations", "Multiplicative update iterations per factorization", iterationBuckets)
	m.matrixRows = m.gauge("matrix_rows", "Rows of the most recently built ratings matrix")
	m.matrixColumns = m.gauge("matrix_columns", "Columns of the most recently built ratings matrix")
	m.collaboratorFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "collaborator_failures_total",
		Help: "Collaborator lookups that failed and degraded to defaults",
	}, []string{"collaborator"})
	m.rejectedLargeMatrices = m.counter("matrix_rejected_total", "Analyses refused because the matrix exceeded a size cap")

	m.cacheHits = m.counter("rating_cache_hits_total", "Ranking rating cache hits")
	m.cacheMisses = m.counter("rating_cache_misses_total", "Ranking rating cache misses")
	m.cacheInvalidations = m.counter("rating_cache_invalidations_total", "Ranking rating cache invalidations")
	m.cacheStaleWrites = m.counter("rating_cache_stale_writes_total", "Cache fills dropped because an invalidation raced them")
	m.cacheSize = m.gauge("rating_cache_entries", "Entries held by the ranking rating cache")

	m.queueSize = m.gauge("job_queue_size", "Analysis jobs waiting in the queue")
	m.queueCapacity = m.gauge("job_queue_capacity", "Analysis job queue capacity")
	m.queueRejected = m.counter("job_queue_rejected_total", "Analysis jobs rejected because the queue was full")
	m.jobs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "jobs_total",
		Help: "Analysis jobs finished, by status",
	}, []string{"status"})
	m.jobLatency = m.histogram("job_latency_milliseconds", "Time from job submission to completion in milliseconds", m.histogramBuckets)
	m.workersActive = m.gauge("workers_active", "Workers currently running an analysis job")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// RecordAnalysis counts one analysis with the given outcome and latency.
func (m *Manager) RecordAnalysis(outcome string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
	m.analysisLatency.Observe(latencyMs)
}

// RecordFactorization records the cost of one factorization.
func (m *Manager) RecordFactorization(latencyMs float64, iterations int) {
	if !m.enabled {
		return
	}
	m.factorizationLatency.Observe(latencyMs)
	m.factorizationIters.Observe(float64(iterations))
}

// UpdateMatrixShape records the dimensions of the latest ratings matrix.
func (m *Manager) UpdateMatrixShape(rows, columns int) {
	if !m.enabled {
		return
	}
	m.matrixRows.Set(float64(rows))
	m.matrixColumns.Set(float64(columns))
}

// RecordCollaboratorFailure counts a degraded collaborator lookup.
func (m *Manager) RecordCollaboratorFailure(collaborator string) {
	if m.enabled {
		m.collaboratorFailures.WithLabelValues(collaborator).Inc()
	}
}

// RecordMatrixRejected counts an analysis refused by a size cap.
func (m *Manager) RecordMatrixRejected() {
	if m.enabled {
		m.rejectedLargeMatrices.Inc()
	}
}

// RecordCacheLookup counts a memo cache hit or miss.
func (m *Manager) RecordCacheLookup(hit bool) {
	if !m.enabled {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// RecordCacheInvalidation counts an explicit invalidation.
func (m *Manager) RecordCacheInvalidation() {
	if m.enabled {
		m.cacheInvalidations.Inc()
	}
}

// RecordCacheStaleWrite counts a fill discarded after a racing invalidation.
func (m *Manager) RecordCacheStaleWrite() {
	if m.enabled {
		m.cacheStaleWrites.Inc()
	}
}

// UpdateCacheSize sets the memo cache entry gauge.
func (m *Manager) UpdateCacheSize(size int) {
	if m.enabled {
		m.cacheSize.Set(float64(size))
	}
}

// UpdateQueueSize sets the pending job gauge.
func (m *Manager) UpdateQueueSize(size int) {
	if m.enabled {
		m.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the job queue capacity gauge.
func (m *Manager) UpdateQueueCapacity(capacity int) {
	if m.enabled {
		m.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueRejected counts a job refused by a full queue.
func (m *Manager) RecordQueueRejected() {
	if m.enabled {
		m.queueRejected.Inc()
	}
}

// RecordJob counts a finished job and its latency.
func (m *Manager) RecordJob(status string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
	m.jobLatency.Observe(latencyMs)
}

// AddActiveWorkers moves the active worker gauge by delta.
func (m *Manager) AddActiveWorkers(delta int) {
	if m.enabled {
		m.workersActive.Add(float64(delta))
	}
}

// RecordHTTPRequest counts one HTTP request and its latency.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystem records process memory and goroutine counts.
func (m *Manager) UpdateSystem(memoryBytes uint64, goroutines int) {
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(memoryBytes))
	m.systemGoroutineCount.Set(float64(goroutines))
}

// Package-level helpers backed by the global manager.

// RecordAnalysis counts one analysis on the global manager.
func RecordAnalysis(outcome string, latencyMs float64) {
	globalManager.RecordAnalysis(outcome, latencyMs)
}

// RecordFactorization records one factorization on the global manager.
func RecordFactorization(latencyMs float64, iterations int) {
	globalManager.RecordFactorization(latencyMs, iterations)
}

func UpdateMatrixShape(rows, columns int) { globalManager.UpdateMatrixShape(rows, columns) }

func RecordCollaboratorFailure(collaborator string) {
	globalManager.RecordCollaboratorFailure(collaborator)
}

func RecordMatrixRejected() { globalManager.RecordMatrixRejected() }

func RecordCacheLookup(hit bool) { globalManager.RecordCacheLookup(hit) }

func RecordCacheInvalidation() { globalManager.RecordCacheInvalidation() }

func RecordCacheStaleWrite() { globalManager.RecordCacheStaleWrite() }

func UpdateCacheSize(size int) { globalManager.UpdateCacheSize(size) }

func UpdateQueueSize(size int) { globalManager.UpdateQueueSize(size) }

func UpdateQueueCapacity(capacity int) { globalManager.UpdateQueueCapacity(capacity) }

func RecordQueueRejected() { globalManager.RecordQueueRejected() }

func RecordJob(status string, latencyMs float64) { globalManager.RecordJob(status, latencyMs) }

func AddActiveWorkers(delta int) { globalManager.AddActiveWorkers(delta) }

func UpdateSystem(memoryBytes uint64, goroutines int) {
	globalManager.UpdateSystem(memoryBytes, goroutines)
}

// RecordHTTPRequest counts one HTTP request on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// GetRegistry returns the registry the global manager reports to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
