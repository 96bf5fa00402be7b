// Package metrics provides Prometheus metrics for the allocation engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by callers.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Manager owns every Prometheus collector of the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Lifecycle and ledger
	lifecycleOps      *prometheus.CounterVec
	trackedEmployees  prometheus.Gauge
	activeAllocations prometheus.Gauge
	allocatedCapacity prometheus.Gauge

	// Planning
	recommendations *prometheus.CounterVec
	optimizations   *prometheus.CounterVec
	solveLatency    *prometheus.HistogramVec
	solverNodes     prometheus.Histogram
	solverTimeouts  prometheus.Counter

	// Solve queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueRejected *prometheus.CounterVec
	workerCount   prometheus.Gauge
	jobLatency    prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var (
	mu             sync.RWMutex
	globalManager  *Manager            //nolint:gochecknoglobals // singleton metrics manager
	customRegistry *prometheus.Registry //nolint:gochecknoglobals // registry served on /metrics
)

func init() { //nolint:gochecknoinits // global metrics setup
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "allot",
		subsystem:        "engine",
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

// SetDefault replaces the manager used by the package-level recorders.
func SetDefault(m *Manager) error {
	if m == nil {
		return ErrNotInitialized
	}
	mu.Lock()
	globalManager = m
	mu.Unlock()
	return nil
}

func current() *Manager {
	mu.RLock()
	defer mu.RUnlock()
	return globalManager
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for all collectors
	auto := promauto.With(m.registry)

	m.lifecycleOps = auto.NewCounterVec(
		m.counterOpts("lifecycle_operations_total", "Lifecycle operations by operation and outcome kind"),
		[]string{"operation", "outcome"},
	)
	m.trackedEmployees = auto.NewGauge(m.gaugeOpts("ledger_employees", "Employees tracked by the capacity ledger"))
	m.activeAllocations = auto.NewGauge(m.gaugeOpts("ledger_active_allocations", "Proposed or confirmed allocations held by the ledger"))
	m.allocatedCapacity = auto.NewGauge(m.gaugeOpts("ledger_allocated_percent", "Sum of active allocation percentages across employees"))

	m.recommendations = auto.NewCounterVec(
		m.counterOpts("recommendations_total", "Recommendation requests by response status"),
		[]string{"status"},
	)
	m.optimizations = auto.NewCounterVec(
		m.counterOpts("optimizations_total", "Optimizer runs by mode and solve status"),
		[]string{"mode", "status"},
	)
	m.solveLatency = auto.NewHistogramVec(
		m.histogramOpts("solve_latency_milliseconds", "Optimizer wall time in milliseconds", m.histogramBuckets),
		[]string{"mode"},
	)
	m.solverNodes = auto.NewHistogram(m.histogramOpts(
		"solver_nodes", "Search nodes explored by the exact solver",
		prometheus.ExponentialBuckets(10, 4, 10),
	))
	m.solverTimeouts = auto.NewCounter(m.counterOpts("solver_timeouts_total", "Exact solves that fell back to the heuristic"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("solve_queue_size", "Pending optimization jobs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("solve_queue_capacity", "Capacity of the optimization job queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("solve_queue_enqueued_total", "Optimization jobs accepted by the queue"))
	m.queueRejected = auto.NewCounterVec(
		m.counterOpts("solve_queue_rejected_total", "Optimization jobs rejected by the queue"),
		[]string{"reason"},
	)
	m.workerCount = auto.NewGauge(m.gaugeOpts("solve_workers", "Running optimization workers"))
	m.jobLatency = auto.NewHistogram(m.histogramOpts(
		"solve_job_latency_milliseconds", "Time from dequeue to job completion in milliseconds", m.histogramBuckets,
	))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_total", "Errors by component and error kind"),
		[]string{"component", "kind"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// RecordLifecycleOperation counts one lifecycle operation; outcome is "ok" or an error kind.
func RecordLifecycleOperation(operation, outcome string) {
	current().lifecycleOps.WithLabelValues(operation, outcome).Inc()
}

// UpdateLedgerTotals publishes the ledger aggregate gauges.
func UpdateLedgerTotals(employees, activeAllocations int, allocatedPercent float64) {
	m := current()
	m.trackedEmployees.Set(float64(employees))
	m.activeAllocations.Set(float64(activeAllocations))
	m.allocatedCapacity.Set(allocatedPercent)
}

// RecordRecommendation counts a recommendation response by status.
func RecordRecommendation(status string) {
	current().recommendations.WithLabelValues(status).Inc()
}

// RecordOptimization counts an optimizer run and observes its wall time.
func RecordOptimization(mode, status string, latencyMs float64) {
	m := current()
	m.optimizations.WithLabelValues(mode, status).Inc()
	m.solveLatency.WithLabelValues(mode).Observe(latencyMs)
}

// RecordSolverNodes observes the node count of an exact search.
func RecordSolverNodes(nodes int64) {
	current().solverNodes.Observe(float64(nodes))
}

// RecordSolverTimeout counts an exact solve abandoned in favour of the heuristic.
func RecordSolverTimeout() {
	current().solverTimeouts.Inc()
}

// UpdateQueueSize sets the pending job gauge.
func UpdateQueueSize(size int) {
	current().queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	current().queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	current().queueEnqueued.Inc()
}

// RecordQueueRejected counts a rejected job by reason.
func RecordQueueRejected(reason string) {
	current().queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the running worker gauge.
func UpdateWorkerCount(count int) {
	current().workerCount.Set(float64(count))
}

// RecordJobLatency observes the processing time of one job.
func RecordJobLatency(latencyMs float64) {
	current().jobLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m := current()
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordError counts an error attributed to a component.
func RecordError(component, kind string) {
	current().errorsByComponent.WithLabelValues(component, kind).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	current().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	current().systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	current().systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry served on /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
