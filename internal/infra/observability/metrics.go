package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the vendor BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration     *prometheus.HistogramVec
	externalErrors      *prometheus.CounterVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	guardDecisions      *prometheus.CounterVec
	stageSubmissions    *prometheus.CounterVec
	statusChanges       *prometheus.CounterVec
	optimisticRollbacks prometheus.Counter
	realtimeEvents      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pocketshop_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketshop_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketshop_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketshop_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		guardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketshop_guard_decisions_total",
				Help: "Route guard decisions by outcome.",
			},
			[]string{"decision"},
		),
		stageSubmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketshop_stage_submissions_total",
				Help: "Onboarding stage submissions by stage and result.",
			},
			[]string{"stage", "result"},
		),
		statusChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketshop_order_status_changes_total",
				Help: "Order status change attempts by result.",
			},
			[]string{"result"},
		),
		optimisticRollbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pocketshop_optimistic_rollbacks_total",
				Help: "Optimistic board updates rolled back after a failed remote call.",
			},
		),
		realtimeEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketshop_realtime_events_total",
				Help: "Realtime change-feed events received by type.",
			},
			[]string{"event_type"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrGuardDecision increments the guard decision counter.
func (m *Metrics) IncrGuardDecision(decision string) {
	m.guardDecisions.WithLabelValues(decision).Inc()
}

// IncrStageSubmission increments the stage submission counter.
func (m *Metrics) IncrStageSubmission(stage, result string) {
	m.stageSubmissions.WithLabelValues(stage, result).Inc()
}

// IncrStatusChange increments the order status change counter.
func (m *Metrics) IncrStatusChange(result string) {
	m.statusChanges.WithLabelValues(result).Inc()
}

// IncrOptimisticRollback increments the rollback counter.
func (m *Metrics) IncrOptimisticRollback() {
	m.optimisticRollbacks.Inc()
}

// IncrRealtimeEvent increments the realtime event counter.
func (m *Metrics) IncrRealtimeEvent(eventType string) {
	m.realtimeEvents.WithLabelValues(eventType).Inc()
}

// BoardSnapshot is a point-in-time view of board-related counters,
// served by GET /v1/metrics/board for the dashboard's debug panel.
type BoardSnapshot struct {
	StatusChangeSuccess float64 `json:"statusChangeSuccess"`
	StatusChangeFailure float64 `json:"statusChangeFailure"`
	OptimisticRollbacks float64 `json:"optimisticRollbacks"`
	RealtimeInserts     float64 `json:"realtimeInserts"`
	RealtimeUpdates     float64 `json:"realtimeUpdates"`
}

// GetBoardSnapshot gathers current counter values from the registry.
// Prometheus counters expose cumulative values.
func (m *Metrics) GetBoardSnapshot() *BoardSnapshot {
	return &BoardSnapshot{
		StatusChangeSuccess: getCounterValue(m.statusChanges, "success"),
		StatusChangeFailure: getCounterValue(m.statusChanges, "failure"),
		OptimisticRollbacks: getPlainCounterValue(m.optimisticRollbacks),
		RealtimeInserts:     getCounterValue(m.realtimeEvents, "INSERT"),
		RealtimeUpdates:     getCounterValue(m.realtimeEvents, "UPDATE"),
	}
}

func getCounterValue(vec *prometheus.CounterVec, labels ...string) float64 {
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}
