package swrcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics is the engine's observability sink. Implementations must be
// safe for concurrent use and must not block the calling goroutine for any
// meaningful length of time — the engine calls these inline on the
// foreground path.
type CacheMetrics interface {
	// RecordHit tracks a lookup that was satisfied from the backend.
	// status is one of "fresh", "stale", "refresh_started", "refresh_completed".
	RecordHit(key string, status string)

	// RecordMiss tracks a lookup that found nothing in the backend.
	RecordMiss(key string)

	// RecordError tracks a compute, decode, or backend failure.
	RecordError(key string, err error)

	// RecordLatency tracks how long an operation took. op identifies which
	// one: "lock_wait", "compute", "get_or_create".
	RecordLatency(op string, duration time.Duration)
}

// NoOpMetrics discards everything. It is the engine's default when no
// CacheMetrics is supplied.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordHit(key string, status string)        {}
func (NoOpMetrics) RecordMiss(key string)                      {}
func (NoOpMetrics) RecordError(key string, err error)          {}
func (NoOpMetrics) RecordLatency(op string, duration time.Duration) {}

// PromMetrics implements CacheMetrics on top of client_golang. Counters are
// partitioned by status/op rather than by key: per-key cardinality would
// make the resulting metric unbounded under a large keyspace.
type PromMetrics struct {
	hits     *prometheus.CounterVec
	misses   prometheus.Counter
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewPromMetrics constructs a PromMetrics and registers its collectors on
// reg. Pass prometheus.DefaultRegisterer to use the global registry.
func NewPromMetrics(reg prometheus.Registerer, namespace string) *PromMetrics {
	m := &PromMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups satisfied from the backend, by status.",
		}, []string{"status"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that found nothing in the backend.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Compute, decode, or backend failures, by error type.",
		}, []string{"type"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_operation_duration_seconds",
			Help:      "Operation latency in seconds, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.hits, m.misses, m.errors, m.latency)
	return m
}

func (m *PromMetrics) RecordHit(key string, status string) {
	m.hits.WithLabelValues(status).Inc()
}

func (m *PromMetrics) RecordMiss(key string) {
	m.misses.Inc()
}

func (m *PromMetrics) RecordError(key string, err error) {
	m.errors.WithLabelValues(errorTypeLabel(err)).Inc()
}

func (m *PromMetrics) RecordLatency(op string, duration time.Duration) {
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// errorTypeLabel collapses an error into a small, bounded label set so the
// errors counter's cardinality stays flat regardless of message content.
func errorTypeLabel(err error) string {
	switch {
	case err == nil:
		return "none"
	case isCorruptionError(err):
		return "corruption"
	case isComputeError(err):
		return "compute"
	case isBackendError(err):
		return "backend"
	default:
		return "other"
	}
}

func isCorruptionError(err error) bool {
	_, ok := err.(*CorruptionError)
	return ok
}

func isComputeError(err error) bool {
	_, ok := err.(*ComputeError)
	return ok
}

func isBackendError(err error) bool {
	_, ok := err.(*BackendError)
	return ok
}
