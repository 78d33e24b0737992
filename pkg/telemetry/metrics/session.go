package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/session"
	"mercator-hq/ganymede/pkg/upstream"
)

// SessionMetrics tracks session-layer health and performance. It
// implements the manager's observer interface.
//
// Metrics:
//   - queries_total: terminal query results by tag
//   - query_attempts: attempts needed per query
//   - upstream_attempts_total: upstream attempts by outcome
//   - upstream_latency_seconds: upstream attempt latency by outcome
//   - breaker_open: breaker state (1=open)
//   - breaker_trips_total: breaker trips by reason
//   - account_rotations_total: account source rotations
type SessionMetrics struct {
	queries   *prometheus.CounterVec
	attempts  prometheus.Histogram
	upstream  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	trips     *prometheus.CounterVec
	rotations prometheus.Counter
}

// NewSessionMetrics creates and registers the session metric set.
func NewSessionMetrics(cfg config.MetricsConfig, registry *prometheus.Registry, breakerOpen func() bool) *SessionMetrics {
	attemptBuckets := cfg.AttemptBuckets
	if len(attemptBuckets) == 0 {
		attemptBuckets = []float64{1, 2, 3, 4, 5}
	}
	latencyBuckets := cfg.LatencyBuckets
	if len(latencyBuckets) == 0 {
		latencyBuckets = prometheus.DefBuckets
	}

	sm := &SessionMetrics{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queries_total",
				Help:      "Terminal query results by tag (empty tag means success)",
			},
			[]string{"tag"},
		),

		attempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "query_attempts",
				Help:      "Upstream attempts needed per query",
				Buckets:   attemptBuckets,
			},
		),

		upstream: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempts_total",
				Help:      "Upstream attempts by classified outcome",
			},
			[]string{"outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_latency_seconds",
				Help:      "Upstream attempt latency in seconds",
				Buckets:   latencyBuckets,
			},
			[]string{"outcome"},
		),

		trips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_trips_total",
				Help:      "Circuit breaker trips by reason",
			},
			[]string{"reason"},
		),

		rotations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "account_rotations_total",
				Help:      "Account source rotations",
			},
		),
	}

	registry.MustRegister(
		sm.queries,
		sm.attempts,
		sm.upstream,
		sm.latency,
		sm.trips,
		sm.rotations,
	)

	if breakerOpen != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_open",
				Help:      "Circuit breaker state (1=open, 0=closed)",
			},
			func() float64 {
				if breakerOpen() {
					return 1
				}
				return 0
			},
		))
	}

	return sm
}

// QueryCompleted records a terminal query result.
func (sm *SessionMetrics) QueryCompleted(tag session.Tag, attempts int, duration time.Duration) {
	label := string(tag)
	if label == "" {
		label = "success"
	}
	sm.queries.WithLabelValues(label).Inc()
	if attempts > 0 {
		sm.attempts.Observe(float64(attempts))
	}
}

// AttemptCompleted records one upstream attempt.
func (sm *SessionMetrics) AttemptCompleted(outcome upstream.Outcome, duration time.Duration) {
	sm.upstream.WithLabelValues(outcome.String()).Inc()
	sm.latency.WithLabelValues(outcome.String()).Observe(duration.Seconds())
}

// BreakerTripped records a breaker trip.
func (sm *SessionMetrics) BreakerTripped(cooldown time.Duration, reason string) {
	sm.trips.WithLabelValues(reason).Inc()
}

// AccountRotated records an account source rotation.
func (sm *SessionMetrics) AccountRotated(fromIndex, toIndex int) {
	sm.rotations.Inc()
}
