package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "accident_dashboard"

// Metrics holds the Prometheus collectors for dashboard sessions and backend fetches.
type Metrics struct {
	SessionsActive prometheus.Gauge

	// Transition metrics.
	Transitions          *prometheus.CounterVec // labels: kind
	TransitionRejections *prometheus.CounterVec // labels: kind

	// Fetch metrics.
	Fetches       *prometheus.CounterVec   // labels: query={states,cities,analytics}, outcome={success,error,stale}
	FetchDuration *prometheus.HistogramVec // labels: query
	BackendCache  *prometheus.CounterVec   // labels: query, result={hit,miss}
	BreakerState  prometheus.Gauge         // 0 closed, 1 half-open, 2 open

	InteractionsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SessionsActive,
		m.Transitions,
		m.TransitionRejections,
		m.Fetches,
		m.FetchDuration,
		m.BackendCache,
		m.BreakerState,
		m.InteractionsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Dashboard sessions currently held in memory.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Applied navigation transitions by event kind.",
		}, []string{"kind"}),
		TransitionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_rejections_total",
			Help:      "Transitions rejected because they would break a selection invariant.",
		}, []string{"kind"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Backend fetches by query and outcome.",
		}, []string{"query", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Backend fetch duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"query"}),
		BackendCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_cache_total",
			Help:      "Backend response cache lookups by query and result.",
		}, []string{"query", "result"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Backend circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
		InteractionsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_published_total",
			Help:      "Interaction records written to the stream by outcome.",
		}, []string{"outcome"}),
	}
}
