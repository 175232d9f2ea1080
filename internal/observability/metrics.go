package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the acquisition layer.
type Metrics struct {
	TierAttempts    *prometheus.CounterVec   // labels: domain, tier, outcome={success,failure}
	Exhausted       *prometheus.CounterVec   // labels: domain
	CacheLookups    *prometheus.CounterVec   // labels: domain, result={hit,miss,stale}
	ResolveDuration *prometheus.HistogramVec // labels: domain
	Refetches       *prometheus.CounterVec   // labels: domain
	StaleDiscards   *prometheus.CounterVec   // labels: domain
	ForecastFailed  prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		TierAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envdata",
			Name:      "tier_attempts_total",
			Help:      "Fallback tier attempts by domain, tier and outcome.",
		}, []string{"domain", "tier", "outcome"}),
		Exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envdata",
			Name:      "exhausted_total",
			Help:      "Resolutions where every configured tier failed.",
		}, []string{"domain"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envdata",
			Name:      "cache_lookups_total",
			Help:      "Freshness cache lookups by domain and result.",
		}, []string{"domain", "result"}),
		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "envdata",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of a full fallback resolution.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"domain"}),
		Refetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envdata",
			Name:      "binding_refetches_total",
			Help:      "Refetch calls issued on reactive bindings.",
		}, []string{"domain"}),
		StaleDiscards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envdata",
			Name:      "binding_stale_discards_total",
			Help:      "Completions dropped because a newer refetch or teardown superseded them.",
		}, []string{"domain"}),
		ForecastFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "envdata",
			Name:      "forecast_failures_total",
			Help:      "Forecast fetches that failed while current weather succeeded.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.TierAttempts,
		m.Exhausted,
		m.CacheLookups,
		m.ResolveDuration,
		m.Refetches,
		m.StaleDiscards,
		m.ForecastFailed,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
