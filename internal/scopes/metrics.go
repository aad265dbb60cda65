package scopes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for scope reconciliation.
type Metrics struct {
	Runs          *prometheus.CounterVec
	ScopesAdded   *prometheus.CounterVec
	ScopesRemoved *prometheus.CounterVec
	RunDuration   prometheus.Histogram
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apihub_scope_fix_environment_runs_total",
			Help: "Per-environment scope reconciliations, labeled by outcome (unchanged, changed, failed)",
		}, []string{"environment", "outcome"}),
		ScopesAdded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apihub_scopes_added_total",
			Help: "Scopes granted to credentials by reconciliation",
		}, []string{"environment"}),
		ScopesRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apihub_scopes_removed_total",
			Help: "Scopes revoked from credentials by reconciliation",
		}, []string{"environment"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "apihub_scope_fix_duration_seconds",
			Help:    "Latency of a full scope reconciliation across environments",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveEnvironment(r EnvResult) {
	outcome := "unchanged"
	switch {
	case r.Failure != nil:
		outcome = "failed"
	case r.Changed():
		outcome = "changed"
	}
	env := r.Environment.String()
	m.Runs.WithLabelValues(env, outcome).Inc()
	m.ScopesAdded.WithLabelValues(env).Add(float64(len(r.Added)))
	m.ScopesRemoved.WithLabelValues(env).Add(float64(len(r.Removed)))
}

func (m *Metrics) ObserveRun(seconds float64) {
	m.RunDuration.Observe(seconds)
}

