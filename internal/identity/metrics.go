package identity

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "apihub/pkg/domain"
	"apihub/pkg/platform/circuit"
)

type Metrics struct {
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	BreakerState *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers on reg; tests pass a fresh registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apihub_identity_calls_total",
			Help: "Identity system calls by environment, operation and outcome",
		}, []string{"environment", "operation", "outcome"}),
		CallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apihub_identity_call_duration_seconds",
			Help:    "Latency of identity system calls that reached the network",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"environment", "operation"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "apihub_identity_breaker_state",
			Help: "Circuit breaker state per environment (0 closed, 1 open, 2 half open)",
		}, []string{"environment"}),
	}
}

func (m *Metrics) ObserveCall(env id.EnvironmentID, op Operation, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		if isBreakerOpen(err) {
			outcome = "breaker_open"
		}
	}
	m.Calls.WithLabelValues(env.String(), string(op), outcome).Inc()
	if outcome != "breaker_open" {
		m.CallDuration.WithLabelValues(env.String(), string(op)).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) SetBreakerState(env id.EnvironmentID, state circuit.State) {
	m.BreakerState.WithLabelValues(env.String()).Set(float64(state))
}
