package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ApplicationsRegistered prometheus.Counter
	Operations             *prometheus.CounterVec
	OperationDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ApplicationsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "apihub_applications_registered_total",
			Help: "Total number of applications registered",
		}),
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apihub_application_operations_total",
			Help: "Application operations by outcome (ok, partial, error)",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apihub_application_operation_duration_seconds",
			Help:    "Duration of application operations including scope reconciliation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementRegistered() {
	m.ApplicationsRegistered.Inc()
}

func (m *Metrics) ObserveOperation(operation, outcome string, start time.Time) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
