package filter

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricEvaluationsTotal = "filter_evaluations_total"
)

// Verdict label values.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
)

// Metrics contains Prometheus metrics for filter evaluation.
type Metrics struct {
	evaluations *prometheus.CounterVec
}

// NewMetrics creates the collectors, unregistered; call Register to attach
// them to a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEvaluationsTotal,
				Help: "Total number of per-building filter evaluations by verdict",
			},
			[]string{"verdict"},
		),
	}
}

// Register registers all collectors with the given Prometheus registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.evaluations)
}

func (m *Metrics) observeVerdict(pass bool) {
	verdict := VerdictFail
	if pass {
		verdict = VerdictPass
	}
	m.evaluations.WithLabelValues(verdict).Inc()
}
