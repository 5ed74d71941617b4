package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricEventsTotal       = "engine_events_total"
	MetricPassDuration      = "engine_pass_duration_seconds"
	MetricReadinessAttempts = "engine_readiness_attempts_total"
)

// Event type constants for labeling.
const (
	EventApplyFilter   = "apply_filter"
	EventHover         = "hover"
	EventSelect        = "select"
	EventSetViewport   = "set_viewport"
	EventSetColorize   = "set_colorize"
	EventSetChoropleth = "set_choropleth"
)

// Metrics contains Prometheus metrics for engine event processing.
// All operations are thread-safe.
type Metrics struct {
	eventsTotal       *prometheus.CounterVec
	passDuration      *prometheus.HistogramVec
	readinessAttempts prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEventsTotal,
				Help: "Total number of processed UI events by type",
			},
			[]string{"type"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPassDuration,
				Help:    "Histogram of recomputation pass duration in seconds by event type",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
			[]string{"type"},
		),
		readinessAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricReadinessAttempts,
				Help: "Total number of map readiness probe attempts",
			},
		),
	}
}

// Register registers all metrics with the provided registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.eventsTotal, m.passDuration, m.readinessAttempts} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeEvent(eventType string, start time.Time) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType).Inc()
	m.passDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeReadinessAttempt() {
	if m == nil {
		return
	}
	m.readinessAttempts.Inc()
}
