package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSubscribes   = "stream_subscribes_total"
	MetricUnsubscribes = "stream_unsubscribes_total"
	MetricBroadcasts   = "stream_broadcasts_total"
	MetricFanout       = "stream_broadcast_fanout"
)

// Metrics contains Prometheus metrics for WebSocket streaming.
// All operations are thread-safe.
type Metrics struct {
	subscribes   prometheus.Counter
	unsubscribes prometheus.Counter
	broadcasts   prometheus.Counter
	fanout       prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		subscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSubscribes,
			Help: "Total number of WebSocket subscriptions",
		}),
		unsubscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricUnsubscribes,
			Help: "Total number of WebSocket unsubscriptions",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricBroadcasts,
			Help: "Total number of update broadcasts",
		}),
		fanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFanout,
			Help:    "Histogram of connections reached per broadcast",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.subscribes,
		m.unsubscribes,
		m.broadcasts,
		m.fanout,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) incSubscribes() {
	if m == nil {
		return
	}
	m.subscribes.Inc()
}

func (m *Metrics) incUnsubscribes() {
	if m == nil {
		return
	}
	m.unsubscribes.Inc()
}

func (m *Metrics) observeBroadcast(fanout int) {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
	m.fanout.Observe(float64(fanout))
}
