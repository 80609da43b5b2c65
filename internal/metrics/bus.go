package metrics

import "github.com/prometheus/client_golang/prometheus"

// BusMetrics holds Prometheus metrics for the in-process cycle-event bus.
type BusMetrics struct {
	EventsPublished prometheus.Counter
	EventsDropped   *prometheus.CounterVec
}

// NewBusMetrics creates and registers event-bus metrics on the given registry.
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	m := &BusMetrics{
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Total number of cycle results published on the bus.",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_dropped_total",
			Help:      "Total number of cycle results dropped per slow subscriber.",
		}, []string{"subscriber"}),
	}

	reg.MustRegister(m.EventsPublished, m.EventsDropped)
	return m
}
