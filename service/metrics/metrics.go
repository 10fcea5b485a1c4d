package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chat"

// Metrics holds the gateway's collectors on a private registry, so several
// hubs (tests) never collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	Routing      *prometheus.CounterVec
	Typing       *prometheus.CounterVec
	Presence     *prometheus.CounterVec
	Overflow     prometheus.Counter
	Connections  prometheus.Gauge
	OnlineUsers  prometheus.Gauge
	Persistence  *prometheus.CounterVec
	PublishError prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Routing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_total",
			Help:      "Live new-message deliveries by outcome.",
		}, []string{"outcome"}),
		Typing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "typing_total",
			Help:      "Typing signals relayed by outcome.",
		}, []string{"outcome"}),
		Presence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_broadcasts_total",
			Help:      "Presence transitions broadcast to connections.",
		}, []string{"kind"}),
		Overflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_queue_overflow_total",
			Help:      "Events dropped because a connection's send queue was full.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live connections attached to the hub.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users currently in the online set.",
		}),
		Persistence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Durable write failures by stage (message, summary, presence, session).",
		}, []string{"stage"}),
		PublishError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "message.created events the bus refused.",
		}),
	}
	m.Registry.MustRegister(
		m.Routing, m.Typing, m.Presence, m.Overflow,
		m.Connections, m.OnlineUsers, m.Persistence, m.PublishError,
	)
	return m
}
