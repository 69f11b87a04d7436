package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chat_relay"

// Metrics groups the collectors of the realtime core.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.EventsPublished.WithLabelValues("message:new").Inc()
type Metrics struct {
	// ActiveConnections is the number of registered connections.
	ActiveConnections prometheus.Gauge

	// ConnectedUsers is the number of users with at least one connection.
	ConnectedUsers prometheus.Gauge

	// PresenceTransitions counts announced presence changes.
	// Labels: status (ONLINE|OFFLINE)
	PresenceTransitions *prometheus.CounterVec

	// EventsPublished counts publish calls.
	// Labels: event
	EventsPublished *prometheus.CounterVec

	// Deliveries counts per-connection deliveries.
	// Labels: result (delivered|dropped)
	Deliveries *prometheus.CounterVec

	// TypingActive is the number of live typing entries.
	TypingActive prometheus.Gauge

	// Rejections counts refused handshakes and failed bootstraps.
	// Labels: reason (authentication|membership_lookup)
	Rejections *prometheus.CounterVec

	// OutboundQueueDepth is the fullest connection queue at the last sample, in percent.
	OutboundQueueDepth prometheus.Gauge

	// ProcessCPU and ProcessRSS describe the server process.
	ProcessCPU prometheus.Gauge
	ProcessRSS prometheus.Gauge

	// WorkerRestarts counts supervised worker restarts.
	// Labels: worker
	WorkerRestarts *prometheus.CounterVec
}

// NewMetrics registers every collector on reg. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of live authenticated connections",
		}),
		ConnectedUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_users",
			Help:      "Number of users holding at least one connection",
		}),
		PresenceTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_transitions_total",
			Help:      "Presence transitions announced to workspace rooms",
		}, []string{"status"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to rooms or users",
		}, []string{"event"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-connection event deliveries",
		}, []string{"result"}),
		TypingActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "typing_active",
			Help:      "Live typing indicators",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Refused handshakes and failed bootstraps",
		}, []string{"reason"}),
		OutboundQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbound_queue_depth_percent",
			Help:      "Fill ratio of the fullest connection queue",
		}),
		ProcessCPU: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "CPU usage of the server process",
		}),
		ProcessRSS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_rss_bytes",
			Help:      "Resident memory of the server process",
		}),
		WorkerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Supervised worker restarts after a crash",
		}, []string{"worker"}),
	}
}
