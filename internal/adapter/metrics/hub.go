package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics tracks channel lifecycle and fanout.
type HubMetrics struct {
	ActiveChannels    prometheus.Gauge
	Subscribers       prometheus.Gauge
	Transports        prometheus.Gauge
	EventsBroadcast   *prometheus.CounterVec
	DeliveriesDropped prometheus.Counter
	ConnectorStarts   *prometheus.CounterVec
	ConnectorFailures *prometheus.CounterVec
	Teardowns         *prometheus.CounterVec
	BroadcastDuration prometheus.Histogram
	MaxQueueDepth     prometheus.Gauge
}

func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		ActiveChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "active_channels",
			Help:      "Number of channels with a running or starting connector.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of subscriber attachments across all channels.",
		}),
		Transports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "transports",
			Help:      "Number of transport connections registered for live delivery.",
		}),
		EventsBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_broadcast_total",
			Help:      "Total number of events broadcast, by event type.",
		}, []string{"type"}),
		DeliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "deliveries_dropped_total",
			Help:      "Total number of deliveries dropped because a mailbox was full.",
		}),
		ConnectorStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connector_starts_total",
			Help:      "Total number of connector starts, by result.",
		}, []string{"result"}),
		ConnectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connector_failures_total",
			Help:      "Total number of failures reported by connectors, by severity.",
		}, []string{"severity"}),
		Teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "teardowns_total",
			Help:      "Total number of channel teardowns, by reason.",
		}, []string{"reason"}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcast_duration_seconds",
			Help:      "Time spent fanning one event out to all mailboxes of a channel.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		MaxQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "max_queue_depth",
			Help:      "Deepest transport mailbox at the last diagnostics sample.",
		}),
	}

	reg.MustRegister(
		m.ActiveChannels, m.Subscribers, m.Transports, m.EventsBroadcast,
		m.DeliveriesDropped, m.ConnectorStarts, m.ConnectorFailures, m.Teardowns,
		m.BroadcastDuration, m.MaxQueueDepth,
	)
	return m
}
