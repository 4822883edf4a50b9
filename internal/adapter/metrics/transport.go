package metrics

import "github.com/prometheus/client_golang/prometheus"

// TransportMetrics holds metrics for client-facing transport connections.
type TransportMetrics struct {
	ActiveConnections *prometheus.GaugeVec
	FramesWritten     *prometheus.CounterVec
	WriteErrors       *prometheus.CounterVec
	WriteDuration     prometheus.Histogram
	Rejected          *prometheus.CounterVec
}

func NewTransportMetrics(reg prometheus.Registerer) *TransportMetrics {
	m := &TransportMetrics{
		ActiveConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "active_connections",
			Help:      "Number of open transport connections, by kind.",
		}, []string{"kind"}),
		FramesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "frames_written_total",
			Help:      "Total number of frames written to clients, by frame type.",
		}, []string{"type"}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "write_errors_total",
			Help:      "Total number of failed frame writes, by kind.",
		}, []string{"kind"}),
		WriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "write_duration_seconds",
			Help:      "Duration of a single frame write.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "rejected_total",
			Help:      "Total number of refused transport connections, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveConnections, m.FramesWritten, m.WriteErrors, m.WriteDuration, m.Rejected)
	return m
}
