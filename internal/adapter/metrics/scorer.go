package metrics

import "github.com/prometheus/client_golang/prometheus"

// ScorerMetrics holds metrics for message classification.
type ScorerMetrics struct {
	Scores    *prometheus.CounterVec
	Fallbacks *prometheus.CounterVec
	Duration  prometheus.Histogram
}

func NewScorerMetrics(reg prometheus.Registerer) *ScorerMetrics {
	m := &ScorerMetrics{
		Scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scorer",
			Name:      "scores_total",
			Help:      "Total number of scored messages, by label.",
		}, []string{"label"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scorer",
			Name:      "fallbacks_total",
			Help:      "Total number of neutral fallbacks, by cause.",
		}, []string{"cause"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scorer",
			Name:      "duration_seconds",
			Help:      "Duration of a single score call.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
	}

	reg.MustRegister(m.Scores, m.Fallbacks, m.Duration)
	return m
}
