package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/platform/correlation"
)

const defaultSampleInterval = 15 * time.Second

// SnapshotSource is anything that can describe the hub's channels.
type SnapshotSource interface {
	Snapshot() map[string]domain.ChannelSnapshot
}

// DiagnosticsTicker periodically samples the hub snapshot, publishes the
// deepest mailbox as a gauge and logs a summary at debug level.
type DiagnosticsTicker struct {
	source   SnapshotSource
	clock    clockwork.Clock
	metrics  *metrics.HubMetrics
	interval time.Duration
}

func NewDiagnosticsTicker(source SnapshotSource, clock clockwork.Clock, m *metrics.HubMetrics) *DiagnosticsTicker {
	return &DiagnosticsTicker{source: source, clock: clock, metrics: m, interval: defaultSampleInterval}
}

// Run blocks until ctx is cancelled.
func (t *DiagnosticsTicker) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.sample(correlation.WithID(ctx, correlation.NewID()))
		}
	}
}

// Summary aggregates one snapshot.
type Summary struct {
	Channels      int
	Subscribers   int
	Transports    int
	MaxQueueDepth int
	Busiest       string
}

func Summarize(snap map[string]domain.ChannelSnapshot) Summary {
	var s Summary
	for name, ch := range snap {
		s.Channels++
		s.Subscribers += ch.SubscriberCount
		s.Transports += ch.TransportCount
		for _, depth := range ch.QueueDepths {
			if depth > s.MaxQueueDepth {
				s.MaxQueueDepth = depth
				s.Busiest = name
			}
		}
	}
	return s
}

func (t *DiagnosticsTicker) sample(ctx context.Context) Summary {
	s := Summarize(t.source.Snapshot())
	if t.metrics != nil {
		t.metrics.MaxQueueDepth.Set(float64(s.MaxQueueDepth))
	}
	slog.DebugContext(ctx, "Hub diagnostics",
		"channels", s.Channels,
		"subscribers", s.Subscribers,
		"transports", s.Transports,
		"max_queue_depth", s.MaxQueueDepth,
		"busiest_channel", s.Busiest,
	)
	return s
}
