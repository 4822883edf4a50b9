package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/domain"
)

// Sink writes frames to one client connection. Gone is closed once the
// client has gone away.
type Sink interface {
	Kind() string
	WriteFrame(f Frame) error
	Gone() <-chan struct{}
}

// Registry is the part of the hub a consumer reports back to.
type Registry interface {
	UnregisterTransport(channel, transportID string)
}

// Subscription is a registered transport: its backfill and live mailbox.
type Subscription struct {
	Channel     string
	TransportID string
	Backfill    []domain.Event
	Events      <-chan domain.Event
}

type Config struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Consumer moves events from one mailbox to one sink.
type Consumer struct {
	sub      Subscription
	sink     Sink
	registry Registry
	clock    clockwork.Clock
	metrics  *metrics.TransportMetrics
	cfg      Config
}

func NewConsumer(sub Subscription, sink Sink, registry Registry, clock clockwork.Clock, m *metrics.TransportMetrics, cfg Config) *Consumer {
	return &Consumer{sub: sub, sink: sink, registry: registry, clock: clock, metrics: m, cfg: cfg}
}

// Run blocks until the client goes away, ctx is cancelled, a write fails or
// the hub closes the mailbox. Events queued before the mailbox was closed,
// including the final disconnect event, are written before Run returns.
// The transport is always unregistered on return.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.registry.UnregisterTransport(c.sub.Channel, c.sub.TransportID)

	kind := c.sink.Kind()
	if c.metrics != nil {
		c.metrics.ActiveConnections.WithLabelValues(kind).Inc()
		defer c.metrics.ActiveConnections.WithLabelValues(kind).Dec()
	}
	logger := slog.With("channel", c.sub.Channel, "transport_id", c.sub.TransportID, "kind", kind)

	if err := c.write(connectionFrame(c.sub.Channel, c.clock.Now())); err != nil {
		return err
	}
	for _, evt := range c.sub.Backfill {
		if err := c.write(FrameFromEvent(evt)); err != nil {
			return err
		}
	}
	logger.Debug("Transport attached", "backfill", len(c.sub.Backfill))

	lastHeartbeat := c.clock.Now()
	timer := c.clock.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Transport context done")
			return nil

		case <-c.sink.Gone():
			logger.Debug("Client went away")
			return nil

		case evt, ok := <-c.sub.Events:
			if !ok {
				logger.Debug("Mailbox closed by hub")
				return nil
			}
			if err := c.write(FrameFromEvent(evt)); err != nil {
				return err
			}
			resetTimer(timer, c.cfg.PollInterval)

		case <-timer.Chan():
			if c.clock.Since(lastHeartbeat) >= c.cfg.HeartbeatInterval {
				if err := c.write(heartbeatFrame(c.clock.Now())); err != nil {
					return err
				}
				lastHeartbeat = c.clock.Now()
			}
			timer.Reset(c.cfg.PollInterval)
		}
	}
}

func (c *Consumer) write(f Frame) error {
	start := c.clock.Now()
	err := c.sink.WriteFrame(f)
	if c.metrics != nil {
		c.metrics.WriteDuration.Observe(c.clock.Since(start).Seconds())
		if err != nil {
			c.metrics.WriteErrors.WithLabelValues(c.sink.Kind()).Inc()
		} else {
			c.metrics.FramesWritten.WithLabelValues(f.Type).Inc()
		}
	}
	if err != nil {
		slog.Debug("Frame write failed", "channel", c.sub.Channel, "transport_id", c.sub.TransportID, "type", f.Type, "error", err)
		return fmt.Errorf("failed to write %s frame: %w", f.Type, err)
	}
	return nil
}

func resetTimer(t clockwork.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
	t.Reset(d)
}
