package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	startTimeout        = 30 * time.Second
	stopTimeout         = 10 * time.Second
	shutdownParallelism = 16
)

// Teardown reasons, used for the disconnect notice and metrics.
const (
	ReasonLastSubscriber = "last_subscriber_left"
	ReasonUpstreamFailed = "upstream_failed"
	ReasonShutdown       = "shutdown"
)

type Config struct {
	ReplayCapacity int
	MailboxSize    int
}

// Hub is the only component that creates or destroys connectors.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]*channelEntry
	closed   bool

	sessions *sessionRegistry
	factory  domain.ConnectorFactory
	observer domain.MessageObserver
	clock    clockwork.Clock
	metrics  *metrics.HubMetrics
	cfg      Config
}

// New creates a hub. observer and m may be nil.
func New(factory domain.ConnectorFactory, observer domain.MessageObserver, clock clockwork.Clock, m *metrics.HubMetrics, cfg Config) *Hub {
	if cfg.ReplayCapacity < 1 {
		cfg.ReplayCapacity = 100
	}
	if cfg.MailboxSize < 1 {
		cfg.MailboxSize = 64
	}
	return &Hub{
		channels: make(map[string]*channelEntry),
		sessions: newSessionRegistry(),
		factory:  factory,
		observer: observer,
		clock:    clock,
		metrics:  m,
		cfg:      cfg,
	}
}

// AttachSubscriber registers subscriberID on channel, starting the channel's
// connector if it is the first subscriber. Attaching twice is a no-op that
// reports AlreadyAttached.
func (h *Hub) AttachSubscriber(ctx context.Context, channel, subscriberID string) (domain.AttachResult, error) {
	name, err := domain.NormalizeChannel(channel)
	if err != nil {
		return domain.AttachResult{}, err
	}
	if subscriberID == "" {
		return domain.AttachResult{}, domain.ErrInvalidSubscriber
	}

	for {
		e, owner, err := h.acquireEntry(name)
		if err != nil {
			return domain.AttachResult{}, err
		}
		if owner {
			return h.startChannel(ctx, e, subscriberID)
		}

		e.mu.Lock()
		switch {
		case e.removed:
			e.mu.Unlock()
			h.forget(e)
			continue

		case e.state == domain.StateLive:
			already := e.addSubscriber(subscriberID)
			h.sessions.add(subscriberID, name)
			e.mu.Unlock()
			if !already {
				h.subscribersChanged(1)
			}
			return domain.AttachResult{Channel: name, AlreadyAttached: already}, nil

		case e.state == domain.StateConnecting:
			already := e.addSubscriber(subscriberID)
			h.sessions.add(subscriberID, name)
			settled := e.settled
			e.mu.Unlock()
			if !already {
				h.subscribersChanged(1)
			}

			if err := wait(ctx, settled); err != nil {
				h.abandonWait(e, subscriberID, already)
				return domain.AttachResult{}, err
			}
			e.mu.Lock()
			startErr := e.startErr
			e.mu.Unlock()
			if startErr != nil {
				return domain.AttachResult{}, fmt.Errorf("failed to connect to %s: %w", name, startErr)
			}
			return domain.AttachResult{Channel: name, AlreadyAttached: already}, nil

		default: // draining
			settled := e.settled
			e.mu.Unlock()
			if err := wait(ctx, settled); err != nil {
				return domain.AttachResult{}, err
			}
		}
	}
}

// startChannel runs the CONNECTING phase for a freshly created entry.
func (h *Hub) startChannel(ctx context.Context, e *channelEntry, subscriberID string) (domain.AttachResult, error) {
	e.mu.Lock()
	e.addSubscriber(subscriberID)
	h.sessions.add(subscriberID, e.name)
	conn := h.factory.NewConnector(e.name, &channelHandler{hub: h, entry: e})
	e.connector = conn
	e.mu.Unlock()
	h.subscribersChanged(1)

	// Other attachers wait on this start, so it must not die with the
	// owner's request.
	startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), startTimeout)
	err := startConnector(startCtx, conn)
	cancel()

	e.mu.Lock()
	settled := e.settled
	e.settled = nil
	if err != nil {
		subs := e.takeSubscribers()
		for _, id := range subs {
			h.sessions.remove(id, e.name)
		}
		e.connector = nil
		e.state = domain.StateAbsent
		e.startErr = err
		e.removed = true
		e.mu.Unlock()

		close(settled)
		h.forget(e)
		h.subscribersChanged(-len(subs))
		if h.metrics != nil {
			h.metrics.ConnectorStarts.WithLabelValues("error").Inc()
			h.metrics.ActiveChannels.Dec()
		}
		slog.Warn("Connector start failed, channel rolled back", "channel", e.name, "error", err)
		return domain.AttachResult{}, fmt.Errorf("failed to connect to %s: %w", e.name, err)
	}

	e.state = domain.StateLive
	e.lastActivity = h.clock.Now()
	e.mu.Unlock()
	close(settled)

	if h.metrics != nil {
		h.metrics.ConnectorStarts.WithLabelValues("ok").Inc()
	}
	slog.Info("Channel live", "channel", e.name, "subscriber_id", subscriberID)
	return domain.AttachResult{Channel: e.name}, nil
}

// abandonWait undoes the membership a CONNECTING waiter added before its
// context ended. Once the start has settled the membership stays, as it
// would have for a waiter that returned.
func (h *Hub) abandonWait(e *channelEntry, subscriberID string, already bool) {
	if already {
		return
	}
	e.mu.Lock()
	if e.removed || e.state != domain.StateConnecting || !e.hasSubscriber(subscriberID) {
		e.mu.Unlock()
		return
	}
	delete(e.subscribers, subscriberID)
	h.sessions.remove(subscriberID, e.name)
	e.mu.Unlock()
	h.subscribersChanged(-1)
}

// DetachSubscriber removes subscriberID from channel. Detaching from an
// absent channel, or a subscriber that is not attached, succeeds without
// changing anything. The caller that removes the last subscriber drives the
// teardown and gets DisconnectedChannel=true.
func (h *Hub) DetachSubscriber(ctx context.Context, channel, subscriberID string) (domain.DetachResult, error) {
	name, err := domain.NormalizeChannel(channel)
	if err != nil {
		return domain.DetachResult{}, err
	}
	result := domain.DetachResult{Channel: name}

	for {
		e := h.lookup(name)
		if e == nil {
			return result, nil
		}

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			h.forget(e)
			continue
		}
		if e.state == domain.StateConnecting {
			settled := e.settled
			e.mu.Unlock()
			if err := wait(ctx, settled); err != nil {
				return result, err
			}
			continue
		}
		if !e.hasSubscriber(subscriberID) {
			e.mu.Unlock()
			return result, nil
		}

		delete(e.subscribers, subscriberID)
		h.sessions.remove(subscriberID, name)
		result.WasAttached = true

		if len(e.subscribers) > 0 || e.state != domain.StateLive {
			e.mu.Unlock()
			h.subscribersChanged(-1)
			return result, nil
		}

		conn := h.beginTeardown(e)
		e.mu.Unlock()
		h.subscribersChanged(-1)

		h.finishTeardown(ctx, e, conn, ReasonLastSubscriber)
		result.DisconnectedChannel = true
		return result, nil
	}
}

// NotifyConnectorFailure reports an upstream failure for channel. A fatal
// failure tears the channel down regardless of how many subscribers remain
// and detaches all of them.
func (h *Hub) NotifyConnectorFailure(channel string, fatal bool) {
	name, err := domain.NormalizeChannel(channel)
	if err != nil {
		return
	}
	if e := h.lookup(name); e != nil {
		h.connectorFailed(e, errors.New("connector reported failure"), fatal)
	}
}

func (h *Hub) connectorFailed(e *channelEntry, cause error, fatal bool) {
	if h.metrics != nil {
		severity := "transient"
		if fatal {
			severity = "fatal"
		}
		h.metrics.ConnectorFailures.WithLabelValues(severity).Inc()
	}
	if !fatal {
		slog.Warn("Connector reported transient failure", "channel", e.name, "error", cause)
		return
	}

	for {
		e.mu.Lock()
		switch {
		case e.removed:
			e.mu.Unlock()
			return

		case e.state == domain.StateConnecting:
			settled := e.settled
			e.mu.Unlock()
			<-settled

		case e.state == domain.StateLive:
			subs := e.takeSubscribers()
			for _, id := range subs {
				h.sessions.remove(id, e.name)
			}
			conn := h.beginTeardown(e)
			e.mu.Unlock()
			h.subscribersChanged(-len(subs))

			slog.Error("Connector failed, tearing channel down", "channel", e.name, "subscribers", len(subs), "error", cause)
			h.finishTeardown(context.Background(), e, conn, ReasonUpstreamFailed)
			return

		default: // already draining
			e.mu.Unlock()
			return
		}
	}
}

// beginTeardown moves a LIVE entry with no subscribers to DRAINING and hands
// back its connector. Must be called with e.mu held.
func (h *Hub) beginTeardown(e *channelEntry) domain.Connector {
	conn := e.connector
	e.connector = nil
	e.state = domain.StateDraining
	e.settled = make(chan struct{})
	return conn
}

// finishTeardown stops the connector outside every lock, then tells each
// remaining transport why its stream ended and removes the channel.
func (h *Hub) finishTeardown(ctx context.Context, e *channelEntry, conn domain.Connector, reason string) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := stopConnector(stopCtx, conn); err != nil {
		slog.Warn("Connector stop failed", "channel", e.name, "error", err)
	}

	e.mu.Lock()
	notice := e.stamp(domain.Event{
		Type:    domain.EventDisconnect,
		Payload: domain.DisconnectNotice{Channel: e.name, Reason: reason},
	}, h.clock.Now())
	transports := len(e.transports)
	for id, mb := range e.transports {
		mb.offerTerminal(notice)
		mb.close()
		delete(e.transports, id)
	}
	e.replay.reset()
	e.state = domain.StateAbsent
	e.removed = true
	settled := e.settled
	e.settled = nil
	e.mu.Unlock()

	close(settled)
	h.forget(e)

	if h.metrics != nil {
		h.metrics.EventsBroadcast.WithLabelValues(string(domain.EventDisconnect)).Inc()
		h.metrics.Transports.Sub(float64(transports))
		h.metrics.Teardowns.WithLabelValues(reason).Inc()
		h.metrics.ActiveChannels.Dec()
	}
	slog.Info("Channel torn down", "channel", e.name, "reason", reason, "transports", transports)
}

// BroadcastEvent stamps evt with the channel's next sequence number, records
// it in the replay buffer and offers it to every registered transport without
// blocking. A transport whose mailbox is full is dropped.
func (h *Hub) BroadcastEvent(channel string, evt domain.Event) (domain.Delivery, error) {
	name, err := domain.NormalizeChannel(channel)
	if err != nil {
		return domain.Delivery{}, err
	}
	e := h.lookup(name)
	if e == nil {
		return domain.Delivery{}, fmt.Errorf("%w: %s", domain.ErrChannelNotLive, name)
	}
	return h.broadcast(e, evt)
}

func (h *Hub) broadcast(e *channelEntry, evt domain.Event) (domain.Delivery, error) {
	start := h.clock.Now()

	e.mu.Lock()
	// Messages read between join and the LIVE transition still go to replay.
	if e.removed || (e.state != domain.StateLive && e.state != domain.StateConnecting) {
		e.mu.Unlock()
		return domain.Delivery{}, fmt.Errorf("%w: %s", domain.ErrChannelNotLive, e.name)
	}

	evt = e.stamp(evt, start)
	e.replay.push(evt)

	d := domain.Delivery{EventID: evt.ID}
	var evicted []string
	for id, mb := range e.transports {
		if mb.offer(evt) {
			d.Delivered++
			continue
		}
		d.Dropped++
		mb.close()
		delete(e.transports, id)
		evicted = append(evicted, id)
	}
	e.mu.Unlock()

	for _, id := range evicted {
		slog.Warn("Dropping slow transport", "channel", e.name, "transport_id", id, "error", domain.ErrMailboxFull)
	}
	if h.metrics != nil {
		h.metrics.EventsBroadcast.WithLabelValues(string(evt.Type)).Inc()
		h.metrics.BroadcastDuration.Observe(h.clock.Since(start).Seconds())
		if d.Dropped > 0 {
			h.metrics.DeliveriesDropped.Add(float64(d.Dropped))
			h.metrics.Transports.Sub(float64(d.Dropped))
		}
	}
	return d, nil
}

// AttachTransport registers transportID for live delivery on a LIVE channel
// and returns the replay backfill. Snapshot and registration happen under the
// same lock, so the first live event follows the last backfilled one.
func (h *Hub) AttachTransport(ctx context.Context, channel, transportID string) ([]domain.Event, *Mailbox, error) {
	name, err := domain.NormalizeChannel(channel)
	if err != nil {
		return nil, nil, err
	}

	for {
		e := h.lookup(name)
		if e == nil {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrChannelNotLive, name)
		}

		e.mu.Lock()
		switch {
		case e.removed:
			e.mu.Unlock()
			h.forget(e)

		case e.state == domain.StateConnecting:
			settled := e.settled
			e.mu.Unlock()
			if err := wait(ctx, settled); err != nil {
				return nil, nil, err
			}

		case e.state == domain.StateLive:
			if _, exists := e.transports[transportID]; exists {
				e.mu.Unlock()
				return nil, nil, fmt.Errorf("%w: %s", domain.ErrTransportExists, transportID)
			}
			mb := newMailbox(h.cfg.MailboxSize)
			backfill := e.replay.snapshot()
			e.transports[transportID] = mb
			e.mu.Unlock()

			if h.metrics != nil {
				h.metrics.Transports.Inc()
			}
			return backfill, mb, nil

		default:
			e.mu.Unlock()
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrChannelNotLive, name)
		}
	}
}

// UnregisterTransport removes transportID from channel and closes its
// mailbox. Unknown transports are ignored.
func (h *Hub) UnregisterTransport(channel, transportID string) {
	name, err := domain.NormalizeChannel(channel)
	if err != nil {
		return
	}
	e := h.lookup(name)
	if e == nil {
		return
	}

	e.mu.Lock()
	mb, ok := e.transports[transportID]
	if ok {
		mb.close()
		delete(e.transports, transportID)
	}
	e.mu.Unlock()

	if ok && h.metrics != nil {
		h.metrics.Transports.Dec()
	}
}

// ChannelsOf lists the channels principal is attached to.
func (h *Hub) ChannelsOf(principal string) []string {
	return h.sessions.channels(principal)
}

// DetachPrincipal detaches principal from every channel it is attached to.
// Other subscribers of those channels are unaffected.
func (h *Hub) DetachPrincipal(ctx context.Context, principal string) ([]domain.DetachResult, error) {
	channels := h.sessions.channels(principal)
	results := make([]domain.DetachResult, 0, len(channels))
	var errs []error
	for _, ch := range channels {
		res, err := h.DetachSubscriber(ctx, ch, principal)
		if err != nil {
			errs = append(errs, fmt.Errorf("detach %s: %w", ch, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Snapshot returns a read-only view of every known channel.
func (h *Hub) Snapshot() map[string]domain.ChannelSnapshot {
	entries := h.entries()
	out := make(map[string]domain.ChannelSnapshot, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			out[e.name] = e.snapshot()
		}
		e.mu.Unlock()
	}
	return out
}

// Ready reports whether the hub still accepts new work.
func (h *Hub) Ready(context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return domain.ErrHubShuttingDown
	}
	return nil
}

// Shutdown refuses new channels and tears every existing one down, sending
// each transport a disconnect event.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(shutdownParallelism)
	for _, e := range h.entries() {
		g.Go(func() error {
			return h.shutdownChannel(ctx, e)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}
	return nil
}

func (h *Hub) shutdownChannel(ctx context.Context, e *channelEntry) error {
	for {
		e.mu.Lock()
		switch {
		case e.removed:
			e.mu.Unlock()
			return nil

		case e.state == domain.StateLive:
			subs := e.takeSubscribers()
			for _, id := range subs {
				h.sessions.remove(id, e.name)
			}
			conn := h.beginTeardown(e)
			e.mu.Unlock()
			h.subscribersChanged(-len(subs))
			h.finishTeardown(ctx, e, conn, ReasonShutdown)
			return nil

		default: // connecting or draining
			settled := e.settled
			e.mu.Unlock()
			if err := wait(ctx, settled); err != nil {
				return fmt.Errorf("channel %s: %w", e.name, err)
			}
		}
	}
}

// acquireEntry returns the entry for name, creating it in CONNECTING state
// when absent. owner is true for the caller that created it.
func (h *Hub) acquireEntry(name string) (*channelEntry, bool, error) {
	h.mu.RLock()
	e, ok := h.channels[name]
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, false, domain.ErrHubShuttingDown
	}
	if ok {
		return e, false, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false, domain.ErrHubShuttingDown
	}
	if e, ok := h.channels[name]; ok {
		return e, false, nil
	}
	e = newChannelEntry(name, h.cfg.ReplayCapacity, h.clock.Now())
	h.channels[name] = e
	if h.metrics != nil {
		h.metrics.ActiveChannels.Inc()
	}
	return e, true, nil
}

func (h *Hub) lookup(name string) *channelEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channels[name]
}

// forget drops e from the registry unless a newer entry took its place.
func (h *Hub) forget(e *channelEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[e.name] == e {
		delete(h.channels, e.name)
	}
}

func (h *Hub) entries() []*channelEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*channelEntry, 0, len(h.channels))
	for _, e := range h.channels {
		out = append(out, e)
	}
	return out
}

func (h *Hub) subscribersChanged(delta int) {
	if h.metrics != nil && delta != 0 {
		h.metrics.Subscribers.Add(float64(delta))
	}
}

func wait(ctx context.Context, settled <-chan struct{}) error {
	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startConnector converts a panicking Start into an error.
func startConnector(ctx context.Context, conn domain.Connector) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("connector start panicked: %v", r)
		}
	}()
	return conn.Start(ctx)
}

func stopConnector(ctx context.Context, conn domain.Connector) (err error) {
	if conn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("connector stop panicked: %v", r)
		}
	}()
	return conn.Stop(ctx)
}
