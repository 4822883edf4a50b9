package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	channel string
	handler domain.FeedHandler

	startErr  error
	startGate chan struct{}

	starts atomic.Int32
	stops  atomic.Int32
}

func (c *fakeConnector) Start(ctx context.Context) error {
	c.starts.Add(1)
	if c.startGate != nil {
		select {
		case <-c.startGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.startErr
}

func (c *fakeConnector) Stop(context.Context) error {
	c.stops.Add(1)
	return nil
}

// emit simulates one scored message arriving from upstream.
func (c *fakeConnector) emit(text string) {
	c.handler.HandleMessage(context.Background(), domain.ChatMessage{
		Username:  "viewer",
		Message:   text,
		Sentiment: domain.LabelNeutral,
	})
}

type fakeFactory struct {
	mu        sync.Mutex
	created   []*fakeConnector
	startErr  error
	startGate chan struct{}
}

func (f *fakeFactory) NewConnector(channel string, handler domain.FeedHandler) domain.Connector {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConnector{channel: channel, handler: handler, startErr: f.startErr, startGate: f.startGate}
	f.created = append(f.created, c)
	return c
}

func (f *fakeFactory) connectors() []*fakeConnector {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeConnector(nil), f.created...)
}

func (f *fakeFactory) last(t *testing.T) *fakeConnector {
	t.Helper()
	all := f.connectors()
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func (f *fakeFactory) totalStops() int {
	total := 0
	for _, c := range f.connectors() {
		total += int(c.stops.Load())
	}
	return total
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []string
}

func (o *recordingObserver) ObserveMessage(_ context.Context, channel string, msg domain.ChatMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, channel+":"+msg.Message)
}

func (o *recordingObserver) messages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.seen...)
}

func newTestHub(t *testing.T, cfg Config) (*Hub, *fakeFactory) {
	t.Helper()
	factory := &fakeFactory{}
	return New(factory, nil, clockwork.NewFakeClock(), nil, cfg), factory
}

// assertInvariant checks connector != nil <=> subscribers non-empty for every
// channel the hub knows about.
func assertInvariant(t *testing.T, h *Hub) {
	t.Helper()
	for _, e := range h.entries() {
		e.mu.Lock()
		hasConnector := e.connector != nil
		subs := len(e.subscribers)
		state := e.state
		removed := e.removed
		e.mu.Unlock()
		if removed {
			continue
		}
		require.Equalf(t, subs > 0, hasConnector, "channel %s in state %s: %d subscribers, connector=%v", e.name, state, subs, hasConnector)
	}
}

func drain(t *testing.T, mb *Mailbox) []domain.Event {
	t.Helper()
	var out []domain.Event
	for {
		select {
		case evt, ok := <-mb.Events():
			if !ok {
				return out
			}
			out = append(out, evt)
		default:
			return out
		}
	}
}

func requireClosed(t *testing.T, mb *Mailbox) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-mb.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("mailbox was not closed")
		}
	}
}

func eventIDs(events []domain.Event) []int64 {
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}
