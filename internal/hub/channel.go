package hub

import (
	"sync"
	"time"

	"github.com/pscheid92/chatrelay/internal/domain"
)

// channelEntry is the hub's record of one channel. Every field is guarded
// by mu. An entry is never reused after removed is set: callers holding a
// stale pointer drop it and look the channel up again.
type channelEntry struct {
	name string
	mu   sync.Mutex

	state       domain.ChannelState
	connector   domain.Connector
	subscribers map[string]struct{}
	transports  map[string]*Mailbox
	replay      *replayBuffer
	nextID      int64

	lastActivity time.Time

	// settled is non-nil while a transition (CONNECTING or DRAINING) is in
	// flight and is closed when it completes.
	settled  chan struct{}
	startErr error
	removed  bool
}

func newChannelEntry(name string, replayCapacity int, now time.Time) *channelEntry {
	return &channelEntry{
		name:         name,
		state:        domain.StateConnecting,
		subscribers:  make(map[string]struct{}),
		transports:   make(map[string]*Mailbox),
		replay:       newReplayBuffer(replayCapacity),
		lastActivity: now,
		settled:      make(chan struct{}),
	}
}

// addSubscriber reports whether id was already present.
func (e *channelEntry) addSubscriber(id string) bool {
	if _, ok := e.subscribers[id]; ok {
		return true
	}
	e.subscribers[id] = struct{}{}
	return false
}

func (e *channelEntry) hasSubscriber(id string) bool {
	_, ok := e.subscribers[id]
	return ok
}

// takeSubscribers empties the subscriber set and returns its members.
func (e *channelEntry) takeSubscribers() []string {
	ids := make([]string, 0, len(e.subscribers))
	for id := range e.subscribers {
		ids = append(ids, id)
	}
	clear(e.subscribers)
	return ids
}

// stamp assigns the next sequence number and fills channel and time.
func (e *channelEntry) stamp(evt domain.Event, now time.Time) domain.Event {
	evt.ID = e.nextID
	e.nextID++
	evt.Channel = e.name
	if evt.Timestamp.IsZero() {
		evt.Timestamp = now
	}
	e.lastActivity = now
	return evt
}

func (e *channelEntry) snapshot() domain.ChannelSnapshot {
	depths := make(map[string]int, len(e.transports))
	for id, mb := range e.transports {
		depths[id] = mb.Len()
	}
	return domain.ChannelSnapshot{
		SubscriberCount: len(e.subscribers),
		ConnectorState:  e.state,
		TransportCount:  len(e.transports),
		QueueDepths:     depths,
		BufferedEvents:  e.replay.len(),
		LastActivity:    e.lastActivity,
	}
}
