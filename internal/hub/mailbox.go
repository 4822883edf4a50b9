package hub

import "github.com/pscheid92/chatrelay/internal/domain"

// Mailbox is the bounded queue between the hub and one transport consumer.
// The hub is the only sender and the only closer, always under the owning
// channel's mutex. One slot beyond the visible capacity is reserved for the
// terminal disconnect event, so a full mailbox still learns why it ended.
type Mailbox struct {
	ch     chan domain.Event
	limit  int
	closed bool
}

func newMailbox(size int) *Mailbox {
	return &Mailbox{ch: make(chan domain.Event, size+1), limit: size}
}

// Events is closed by the hub once no further events will be delivered.
// Events queued before the close can still be received.
func (m *Mailbox) Events() <-chan domain.Event { return m.ch }

// Len is the number of queued events.
func (m *Mailbox) Len() int { return len(m.ch) }

// offer enqueues without blocking and reports whether e was accepted.
func (m *Mailbox) offer(e domain.Event) bool {
	if m.closed || len(m.ch) >= m.limit {
		return false
	}
	select {
	case m.ch <- e:
		return true
	default:
		return false
	}
}

// offerTerminal uses the reserved slot if regular capacity is exhausted.
func (m *Mailbox) offerTerminal(e domain.Event) bool {
	if m.closed {
		return false
	}
	select {
	case m.ch <- e:
		return true
	default:
		return false
	}
}

func (m *Mailbox) close() {
	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}
