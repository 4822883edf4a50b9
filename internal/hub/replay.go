package hub

import "github.com/pscheid92/chatrelay/internal/domain"

// replayBuffer is a fixed-capacity ring holding the most recent events of a
// channel. Not safe for concurrent use; guarded by the channel mutex.
type replayBuffer struct {
	events []domain.Event
	start  int
	size   int
}

func newReplayBuffer(capacity int) *replayBuffer {
	return &replayBuffer{events: make([]domain.Event, capacity)}
}

// push appends e, overwriting the oldest event when full.
func (b *replayBuffer) push(e domain.Event) {
	if len(b.events) == 0 {
		return
	}
	if b.size < len(b.events) {
		b.events[(b.start+b.size)%len(b.events)] = e
		b.size++
		return
	}
	b.events[b.start] = e
	b.start = (b.start + 1) % len(b.events)
}

// snapshot returns the buffered events oldest first.
func (b *replayBuffer) snapshot() []domain.Event {
	out := make([]domain.Event, b.size)
	for i := range b.size {
		out[i] = b.events[(b.start+i)%len(b.events)]
	}
	return out
}

func (b *replayBuffer) len() int { return b.size }

func (b *replayBuffer) reset() {
	clear(b.events)
	b.start, b.size = 0, 0
}
