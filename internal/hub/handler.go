package hub

import (
	"context"

	"github.com/pscheid92/chatrelay/internal/domain"
)

// channelHandler routes one connector's output to the entry it was created
// for. A connector outliving its entry can no longer affect the channel:
// broadcasts fail with ErrChannelNotLive and failures find the entry removed.
type channelHandler struct {
	hub   *Hub
	entry *channelEntry
}

var _ domain.FeedHandler = (*channelHandler)(nil)

func (c *channelHandler) HandleMessage(ctx context.Context, msg domain.ChatMessage) {
	if _, err := c.hub.broadcast(c.entry, domain.Event{Type: domain.EventMessage, Payload: msg}); err != nil {
		return
	}
	if c.hub.observer != nil {
		c.hub.observer.ObserveMessage(ctx, c.entry.name, msg)
	}
}

func (c *channelHandler) HandleFailure(err error, fatal bool) {
	c.hub.connectorFailed(c.entry, err, fatal)
}
