package domain

import "context"

// RawMessage is one inbound chat line from the upstream feed.
type RawMessage struct {
	Sender string
	Body   string
}

// FeedConn is a live, joined subscription to one channel of the upstream feed.
// Read blocks until a message arrives, the connection fails, or Close is called.
type FeedConn interface {
	Read(ctx context.Context) (RawMessage, error)
	Part(ctx context.Context) error
	Close() error
}

// FeedDialer opens anonymous, read-only feed subscriptions.
type FeedDialer interface {
	Dial(ctx context.Context, channel string) (FeedConn, error)
}

// FeedHandler receives connector output for exactly one channel.
type FeedHandler interface {
	HandleMessage(ctx context.Context, msg ChatMessage)
	HandleFailure(err error, fatal bool)
}

// Connector owns the single upstream subscription of one channel.
type Connector interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ConnectorFactory builds connectors bound to a channel handler.
type ConnectorFactory interface {
	NewConnector(channel string, handler FeedHandler) Connector
}
