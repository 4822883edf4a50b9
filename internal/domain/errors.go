package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidChannel    = errors.New("invalid channel reference")
	ErrInvalidSubscriber = errors.New("subscriber id must not be empty")
	ErrChannelNotLive    = errors.New("channel is not live")
	ErrTransportExists   = errors.New("transport already registered")
	ErrMailboxFull       = errors.New("subscriber mailbox full")
	ErrHubShuttingDown   = errors.New("hub is shutting down")
)

// FeedError is returned by feed connections. Fatal errors end the connector
// without reconnecting; everything else is retried with backoff.
type FeedError struct {
	Op    string
	Fatal bool
	Err   error
}

func (e *FeedError) Error() string {
	kind := "transient"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("%s feed error during %s: %v", kind, e.Op, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

// IsFatalFeedError reports whether err carries a fatal FeedError.
func IsFatalFeedError(err error) bool {
	var fe *FeedError
	return errors.As(err, &fe) && fe.Fatal
}
