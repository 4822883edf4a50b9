package transport

import (
	"time"

	"github.com/pscheid92/chatrelay/internal/domain"
)

// FramePong answers a client ping. It never passes through the hub.
const FramePong = "pong"

const heartbeatType = string(domain.EventHeartbeat)

// Frame is the JSON object written to clients.
type Frame struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`

	// ID is the channel sequence number, or domain.SyntheticEventID for
	// frames that only exist on this connection.
	ID int64 `json:"-"`
}

// FrameFromEvent converts a hub event into its wire form.
func FrameFromEvent(evt domain.Event) Frame {
	return Frame{
		Type:      string(evt.Type),
		Data:      evt.Payload,
		Timestamp: formatTimestamp(evt.Timestamp),
		ID:        evt.ID,
	}
}

func connectionFrame(channel string, now time.Time) Frame {
	return Frame{
		Type: string(domain.EventConnection),
		Data: domain.ConnectionNotice{
			Channel: channel,
			Message: "Connected to " + channel + "'s chat",
		},
		Timestamp: formatTimestamp(now),
		ID:        domain.SyntheticEventID,
	}
}

func heartbeatFrame(now time.Time) Frame {
	return Frame{
		Type:      heartbeatType,
		Timestamp: formatTimestamp(now),
		ID:        domain.SyntheticEventID,
	}
}

func pongFrame(now time.Time) Frame {
	return Frame{Type: FramePong, Timestamp: formatTimestamp(now), ID: domain.SyntheticEventID}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
