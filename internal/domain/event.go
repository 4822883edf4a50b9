package domain

import "time"

type EventType string

const (
	EventMessage    EventType = "message"
	EventConnection EventType = "connection"
	EventHeartbeat  EventType = "heartbeat"
	EventDisconnect EventType = "disconnect"
)

// SyntheticEventID marks events created for a single transport (connection,
// heartbeat) that never pass through a channel's broadcast sequence.
const SyntheticEventID int64 = -1

// Event is an immutable value delivered to transports. IDs are assigned by
// the hub per channel, starting at 0.
type Event struct {
	ID        int64
	Channel   string
	Type      EventType
	Payload   any
	Timestamp time.Time
}

// ChatMessage is the payload of an EventMessage.
type ChatMessage struct {
	Username   string  `json:"username"`
	Message    string  `json:"message"`
	Sentiment  Label   `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// ConnectionNotice is the payload of an EventConnection.
type ConnectionNotice struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

// DisconnectNotice is the payload of an EventDisconnect.
type DisconnectNotice struct {
	Channel string `json:"channel"`
	Reason  string `json:"reason"`
}

// Delivery counts the outcome of one broadcast.
type Delivery struct {
	EventID   int64
	Delivered int
	Dropped   int
}
