package domain

// AttachResult is returned by an idempotent subscriber attach.
type AttachResult struct {
	Channel         string `json:"channel"`
	AlreadyAttached bool   `json:"alreadyAttached"`
}

// DetachResult is returned by an idempotent subscriber detach.
// DisconnectedChannel is true only for the call that tore the channel down.
type DetachResult struct {
	Channel             string `json:"channel"`
	WasAttached         bool   `json:"wasAttached"`
	DisconnectedChannel bool   `json:"disconnectedChannel"`
}
