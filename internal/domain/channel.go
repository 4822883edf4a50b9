package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

type ChannelState string

const (
	StateAbsent     ChannelState = "absent"
	StateConnecting ChannelState = "connecting"
	StateLive       ChannelState = "live"
	StateDraining   ChannelState = "draining"
)

var channelNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,25}$`)

// NormalizeChannel lowercases and trims a channel name and validates it.
func NormalizeChannel(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "#")
	if !channelNamePattern.MatchString(n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, name)
	}
	return n, nil
}

// ParseChannelRef accepts either a bare channel name or a twitch.tv URL
// ("https://www.twitch.tv/name", "twitch.tv/name/videos") and returns the
// normalized channel name.
func ParseChannelRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "twitch.tv") {
		return NormalizeChannel(ref)
	}

	raw := ref
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, ref)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "twitch.tv" {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, ref)
	}
	first, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return NormalizeChannel(first)
}

// ChannelSnapshot is the read-only diagnostics view of one channel.
type ChannelSnapshot struct {
	SubscriberCount int            `json:"subscriberCount"`
	ConnectorState  ChannelState   `json:"connectorState"`
	TransportCount  int            `json:"transportCount"`
	QueueDepths     map[string]int `json:"queueDepths"`
	BufferedEvents  int            `json:"bufferedEvents"`
	LastActivity    time.Time      `json:"lastActivity"`
}
