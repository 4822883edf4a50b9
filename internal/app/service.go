package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/hub"
	"github.com/pscheid92/chatrelay/internal/transport"
)

const defaultTopContributors = 5

// ChannelHub is the hub surface the service drives.
type ChannelHub interface {
	AttachSubscriber(ctx context.Context, channel, subscriberID string) (domain.AttachResult, error)
	DetachSubscriber(ctx context.Context, channel, subscriberID string) (domain.DetachResult, error)
	DetachPrincipal(ctx context.Context, principal string) ([]domain.DetachResult, error)
	ChannelsOf(principal string) []string
	AttachTransport(ctx context.Context, channel, transportID string) ([]domain.Event, *hub.Mailbox, error)
	UnregisterTransport(channel, transportID string)
	Snapshot() map[string]domain.ChannelSnapshot
}

// Service is the application layer. Principals are the authenticated callers
// of the control surface; each principal is one hub subscriber.
type Service struct {
	hub   ChannelHub
	stats domain.StatsStore
}

func NewService(h ChannelHub, stats domain.StatsStore) *Service {
	return &Service{hub: h, stats: stats}
}

// Connect attaches principal to the channel named by ref, which may be a bare
// channel name or a twitch.tv URL.
func (s *Service) Connect(ctx context.Context, principal, ref string) (domain.AttachResult, error) {
	if principal == "" {
		return domain.AttachResult{}, domain.ErrInvalidSubscriber
	}
	channel, err := domain.ParseChannelRef(ref)
	if err != nil {
		return domain.AttachResult{}, err
	}

	res, err := s.hub.AttachSubscriber(ctx, channel, principal)
	if err != nil {
		slog.WarnContext(ctx, "Connect failed", "channel", channel, "error", err)
		return domain.AttachResult{}, err
	}
	slog.InfoContext(ctx, "Principal connected", "channel", res.Channel, "already_attached", res.AlreadyAttached)
	return res, nil
}

// Disconnect detaches principal from the channel named by ref. Detaching
// from a channel the principal is not attached to succeeds.
func (s *Service) Disconnect(ctx context.Context, principal, ref string) (domain.DetachResult, error) {
	if principal == "" {
		return domain.DetachResult{}, domain.ErrInvalidSubscriber
	}
	channel, err := domain.ParseChannelRef(ref)
	if err != nil {
		return domain.DetachResult{}, err
	}

	res, err := s.hub.DetachSubscriber(ctx, channel, principal)
	if err != nil {
		return domain.DetachResult{}, err
	}
	slog.InfoContext(ctx, "Principal disconnected", "channel", res.Channel, "was_attached", res.WasAttached, "channel_closed", res.DisconnectedChannel)
	return res, nil
}

// Logout detaches principal from every channel.
func (s *Service) Logout(ctx context.Context, principal string) ([]domain.DetachResult, error) {
	if principal == "" {
		return nil, domain.ErrInvalidSubscriber
	}
	results, err := s.hub.DetachPrincipal(ctx, principal)
	slog.InfoContext(ctx, "Principal logged out", "channels", len(results), "error", err)
	return results, err
}

// Channels lists the channels principal is attached to.
func (s *Service) Channels(principal string) []string {
	return s.hub.ChannelsOf(principal)
}

// OpenTransport registers a new transport on a live channel and returns its
// backfill and mailbox. The caller must eventually run a consumer on it or
// call CloseTransport.
func (s *Service) OpenTransport(ctx context.Context, channel string) (transport.Subscription, error) {
	name, err := domain.NormalizeChannel(channel)
	if err != nil {
		return transport.Subscription{}, err
	}

	id := uuid.NewString()
	backfill, mb, err := s.hub.AttachTransport(ctx, name, id)
	if err != nil {
		return transport.Subscription{}, err
	}
	return transport.Subscription{
		Channel:     name,
		TransportID: id,
		Backfill:    backfill,
		Events:      mb.Events(),
	}, nil
}

func (s *Service) CloseTransport(sub transport.Subscription) {
	s.hub.UnregisterTransport(sub.Channel, sub.TransportID)
}

// Registry exposes the hub to transport consumers.
func (s *Service) Registry() transport.Registry {
	return s.hub
}

// Stats returns the sentiment statistics of channel.
func (s *Service) Stats(ctx context.Context, channel string) (*domain.ChannelStats, error) {
	name, err := domain.NormalizeChannel(channel)
	if err != nil {
		return nil, err
	}
	if s.stats == nil {
		return nil, errors.New("stats store not configured")
	}
	stats, err := s.stats.GetStats(ctx, name, defaultTopContributors)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats for %s: %w", name, err)
	}
	return stats, nil
}

// Diagnostics returns the hub's read-only per-channel view.
func (s *Service) Diagnostics() map[string]domain.ChannelSnapshot {
	return s.hub.Snapshot()
}
