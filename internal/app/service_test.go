package app

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/hub"
	"github.com/pscheid92/chatrelay/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct{ startErr error }

func (c stubConnector) Start(context.Context) error { return c.startErr }
func (c stubConnector) Stop(context.Context) error  { return nil }

type stubFactory struct {
	startErr error
	handlers map[string]domain.FeedHandler
}

func (f *stubFactory) NewConnector(channel string, handler domain.FeedHandler) domain.Connector {
	if f.handlers == nil {
		f.handlers = make(map[string]domain.FeedHandler)
	}
	f.handlers[channel] = handler
	return stubConnector{startErr: f.startErr}
}

func newTestService(t *testing.T) (*Service, *hub.Hub, *stubFactory, *stats.MemoryStore) {
	t.Helper()
	factory := &stubFactory{}
	store := stats.NewMemoryStore()
	h := hub.New(factory, store, clockwork.NewFakeClock(), nil, hub.Config{ReplayCapacity: 100, MailboxSize: 16})
	return NewService(h, store), h, factory, store
}

func TestService_ConnectAcceptsURLs(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Connect(ctx, "u1", "https://www.twitch.tv/Alice")
	require.NoError(t, err)
	assert.Equal(t, domain.AttachResult{Channel: "alice"}, res)

	res, err = svc.Connect(ctx, "u1", "alice")
	require.NoError(t, err)
	assert.True(t, res.AlreadyAttached)
	assert.Equal(t, []string{"alice"}, svc.Channels("u1"))
}

func TestService_ConnectRejectsBadInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Connect(ctx, "", "alice")
	assert.ErrorIs(t, err, domain.ErrInvalidSubscriber)

	_, err = svc.Connect(ctx, "u1", "https://youtube.com/alice")
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)

	_, err = svc.Connect(ctx, "u1", "not a channel!")
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)
}

func TestService_ConnectSurfacesStartFailure(t *testing.T) {
	svc, _, factory, _ := newTestService(t)
	factory.startErr = &domain.FeedError{Op: "dial", Err: errors.New("no route")}

	_, err := svc.Connect(context.Background(), "u1", "alice")
	require.Error(t, err)
	var fe *domain.FeedError
	assert.ErrorAs(t, err, &fe)
	assert.Empty(t, svc.Channels("u1"))
}

func TestService_DisconnectAndLogout(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	for _, ch := range []string{"alice", "bob"} {
		_, err := svc.Connect(ctx, "u1", ch)
		require.NoError(t, err)
	}
	_, err := svc.Connect(ctx, "u2", "bob")
	require.NoError(t, err)

	res, err := svc.Disconnect(ctx, "u1", "alice")
	require.NoError(t, err)
	assert.True(t, res.WasAttached)
	assert.True(t, res.DisconnectedChannel)

	res, err = svc.Disconnect(ctx, "u1", "alice")
	require.NoError(t, err)
	assert.False(t, res.WasAttached, "second disconnect is a no-op")

	results, err := svc.Logout(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob", results[0].Channel)
	assert.False(t, results[0].DisconnectedChannel, "u2 keeps bob alive")
	assert.Empty(t, svc.Channels("u1"))
	assert.Equal(t, []string{"bob"}, svc.Channels("u2"))

	_, err = svc.Logout(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidSubscriber)
}

func TestService_OpenTransport(t *testing.T) {
	svc, _, factory, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.OpenTransport(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrChannelNotLive)

	_, err = svc.Connect(ctx, "u1", "alice")
	require.NoError(t, err)
	factory.handlers["alice"].HandleMessage(ctx, domain.ChatMessage{Username: "v", Message: "early", Sentiment: domain.LabelPositive})

	sub, err := svc.OpenTransport(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "alice", sub.Channel)
	assert.NotEmpty(t, sub.TransportID)
	require.Len(t, sub.Backfill, 1)
	assert.Equal(t, int64(0), sub.Backfill[0].ID)

	assert.Equal(t, 1, svc.Diagnostics()["alice"].TransportCount)
	svc.CloseTransport(sub)
	assert.Equal(t, 0, svc.Diagnostics()["alice"].TransportCount)

	_, ok := <-sub.Events
	assert.False(t, ok, "closing the transport closes its mailbox")
}

func TestService_StatsFollowBroadcasts(t *testing.T) {
	svc, _, factory, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Connect(ctx, "u1", "alice")
	require.NoError(t, err)
	handler := factory.handlers["alice"]
	handler.HandleMessage(ctx, domain.ChatMessage{Username: "fan", Message: "pog", Sentiment: domain.LabelPositive})
	handler.HandleMessage(ctx, domain.ChatMessage{Username: "fan", Message: "gg", Sentiment: domain.LabelPositive})
	handler.HandleMessage(ctx, domain.ChatMessage{Username: "grump", Message: "meh", Sentiment: domain.LabelNegative})

	s, err := svc.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.TotalMessages)
	assert.Equal(t, int64(2), s.SentimentCount[domain.LabelPositive])
	assert.Equal(t, []domain.Contributor{{Username: "fan", Messages: 2}}, s.Top[domain.LabelPositive])

	_, err = svc.Stats(ctx, "bad name!")
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)
}

func TestService_StatsWithoutStore(t *testing.T) {
	svc := NewService(hub.New(&stubFactory{}, nil, clockwork.NewFakeClock(), nil, hub.Config{ReplayCapacity: 1, MailboxSize: 1}), nil)
	_, err := svc.Stats(context.Background(), "alice")
	assert.Error(t, err)
}
