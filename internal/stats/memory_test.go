package stats

import (
	"context"
	"sync"
	"testing"

	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chat(user string, label domain.Label) domain.ChatMessage {
	return domain.ChatMessage{Username: user, Message: "msg", Sentiment: label}
}

func TestMemoryStore_EmptyChannel(t *testing.T) {
	s := NewMemoryStore()

	stats, err := s.GetStats(context.Background(), "alice", 3)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalMessages)
	assert.Len(t, stats.SentimentCount, 3)
	assert.NotNil(t, stats.Top[domain.LabelNegative])
}

func TestMemoryStore_CountsAndRanks(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for range 3 {
		s.ObserveMessage(ctx, "alice", chat("fan", domain.LabelPositive))
	}
	s.ObserveMessage(ctx, "alice", chat("zed", domain.LabelPositive))
	s.ObserveMessage(ctx, "alice", chat("amy", domain.LabelPositive))
	s.ObserveMessage(ctx, "alice", chat("grump", domain.LabelNegative))
	s.ObserveMessage(ctx, "alice", chat("", domain.LabelNeutral))
	s.ObserveMessage(ctx, "bob", chat("other", domain.LabelPositive))

	stats, err := s.GetStats(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.TotalMessages)
	assert.Equal(t, int64(5), stats.SentimentCount[domain.LabelPositive])
	assert.Equal(t, int64(1), stats.SentimentCount[domain.LabelNeutral])
	assert.Equal(t, []domain.Contributor{
		{Username: "fan", Messages: 3},
		{Username: "zed", Messages: 1},
	}, stats.Top[domain.LabelPositive])
	assert.Empty(t, stats.Top[domain.LabelNeutral])
}

func TestMemoryStore_InvalidLabelIsNeutral(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.ObserveMessage(ctx, "alice", chat("x", "sarcastic"))

	stats, err := s.GetStats(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SentimentCount[domain.LabelNeutral])
}

func TestMemoryStore_Reset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.ObserveMessage(ctx, "alice", chat("fan", domain.LabelPositive))

	require.NoError(t, s.Reset(ctx, "alice"))

	stats, err := s.GetStats(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalMessages)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				s.ObserveMessage(ctx, "alice", chat("fan", domain.LabelPositive))
			}
		}()
	}
	wg.Wait()

	stats, err := s.GetStats(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stats.TotalMessages)
	assert.Equal(t, []domain.Contributor{{Username: "fan", Messages: 1000}}, stats.Top[domain.LabelPositive])
}

var _ domain.StatsStore = (*MemoryStore)(nil)
