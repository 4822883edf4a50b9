// Package stats holds the in-process channel statistics store used when no
// Redis is configured.
package stats

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/pscheid92/chatrelay/internal/domain"
)

var labels = []domain.Label{domain.LabelPositive, domain.LabelNeutral, domain.LabelNegative}

type channelCounts struct {
	total  int64
	counts map[domain.Label]int64
	top    map[domain.Label]map[string]int64
}

// MemoryStore implements domain.StatsStore in memory. Statistics are lost on
// restart and are not shared between instances.
type MemoryStore struct {
	mu       sync.Mutex
	channels map[string]*channelCounts
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{channels: make(map[string]*channelCounts)}
}

func (s *MemoryStore) ObserveMessage(_ context.Context, channel string, msg domain.ChatMessage) {
	label := msg.Sentiment
	if !label.Valid() {
		label = domain.LabelNeutral
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[channel]
	if !ok {
		c = &channelCounts{
			counts: make(map[domain.Label]int64, len(labels)),
			top:    make(map[domain.Label]map[string]int64, len(labels)),
		}
		s.channels[channel] = c
	}
	c.total++
	c.counts[label]++
	if msg.Username == "" {
		return
	}
	if c.top[label] == nil {
		c.top[label] = make(map[string]int64)
	}
	c.top[label][msg.Username]++
}

func (s *MemoryStore) GetStats(_ context.Context, channel string, topN int) (*domain.ChannelStats, error) {
	stats := &domain.ChannelStats{
		Channel:        channel,
		SentimentCount: make(map[domain.Label]int64, len(labels)),
		Top:            make(map[domain.Label][]domain.Contributor, len(labels)),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.channels[channel]
	for _, label := range labels {
		stats.Top[label] = []domain.Contributor{}
		if c == nil {
			stats.SentimentCount[label] = 0
			continue
		}
		stats.SentimentCount[label] = c.counts[label]
		stats.Top[label] = rank(c.top[label], topN)
	}
	if c != nil {
		stats.TotalMessages = c.total
	}
	return stats, nil
}

func (s *MemoryStore) Reset(_ context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channel)
	return nil
}

// rank orders by count descending, then username descending, matching a
// ZREVRANGE over equal scores.
func rank(users map[string]int64, topN int) []domain.Contributor {
	out := make([]domain.Contributor, 0, len(users))
	for name, n := range users {
		out = append(out, domain.Contributor{Username: name, Messages: n})
	}
	slices.SortFunc(out, func(a, b domain.Contributor) int {
		if c := cmp.Compare(b.Messages, a.Messages); c != 0 {
			return c
		}
		return cmp.Compare(b.Username, a.Username)
	})
	if topN < 0 {
		topN = 0
	}
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
