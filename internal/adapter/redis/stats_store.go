package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pscheid92/chatrelay/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	// Stats of a channel expire after a day without messages.
	statsTTL     = 24 * time.Hour
	writeTimeout = 500 * time.Millisecond

	fieldTotal = "total"
)

var labels = []domain.Label{domain.LabelPositive, domain.LabelNeutral, domain.LabelNegative}

// StatsStore keeps per-channel counters in a hash and per-label contributor
// rankings in sorted sets. Keys share a hash tag so one channel's keys live
// in the same cluster slot.
type StatsStore struct {
	rdb *goredis.Client
}

func NewStatsStore(rdb *goredis.Client) *StatsStore {
	return &StatsStore{rdb: rdb}
}

func countsKey(channel string) string {
	return "stats:{" + channel + "}:counts"
}

func topKey(channel string, label domain.Label) string {
	return "stats:{" + channel + "}:top:" + string(label)
}

// ObserveMessage records msg. Failures are logged and dropped so that a Redis
// outage never holds up chat delivery.
func (s *StatsStore) ObserveMessage(ctx context.Context, channel string, msg domain.ChatMessage) {
	if err := s.record(ctx, channel, msg); err != nil {
		slog.Warn("Failed to record channel stats", "channel", channel, "error", err)
	}
}

func (s *StatsStore) record(ctx context.Context, channel string, msg domain.ChatMessage) error {
	label := msg.Sentiment
	if !label.Valid() {
		label = domain.LabelNeutral
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	ck, tk := countsKey(channel), topKey(channel, label)
	pipe := s.rdb.TxPipeline()
	pipe.HIncrBy(ctx, ck, fieldTotal, 1)
	pipe.HIncrBy(ctx, ck, string(label), 1)
	pipe.Expire(ctx, ck, statsTTL)
	if msg.Username != "" {
		pipe.ZIncrBy(ctx, tk, 1, msg.Username)
		pipe.Expire(ctx, tk, statsTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record stats pipeline failed: %w", err)
	}
	return nil
}

func (s *StatsStore) GetStats(ctx context.Context, channel string, topN int) (*domain.ChannelStats, error) {
	pipe := s.rdb.Pipeline()
	countsCmd := pipe.HGetAll(ctx, countsKey(channel))
	topCmds := make(map[domain.Label]*goredis.ZSliceCmd, len(labels))
	if topN > 0 {
		for _, label := range labels {
			topCmds[label] = pipe.ZRevRangeWithScores(ctx, topKey(channel, label), 0, int64(topN-1))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("get stats pipeline failed: %w", err)
	}

	counts, err := countsCmd.Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("hgetall result failed: %w", err)
	}

	stats := emptyStats(channel)
	stats.TotalMessages = parseCount(counts[fieldTotal])
	for _, label := range labels {
		stats.SentimentCount[label] = parseCount(counts[string(label)])
	}
	for label, cmd := range topCmds {
		members, err := cmd.Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("zrevrange result failed: %w", err)
		}
		for _, z := range members {
			name, _ := z.Member.(string)
			stats.Top[label] = append(stats.Top[label], domain.Contributor{Username: name, Messages: int64(z.Score)})
		}
	}
	return stats, nil
}

func (s *StatsStore) Reset(ctx context.Context, channel string) error {
	keys := []string{countsKey(channel)}
	for _, label := range labels {
		keys = append(keys, topKey(channel, label))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset stats: %w", err)
	}
	return nil
}

func emptyStats(channel string) *domain.ChannelStats {
	stats := &domain.ChannelStats{
		Channel:        channel,
		SentimentCount: make(map[domain.Label]int64, len(labels)),
		Top:            make(map[domain.Label][]domain.Contributor, len(labels)),
	}
	for _, label := range labels {
		stats.SentimentCount[label] = 0
		stats.Top[label] = []domain.Contributor{}
	}
	return stats
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
