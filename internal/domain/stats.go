package domain

import "context"

// MessageObserver is notified after a chat message was broadcast.
// Called outside hub locks; implementations may perform I/O.
type MessageObserver interface {
	ObserveMessage(ctx context.Context, channel string, msg ChatMessage)
}

// Contributor is a chatter ranked by message count for one label.
type Contributor struct {
	Username string `json:"username"`
	Messages int64  `json:"messages"`
}

// ChannelStats aggregates the sentiment of a channel's messages.
type ChannelStats struct {
	Channel        string                  `json:"channel"`
	TotalMessages  int64                   `json:"totalMessages"`
	SentimentCount map[Label]int64         `json:"sentimentCount"`
	Top            map[Label][]Contributor `json:"topContributors"`
}

// StatsStore records and reads channel statistics.
type StatsStore interface {
	MessageObserver
	GetStats(ctx context.Context, channel string, topN int) (*ChannelStats, error)
	Reset(ctx context.Context, channel string) error
}
