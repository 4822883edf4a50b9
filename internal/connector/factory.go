package connector

import "github.com/pscheid92/chatrelay/internal/domain"

// Factory builds connectors that share one dialer and scorer.
type Factory struct {
	dialer domain.FeedDialer
	scorer domain.Scorer
	cfg    Config
}

var _ domain.ConnectorFactory = (*Factory)(nil)

func NewFactory(dialer domain.FeedDialer, scorer domain.Scorer, cfg Config) *Factory {
	return &Factory{dialer: dialer, scorer: scorer, cfg: cfg}
}

func (f *Factory) NewConnector(channel string, handler domain.FeedHandler) domain.Connector {
	return New(channel, f.dialer, f.scorer, handler, f.cfg)
}
