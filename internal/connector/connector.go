package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/platform/correlation"
	"github.com/pscheid92/chatrelay/internal/platform/retry"
)

const (
	partTimeout    = 2 * time.Second
	truncateSuffix = "..."
)

var errStopped = errors.New("connector stopped")

type Config struct {
	MaxMessageLength int
	Reconnect        retry.Policy
}

type Connector struct {
	channel string
	dialer  domain.FeedDialer
	scorer  domain.Scorer
	handler domain.FeedHandler
	cfg     Config

	mu      sync.Mutex
	conn    domain.FeedConn
	cancel  context.CancelFunc
	started bool

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

var _ domain.Connector = (*Connector)(nil)

func New(channel string, dialer domain.FeedDialer, scorer domain.Scorer, handler domain.FeedHandler, cfg Config) *Connector {
	return &Connector{
		channel: channel,
		dialer:  dialer,
		scorer:  scorer,
		handler: handler,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start joins the channel and launches the read loop. It returns once the
// first join succeeded or failed; a failed Start leaves nothing running.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("connector already started")
	}
	c.started = true
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, c.channel)
	if err != nil {
		close(c.done)
		return fmt.Errorf("failed to join %s: %w", c.channel, err)
	}

	loopCtx, cancel := context.WithCancel(correlation.WithID(context.Background(), correlation.NewID()))
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	slog.InfoContext(loopCtx, "Joined channel feed", "channel", c.channel)
	go c.run(loopCtx)
	return nil
}

// Stop leaves the channel, closes the feed and waits for the read loop to
// exit, bounded by ctx. Safe to call more than once and from any goroutine,
// including from within the handler's failure callback.
func (c *Connector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stopCh)

		c.mu.Lock()
		started := c.started
		c.started = true
		conn, cancel := c.conn, c.cancel
		c.mu.Unlock()

		if !started {
			close(c.done)
			return
		}
		if conn != nil {
			partCtx, cancelPart := context.WithTimeout(ctx, partTimeout)
			if err := conn.Part(partCtx); err != nil {
				slog.Debug("Part failed", "channel", c.channel, "error", err)
			}
			cancelPart()
		}
		if cancel != nil {
			cancel()
		}
		c.closeConn()
	})

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connector for %s did not stop: %w", c.channel, ctx.Err())
	}
}

// Done is closed when the read loop has exited.
func (c *Connector) Done() <-chan struct{} { return c.done }

func (c *Connector) run(ctx context.Context) {
	var failure error
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("connector panicked: %v", r)
			slog.ErrorContext(ctx, "Connector panicked", "channel", c.channel, "panic", r, "stack", string(debug.Stack()))
		}
		c.closeConn()
		// done must be closed before reporting: the failure handler stops
		// this connector and waits on it.
		close(c.done)
		if failure != nil {
			c.handler.HandleFailure(failure, true)
		}
	}()

	failure = c.loop(ctx)
}

func (c *Connector) loop(ctx context.Context) error {
	for {
		conn := c.currentConn()
		if conn == nil {
			return nil
		}

		msg, err := conn.Read(ctx)
		if err == nil {
			c.process(ctx, msg)
			continue
		}
		if c.stopping() {
			return nil
		}
		if domain.IsFatalFeedError(err) {
			slog.ErrorContext(ctx, "Feed failed permanently", "channel", c.channel, "error", err)
			return err
		}

		slog.WarnContext(ctx, "Feed connection lost, reconnecting", "channel", c.channel, "error", err)
		c.handler.HandleFailure(err, false)
		if err := c.reconnect(ctx); err != nil {
			if c.stopping() {
				return nil
			}
			return err
		}
	}
}

func (c *Connector) reconnect(ctx context.Context) error {
	c.closeConn()

	policy := c.cfg.Reconnect
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Rejoin failed, backing off", "channel", c.channel, "attempt", attempt, "backoff", backoff, "error", err)
	}

	conn, err := retry.Do(ctx, policy, classify, func(int) (domain.FeedConn, error) {
		if c.stopping() {
			return nil, errStopped
		}
		return c.dialer.Dial(ctx, c.channel)
	})
	if err != nil {
		return fmt.Errorf("failed to rejoin %s: %w", c.channel, err)
	}

	c.mu.Lock()
	if c.stopping() {
		c.mu.Unlock()
		_ = conn.Close()
		return errStopped
	}
	c.conn = conn
	c.mu.Unlock()

	slog.InfoContext(ctx, "Rejoined channel feed", "channel", c.channel)
	return nil
}

// process turns one raw line into a scored message. Failures stay local to
// the message.
func (c *Connector) process(ctx context.Context, raw domain.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Dropping message after panic", "channel", c.channel, "panic", r)
		}
	}()

	if strings.TrimSpace(raw.Body) == "" {
		return
	}
	body := truncate(raw.Body, c.cfg.MaxMessageLength)

	score := c.scorer.Score(ctx, body)
	c.handler.HandleMessage(ctx, domain.ChatMessage{
		Username:   raw.Sender,
		Message:    body,
		Sentiment:  score.Label,
		Confidence: score.Confidence,
	})
}

func (c *Connector) currentConn() domain.FeedConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Connector) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Connector) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func classify(err error) retry.Action {
	if errors.Is(err, errStopped) || domain.IsFatalFeedError(err) {
		return retry.Stop
	}
	return retry.Retry
}

// truncate caps s at limit runes and marks the cut. limit <= 0 disables it.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + truncateSuffix
}
