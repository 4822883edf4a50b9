package twitchirc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/chatrelay/internal/domain"
)

const (
	writeWait = 5 * time.Second
	// Twitch pings roughly every five minutes.
	readWait = 6 * time.Minute
)

// Conn is one joined channel. Read is called from a single goroutine; Part
// and PONG replies may write concurrently, so writes are serialized.
type Conn struct {
	ws      *websocket.Conn
	channel string

	writeMu   sync.Mutex
	pending   []string
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn, channel string) *Conn {
	return &Conn{ws: ws, channel: channel}
}

// Read returns the next chat message. Protocol traffic is handled inline.
func (c *Conn) Read(ctx context.Context) (domain.RawMessage, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return domain.RawMessage{}, err
		}
		line, err := c.nextLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return domain.RawMessage{}, ctx.Err()
			}
			return domain.RawMessage{}, &domain.FeedError{Op: "read", Err: err}
		}

		m, err := parseLine(line)
		if err != nil {
			slog.Debug("Skipping malformed IRC line", "channel", c.channel, "error", err)
			continue
		}

		switch {
		case m.Command == cmdPing:
			if err := c.write(format("PONG", m.Params...)); err != nil {
				return domain.RawMessage{}, &domain.FeedError{Op: "pong", Err: err}
			}
		case m.Command == cmdReconnect:
			return domain.RawMessage{}, &domain.FeedError{Op: "read", Err: errReconnectRequested}
		case isLoginFailure(m):
			return domain.RawMessage{}, &domain.FeedError{Op: "read", Fatal: true, Err: errLoginFailed}
		default:
			if sender, text, ok := chatFrom(m); ok {
				return domain.RawMessage{Sender: sender, Body: text}, nil
			}
		}
	}
}

// Part leaves the channel. The connection stays open until Close.
func (c *Conn) Part(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(format("PART", "#"+c.channel))
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) nextLine(ctx context.Context) (string, error) {
	for len(c.pending) == 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
		// A cancellation that fired before the deadline was extended.
		if err := ctx.Err(); err != nil {
			return "", err
		}
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.pending = splitLines(string(data))
	}
	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *Conn) write(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(line+"\r\n")); err != nil {
		return fmt.Errorf("failed to write %q: %w", commandOf(line), err)
	}
	return nil
}

func commandOf(line string) string {
	for i, r := range line {
		if r == ' ' {
			return line[:i]
		}
	}
	return line
}
