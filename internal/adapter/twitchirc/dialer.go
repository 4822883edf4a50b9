package twitchirc

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/chatrelay/internal/domain"
)

const (
	DefaultURL = "wss://irc-ws.chat.twitch.tv:443"

	// Anonymous logins accept any password.
	anonymousPass = "SCHMOOPIIE"
	loginTimeout  = 10 * time.Second
)

// Dialer opens anonymous, read-only chat connections.
type Dialer struct {
	url      string
	ws       *websocket.Dialer
	nickname func() string
}

func NewDialer(url string) *Dialer {
	if url == "" {
		url = DefaultURL
	}
	return &Dialer{
		url: url,
		ws: &websocket.Dialer{
			HandshakeTimeout: loginTimeout,
		},
		nickname: anonymousNick,
	}
}

// Dial connects, logs in and joins channel. It returns once the server has
// accepted the login. A rejected login is a fatal FeedError.
func (d *Dialer) Dial(ctx context.Context, channel string) (domain.FeedConn, error) {
	ws, _, err := d.ws.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, &domain.FeedError{Op: "dial", Err: err}
	}
	c := newConn(ws, channel)

	if err := d.login(ctx, c); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.write(format("JOIN", "#"+channel)); err != nil {
		_ = c.Close()
		return nil, &domain.FeedError{Op: "join", Err: err}
	}
	return c, nil
}

func (d *Dialer) login(ctx context.Context, c *Conn) error {
	for _, line := range []string{
		format("CAP", "REQ", "twitch.tv/commands"),
		format("PASS", anonymousPass),
		format("NICK", d.nickname()),
	} {
		if err := c.write(line); err != nil {
			return &domain.FeedError{Op: "login", Err: err}
		}
	}

	loginCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	stop := context.AfterFunc(loginCtx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()
	for {
		line, err := c.nextLine(loginCtx)
		if err != nil {
			return &domain.FeedError{Op: "login", Err: fmt.Errorf("waiting for welcome: %w", err)}
		}
		m, err := parseLine(line)
		if err != nil {
			continue
		}
		switch {
		case m.Command == rplWelcome:
			return nil
		case m.Command == cmdPing:
			if err := c.write(format("PONG", m.Params...)); err != nil {
				return &domain.FeedError{Op: "login", Err: err}
			}
		case isLoginFailure(m):
			return &domain.FeedError{Op: "login", Fatal: true, Err: errLoginFailed}
		}
	}
}

func anonymousNick() string {
	return fmt.Sprintf("justinfan%d", 1000+rand.IntN(999000))
}
