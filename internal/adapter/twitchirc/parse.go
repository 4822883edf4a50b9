package twitchirc

import (
	"errors"
	"strings"

	"gopkg.in/irc.v4"
)

const (
	cmdPrivmsg   = "PRIVMSG"
	cmdPing      = "PING"
	cmdNotice    = "NOTICE"
	cmdReconnect = "RECONNECT"
	rplWelcome   = "001"
)

var (
	errReconnectRequested = errors.New("server requested reconnect")
	errLoginFailed        = errors.New("login authentication failed")
)

// splitLines breaks one WebSocket payload into IRC lines. Twitch batches
// several lines into a single frame.
func splitLines(payload string) []string {
	var lines []string
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseLine(line string) (*irc.Message, error) {
	return irc.ParseMessage(line)
}

// chatFrom extracts sender and text from a PRIVMSG.
func chatFrom(m *irc.Message) (sender, text string, ok bool) {
	if m.Command != cmdPrivmsg || len(m.Params) < 2 {
		return "", "", false
	}
	if m.Prefix != nil {
		sender = m.Prefix.Name
	}
	return sender, m.Params[len(m.Params)-1], true
}

func isLoginFailure(m *irc.Message) bool {
	if m.Command != cmdNotice || len(m.Params) == 0 {
		return false
	}
	text := strings.ToLower(m.Params[len(m.Params)-1])
	return strings.Contains(text, "login authentication failed") || strings.Contains(text, "improperly formatted auth")
}

func format(command string, params ...string) string {
	return (&irc.Message{Command: command, Params: params}).String()
}
