package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open streams and call the
// control API. Requests without an Origin header are not browser initiated
// and always pass.
type originPolicy struct {
	appOrigin      string
	allowLocalhost bool
}

func newOriginPolicy(appURL string, allowLocalhost bool) originPolicy {
	return originPolicy{appOrigin: extractOrigin(appURL), allowLocalhost: allowLocalhost}
}

func (p originPolicy) allows(origin string) bool {
	switch {
	case origin == "":
		return true
	case strings.HasPrefix(origin, "obs://"):
		// OBS browser sources embedding the chat view.
		return true
	case origin == p.appOrigin:
		return true
	case p.allowLocalhost && isLocalhostOrigin(origin):
		return true
	default:
		return false
	}
}

// checkOrigin is the WebSocket upgrader hook.
func (p originPolicy) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if p.allows(origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
	return false
}

// corsOrigin is the CORS middleware hook.
func (p originPolicy) corsOrigin(origin string) (bool, error) {
	return origin != "" && p.allows(origin), nil
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
