package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	appURL := "https://relay.example.com/app"

	tests := []struct {
		name           string
		origin         string
		allowLocalhost bool
		want           bool
	}{
		{"empty origin", "", false, true},
		{"obs origin", "obs://", false, true},
		{"obs origin with host", "obs://obs-studio", false, true},
		{"app origin", "https://relay.example.com", false, true},

		{"different host", "https://evil.com", false, false},
		{"different port", "https://relay.example.com:9090", false, false},
		{"http instead of https", "http://relay.example.com", false, false},
		{"subdomain", "https://sub.relay.example.com", false, false},

		{"localhost dev", "http://localhost:8080", true, true},
		{"localhost no port dev", "http://localhost", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"localhost prod rejected", "http://localhost:8080", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := newOriginPolicy(appURL, tt.allowLocalhost)
			r := httptest.NewRequest(http.MethodGet, "/ws/chat/alice", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, policy.checkOrigin(r))
		})
	}
}

func TestOriginPolicy_CORSNeedsOrigin(t *testing.T) {
	policy := newOriginPolicy("https://relay.example.com", false)

	ok, err := policy.corsOrigin("")
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = policy.corsOrigin("https://relay.example.com")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full URL with path", "https://example.com/app", "https://example.com"},
		{"URL with port", "https://example.com:8443/path", "https://example.com:8443"},
		{"http URL", "http://localhost:8080/callback", "http://localhost:8080"},
		{"empty string", "", ""},
		{"no host", "mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	svc := newTestApp(t)
	srv := newTestServer(t, svc)
	_, err := svc.Connect(t.Context(), "u1", "alice")
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ws/chat/alice", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Origin", "https://evil.com")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, svc.hub.Snapshot()["alice"].TransportCount)
}
