package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type limitedCall struct {
	remoteAddr string
	principal  string
	want       int
}

func runLimited(t *testing.T, mw echo.MiddlewareFunc, calls []limitedCall) {
	t.Helper()
	e := echo.New()
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i, call := range calls {
		req := httptest.NewRequest(http.MethodPost, "/api/channels/connect", nil)
		req.RemoteAddr = call.remoteAddr
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if call.principal != "" {
			c.Set(contextKeyPrincipal, call.principal)
		}

		require.NoError(t, handler(c))
		require.Equal(t, call.want, rec.Code, "call %d", i)
		if call.want == http.StatusTooManyRequests {
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "rate limit exceeded", resp["error"])
		}
	}
}

func TestRateLimiter(t *testing.T) {
	const (
		ipA = "1.2.3.4:1234"
		ipB = "5.6.7.8:5678"
	)

	tests := []struct {
		name  string
		rate  float64
		burst int
		calls []limitedCall
	}{
		{
			name:  "under limit",
			rate:  10,
			burst: 3,
			calls: []limitedCall{
				{ipA, "", http.StatusOK},
				{ipA, "", http.StatusOK},
				{ipA, "", http.StatusOK},
			},
		},
		{
			name:  "burst exhausted",
			rate:  0.01,
			burst: 1,
			calls: []limitedCall{
				{ipA, "", http.StatusOK},
				{ipA, "", http.StatusTooManyRequests},
			},
		},
		{
			name:  "ips are independent",
			rate:  0.01,
			burst: 1,
			calls: []limitedCall{
				{ipA, "", http.StatusOK},
				{ipB, "", http.StatusOK},
				{ipA, "", http.StatusTooManyRequests},
			},
		},
		{
			name:  "principals share an ip but not a bucket",
			rate:  0.01,
			burst: 1,
			calls: []limitedCall{
				{ipA, "alice", http.StatusOK},
				{ipA, "bob", http.StatusOK},
				{ipA, "alice", http.StatusTooManyRequests},
				{ipA, "", http.StatusOK},
			},
		},
		{
			name:  "principal follows across ips",
			rate:  0.01,
			burst: 1,
			calls: []limitedCall{
				{ipA, "alice", http.StatusOK},
				{ipB, "alice", http.StatusTooManyRequests},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runLimited(t, newRateLimiter(tt.rate, tt.burst), tt.calls)
		})
	}
}
