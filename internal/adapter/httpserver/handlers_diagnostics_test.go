package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostics(t *testing.T) {
	svc := newTestApp(t)
	srv := newTestServer(t, svc)
	ctx := context.Background()
	for _, p := range []string{"u1", "u2"} {
		_, err := svc.Connect(ctx, p, "alice")
		require.NoError(t, err)
	}
	sub, err := svc.OpenTransport(ctx, "alice")
	require.NoError(t, err)
	defer svc.CloseTransport(sub)
	broadcast(t, svc, "alice", "hello")

	rec := do(srv, http.MethodGet, "/api/diagnostics", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[diagnosticsResponse](t, rec.Body.Bytes())
	require.Contains(t, resp.Channels, "alice")
	snap := resp.Channels["alice"]
	assert.Equal(t, 2, snap.SubscriberCount)
	assert.Equal(t, domain.StateLive, snap.ConnectorState)
	assert.Equal(t, 1, snap.TransportCount)
	assert.Equal(t, map[string]int{sub.TransportID: 1}, snap.QueueDepths)
	assert.Equal(t, 1, snap.BufferedEvents)
}

func TestDiagnostics_Empty(t *testing.T) {
	srv := newTestServer(t, newTestApp(t))

	rec := do(srv, http.MethodGet, "/api/diagnostics", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"channels":{},"transports":0}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newTestServer(t, newTestApp(t), withRegistry(reg))

	rec := do(srv, http.MethodGet, "/api/channels", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `chatrelay_http_requests_total{method="GET",route="/api/channels",status_code="200"} 1`)
}

func TestMetricsEndpoint_DisabledWithoutRegistry(t *testing.T) {
	srv := newTestServer(t, newTestApp(t))

	rec := do(srv, http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
