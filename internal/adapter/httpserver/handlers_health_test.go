package httpserver

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func TestHealthProbes(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready","checks":{}}`,
		},
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "redis", Check: healthOK},
				{Name: "hub", Check: healthOK},
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready","checks":{"redis":"ok","hub":"ok"}}`,
		},
		{
			name: "redis down",
			checks: []HealthCheck{
				{Name: "redis", Check: healthErr("connection refused")},
				{Name: "hub", Check: healthOK},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unhealthy","checks":{"redis":"connection refused","hub":"ok"}}`,
		},
		{
			name: "everything down",
			checks: []HealthCheck{
				{Name: "redis", Check: healthErr("connection refused")},
				{Name: "hub", Check: healthErr("hub is shutting down")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unhealthy","checks":{"redis":"connection refused","hub":"hub is shutting down"}}`,
		},
	}

	for _, tt := range tests {
		for _, path := range []string{"/health/startup", "/health/ready"} {
			t.Run(tt.name+" "+path, func(t *testing.T) {
				srv := newTestServer(t, newTestApp(t), withHealthChecks(tt.checks...))

				rec := do(srv, http.MethodGet, path, "", "")

				assert.Equal(t, tt.wantStatus, rec.Code)
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			})
		}
	}
}

func TestHealthReady_HubShutdown(t *testing.T) {
	svc := newTestApp(t)
	srv := newTestServer(t, svc, withHealthChecks(HealthCheck{Name: "hub", Check: svc.hub.Ready}))

	require.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/health/ready", "", "").Code)
	require.NoError(t, svc.hub.Shutdown(context.Background()))

	assert.Equal(t, http.StatusServiceUnavailable, do(srv, http.MethodGet, "/health/ready", "", "").Code)
}

func TestHandleLiveness(t *testing.T) {
	srv := newTestServer(t, newTestApp(t))

	rec := do(srv, http.MethodGet, "/health/live", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[livenessResponse](t, rec.Body.Bytes())
	assert.Equal(t, "ok", resp.Status)
	assert.GreaterOrEqual(t, resp.Uptime, 0.0)
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(t, newTestApp(t))

	rec := do(srv, http.MethodGet, "/version", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"version"`)
	assert.Contains(t, body, `"commit"`)
	assert.Contains(t, body, `"build_time"`)
	assert.Contains(t, body, `"go_version"`)
}
