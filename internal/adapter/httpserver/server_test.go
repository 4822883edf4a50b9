package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/chatrelay/internal/app"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/hub"
	"github.com/pscheid92/chatrelay/internal/platform/config"
	"github.com/pscheid92/chatrelay/internal/stats"
)

const testPrincipalHeader = "X-Principal-ID"

type idleConnector struct{}

func (idleConnector) Start(context.Context) error { return nil }
func (idleConnector) Stop(context.Context) error  { return nil }

type idleFactory struct{}

func (idleFactory) NewConnector(string, domain.FeedHandler) domain.Connector { return idleConnector{} }

type testApp struct {
	*app.Service
	hub   *hub.Hub
	store *stats.MemoryStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := stats.NewMemoryStore()
	h := hub.New(idleFactory{}, store, clockwork.NewFakeClock(), nil, hub.Config{ReplayCapacity: 100, MailboxSize: 16})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return &testApp{Service: app.NewService(h, store), hub: h, store: store}
}

func newTestConfig() *config.Config {
	return &config.Config{
		AppEnv:                       "test",
		Port:                         "0",
		AppURL:                       "http://localhost:8080",
		PrincipalHeader:              testPrincipalHeader,
		MailboxPollInterval:          50 * time.Millisecond,
		HeartbeatInterval:            time.Minute,
		MaxTransportConnections:      100,
		MaxTransportConnectionsPerIP: 10,
		TransportConnectRate:         100,
		TransportConnectBurst:        100,
		ControlRateLimit:             100,
		ControlRateBurst:             100,
	}
}

type testServerOptions struct {
	cfg          *config.Config
	registry     *prometheus.Registry
	healthChecks []HealthCheck
}

type testServerOption func(*testServerOptions)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOptions) { o.healthChecks = checks }
}

func withConfig(cfg *config.Config) testServerOption {
	return func(o *testServerOptions) { o.cfg = cfg }
}

func withRegistry(reg *prometheus.Registry) testServerOption {
	return func(o *testServerOptions) { o.registry = reg }
}

func newTestServer(t *testing.T, svc appService, opts ...testServerOption) *Server {
	t.Helper()
	o := &testServerOptions{cfg: newTestConfig()}
	for _, opt := range opts {
		opt(o)
	}
	return NewServer(o.cfg, svc, HeaderAuthenticator{Header: o.cfg.PrincipalHeader}, clockwork.NewRealClock(), o.registry, o.healthChecks)
}

// do runs one request through the full middleware stack.
func do(srv *Server, method, path, principal, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if principal != "" {
		req.Header.Set(testPrincipalHeader, principal)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}
