package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/platform/config"
	"github.com/pscheid92/chatrelay/internal/transport"
)

type appService interface {
	Connect(ctx context.Context, principal, ref string) (domain.AttachResult, error)
	Disconnect(ctx context.Context, principal, ref string) (domain.DetachResult, error)
	Logout(ctx context.Context, principal string) ([]domain.DetachResult, error)
	Channels(principal string) []string
	OpenTransport(ctx context.Context, channel string) (transport.Subscription, error)
	CloseTransport(sub transport.Subscription)
	Registry() transport.Registry
	Stats(ctx context.Context, channel string) (*domain.ChannelStats, error)
	Diagnostics() map[string]domain.ChannelSnapshot
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	app  appService
	auth Authenticator

	origins  originPolicy
	limits   *transport.Limits
	upgrader websocket.Upgrader

	registry         *prometheus.Registry
	httpMetrics      *metrics.HTTPMetrics
	transportMetrics *metrics.TransportMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer wires the control, streaming and ops routes. A nil registry
// disables /metrics and request metrics.
func NewServer(cfg *config.Config, app appService, auth Authenticator, clock clockwork.Clock, registry *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	origins := newOriginPolicy(cfg.AppURL, !cfg.IsProduction())
	limits := transport.NewLimits(
		cfg.MaxTransportConnections,
		cfg.MaxTransportConnectionsPerIP,
		cfg.TransportConnectRate,
		cfg.TransportConnectBurst,
		clock,
	)

	srv := &Server{
		echo:    e,
		config:  cfg,
		clock:   clock,
		app:     app,
		auth:    auth,
		origins: origins,
		limits:  limits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		registry:     registry,
		healthChecks: healthChecks,
		startTime:    clock.Now(),
	}
	if registry != nil {
		srv.httpMetrics = metrics.NewHTTPMetrics(registry)
		srv.transportMetrics = metrics.NewTransportMetrics(registry)
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
