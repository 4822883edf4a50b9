package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/chatrelay/internal/adapter/httpserver"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/adapter/redis"
	"github.com/pscheid92/chatrelay/internal/adapter/twitchirc"
	"github.com/pscheid92/chatrelay/internal/app"
	"github.com/pscheid92/chatrelay/internal/connector"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/hub"
	"github.com/pscheid92/chatrelay/internal/platform/config"
	"github.com/pscheid92/chatrelay/internal/platform/logging"
	"github.com/pscheid92/chatrelay/internal/platform/retry"
	"github.com/pscheid92/chatrelay/internal/platform/version"
	"github.com/pscheid92/chatrelay/internal/scorer"
	"github.com/pscheid92/chatrelay/internal/stats"
	goredis "github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupStats returns the redis backed store when REDIS_URL is set and the
// in-process store otherwise. The client is nil in the latter case.
func setupStats(cfg *config.Config, reg prometheus.Registerer) (domain.StatsStore, *goredis.Client) {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, keeping sentiment stats in memory")
		return stats.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, metrics.NewRedisMetrics(reg))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return redis.NewStatsStore(client), client
}

func setupScorer(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) domain.Scorer {
	var inner scorer.Classifier = scorer.NewLexicon(nil, nil)
	if cfg.ScorerURL != "" {
		inner = scorer.NewHTTPScorer(cfg.ScorerURL, cfg.ScorerTimeout, nil)
		slog.Info("Using remote sentiment scorer", "url", cfg.ScorerURL)
	}
	return scorer.NewSafe(inner, clock, metrics.NewScorerMetrics(reg))
}

func runGracefulShutdown(srv *httpserver.Server, h *hub.Hub, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Tearing the hub down first sends every transport its disconnect
		// event and closes the mailboxes, which ends the streaming handlers.
		hubCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := h.Shutdown(hubCtx); err != nil {
			slog.Error("Hub shutdown error", "error", err)
		}

		srvCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(srvCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBackground()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	reg := metrics.NewRegistry()

	statsStore, redisClient := setupStats(cfg, reg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	factory := connector.NewFactory(
		twitchirc.NewDialer(cfg.TwitchIRCURL),
		setupScorer(cfg, clock, reg),
		connector.Config{
			MaxMessageLength: cfg.MaxMessageLength,
			Reconnect: retry.Policy{
				MaxAttempts:    cfg.ReconnectMaxAttempts,
				InitialBackoff: cfg.ReconnectInitialBackoff,
				MaxBackoff:     cfg.ReconnectMaxBackoff,
				Clock:          clock,
			},
		},
	)

	hubMetrics := metrics.NewHubMetrics(reg)
	h := hub.New(factory, statsStore, clock, hubMetrics, hub.Config{
		ReplayCapacity: cfg.ReplayCapacity,
		MailboxSize:    cfg.MailboxSize,
	})

	appSvc := app.NewService(h, statsStore)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	go app.NewDiagnosticsTicker(h, clock, hubMetrics).Run(bgCtx)

	healthChecks := []httpserver.HealthCheck{{Name: "hub", Check: h.Ready}}
	if redisClient != nil {
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	srv := httpserver.NewServer(cfg, appSvc, httpserver.HeaderAuthenticator{Header: cfg.PrincipalHeader}, clock, reg, healthChecks)

	done := runGracefulShutdown(srv, h, stopBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
