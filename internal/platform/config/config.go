package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv          string `env:"APP_ENV" default:"development"`
	Port            string `env:"PORT" default:"8080"`
	AppURL          string `env:"APP_URL" default:"http://localhost:8080"`
	LogLevel        string `env:"LOG_LEVEL" default:"info"`
	LogFormat       string `env:"LOG_FORMAT" default:"text"`
	PrincipalHeader string `env:"PRINCIPAL_HEADER" default:"X-Principal-ID"`
	RedisURL        string `env:"REDIS_URL"`
	TwitchIRCURL    string `env:"TWITCH_IRC_URL" default:"wss://irc-ws.chat.twitch.tv:443"`

	ScorerURL     string        `env:"SCORER_URL"`
	ScorerTimeout time.Duration `env:"SCORER_TIMEOUT" default:"2s"`

	ReplayCapacity      int           `env:"REPLAY_CAPACITY" default:"100"`
	MailboxSize         int           `env:"MAILBOX_SIZE" default:"64"`
	MailboxPollInterval time.Duration `env:"MAILBOX_POLL_INTERVAL" default:"1s"`
	HeartbeatInterval   time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	MaxMessageLength    int           `env:"MAX_MESSAGE_LENGTH" default:"1000"`

	ReconnectMaxAttempts    int           `env:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectInitialBackoff time.Duration `env:"RECONNECT_INITIAL_BACKOFF" default:"1s"`
	ReconnectMaxBackoff     time.Duration `env:"RECONNECT_MAX_BACKOFF" default:"30s"`

	MaxTransportConnections      int     `env:"MAX_TRANSPORT_CONNECTIONS" default:"10000"`
	MaxTransportConnectionsPerIP int     `env:"MAX_TRANSPORT_CONNECTIONS_PER_IP" default:"50"`
	TransportConnectRate         float64 `env:"TRANSPORT_CONNECT_RATE" default:"10"`
	TransportConnectBurst        int     `env:"TRANSPORT_CONNECT_BURST" default:"20"`
	ControlRateLimit             float64 `env:"CONTROL_RATE_LIMIT" default:"5"`
	ControlRateBurst             int     `env:"CONTROL_RATE_BURST" default:"10"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Port == "" {
		return errors.New("PORT is required")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.PrincipalHeader == "" {
		return errors.New("PRINCIPAL_HEADER is required")
	}

	if err := validateURL("TWITCH_IRC_URL", cfg.TwitchIRCURL, "ws", "wss"); err != nil {
		return err
	}
	if cfg.ScorerURL != "" {
		if err := validateURL("SCORER_URL", cfg.ScorerURL, "http", "https"); err != nil {
			return err
		}
	}
	if cfg.RedisURL != "" {
		if err := validateURL("REDIS_URL", cfg.RedisURL, "redis", "rediss"); err != nil {
			return err
		}
	}

	positiveInts := []struct {
		name  string
		value int
	}{
		{"REPLAY_CAPACITY", cfg.ReplayCapacity},
		{"MAILBOX_SIZE", cfg.MailboxSize},
		{"MAX_MESSAGE_LENGTH", cfg.MaxMessageLength},
		{"RECONNECT_MAX_ATTEMPTS", cfg.ReconnectMaxAttempts},
		{"MAX_TRANSPORT_CONNECTIONS", cfg.MaxTransportConnections},
		{"MAX_TRANSPORT_CONNECTIONS_PER_IP", cfg.MaxTransportConnectionsPerIP},
		{"TRANSPORT_CONNECT_BURST", cfg.TransportConnectBurst},
		{"CONTROL_RATE_BURST", cfg.ControlRateBurst},
	}
	for _, p := range positiveInts {
		if p.value < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", p.name, p.value)
		}
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"SCORER_TIMEOUT", cfg.ScorerTimeout},
		{"MAILBOX_POLL_INTERVAL", cfg.MailboxPollInterval},
		{"HEARTBEAT_INTERVAL", cfg.HeartbeatInterval},
		{"RECONNECT_INITIAL_BACKOFF", cfg.ReconnectInitialBackoff},
		{"RECONNECT_MAX_BACKOFF", cfg.ReconnectMaxBackoff},
	}
	for _, p := range positiveDurations {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", p.name, p.value)
		}
	}

	if cfg.ReconnectMaxBackoff < cfg.ReconnectInitialBackoff {
		return errors.New("RECONNECT_MAX_BACKOFF must not be smaller than RECONNECT_INITIAL_BACKOFF")
	}
	if cfg.HeartbeatInterval < cfg.MailboxPollInterval {
		return errors.New("HEARTBEAT_INTERVAL must not be smaller than MAILBOX_POLL_INTERVAL")
	}
	if cfg.ControlRateLimit <= 0 {
		return fmt.Errorf("CONTROL_RATE_LIMIT must be positive, got %v", cfg.ControlRateLimit)
	}
	if cfg.TransportConnectRate <= 0 {
		return fmt.Errorf("TRANSPORT_CONNECT_RATE must be positive, got %v", cfg.TransportConnectRate)
	}

	return nil
}

func validateURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s must be a valid URL: %w", name, err)
	}
	if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("%s must use one of %v with a host, got %q", name, schemes, raw)
	}
	return nil
}
