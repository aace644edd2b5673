// Package config loads server configuration from LANDERD_* environment
// variables. CLI flags may override individual fields after loading.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server needs at startup.
type Config struct {
	Port           int    `env:"LANDERD_PORT"             envDefault:"8080"`
	DBPath         string `env:"LANDERD_DB"               envDefault:"landerd.db"`
	GeoPath        string `env:"LANDERD_GEO_DATA"`
	TokenFile      string `env:"LANDERD_TOKEN_FILE"       envDefault:".landerd-token"`
	Production     bool   `env:"LANDERD_PRODUCTION"       envDefault:"false"`
	EventQueueSize int    `env:"LANDERD_EVENT_QUEUE_SIZE" envDefault:"1024"`
	WebhookURL     string `env:"LANDERD_WEBHOOK_URL"`
	LogLevel       string `env:"LANDERD_LOG_LEVEL"        envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// SlogLevel maps the configured level name onto a slog.Level. Unknown
// names fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
