// Package config loads application configuration from the environment.
// Loads from .env file (godotenv), maps to Config struct via go-simpler/env struct tags.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Delivery modes for events whose target has no live connection: push drops
// them, pull queues them in the bounded per-user buffer. Never both.
const (
	DeliveryModePush = "push"
	DeliveryModePull = "pull"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	JWTSecret      string `env:"JWT_SECRET"`
	InternalAPIKey string `env:"INTERNAL_API_KEY"`

	DeliveryMode string `env:"DELIVERY_MODE" default:"push"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	HeartbeatLimit    int           `env:"HEARTBEAT_LIMIT" default:"20"`

	BufferSweepInterval time.Duration `env:"BUFFER_SWEEP_INTERVAL" default:"5m"`
	BufferMaxAge        time.Duration `env:"BUFFER_MAX_AGE" default:"1h"`

	MaxConnections      int64   `env:"MAX_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"32"`
	ConnectionRate      float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst     int     `env:"CONNECTION_BURST" default:"10"`
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
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}

	if cfg.DeliveryMode != DeliveryModePush && cfg.DeliveryMode != DeliveryModePull {
		return fmt.Errorf("DELIVERY_MODE must be %q or %q, got %q", DeliveryModePush, DeliveryModePull, cfg.DeliveryMode)
	}

	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if cfg.HeartbeatLimit < 1 {
		return fmt.Errorf("HEARTBEAT_LIMIT must be at least 1")
	}
	if cfg.BufferSweepInterval <= 0 {
		return fmt.Errorf("BUFFER_SWEEP_INTERVAL must be positive")
	}
	if cfg.BufferMaxAge <= 0 {
		return fmt.Errorf("BUFFER_MAX_AGE must be positive")
	}

	if cfg.MaxConnections < 1 {
		return fmt.Errorf("MAX_CONNECTIONS must be at least 1")
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be at least 1")
	}

	return nil
}
