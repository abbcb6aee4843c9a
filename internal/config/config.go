package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config captures the server runtime parameters. Values come from the
// environment (optionally seeded from a .env file), prefixed with CHAT_.
type Config struct {
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseDSN  string `envconfig:"DB_DSN" required:"true"`
	RedisAddr    string `envconfig:"REDIS_ADDR"`
	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	Timezone     string `envconfig:"DISPLAY_TZ" default:"Asia/Ho_Chi_Minh"`
	HistoryLimit int    `envconfig:"HISTORY_LIMIT" default:"50"`

	ShutdownGracePeriod time.Duration `envconfig:"SHUTDOWN_GRACE_PERIOD" default:"10s"`
}

// Load reads configuration from the environment. A missing .env file is
// not an error; explicit environment variables always win.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CHAT", &cfg); err != nil {
		return Config{}, fmt.Errorf("process config: %w", err)
	}

	// envconfig's required tag only rejects unset variables; a variable
	// set to the empty string must fail the same way.
	if cfg.DatabaseDSN == "" {
		return Config{}, errors.New("DB_DSN must not be empty")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET must not be empty")
	}

	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return cfg, nil
}

// Location resolves the configured display timezone. An unknown zone name
// falls back to UTC; the returned error lets the caller log the fallback
// without treating it as fatal.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("invalid display timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
