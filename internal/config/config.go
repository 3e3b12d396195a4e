// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/matthewbaird/backoffice/internal/logging"
)

// Item backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendREST   = "rest"
)

// Config is the back-office server configuration.
type Config struct {
	Port int `env:"PORT" envDefault:"8080"`
	// Backend selects where items live: sqlite, memory or rest.
	Backend     string `env:"BACKEND" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:backoffice.db?_pragma=foreign_keys(1)"`
	Seed        bool   `env:"SEED" envDefault:"true"`
	// SchemaDir is an optional directory of CUE entity definitions loaded in
	// addition to the built-in ones.
	SchemaDir string `env:"SCHEMA_DIR"`

	LogLevel string `env:"LOG_LEVEL"`
	LogDev   bool   `env:"LOG_DEV"`

	RelationCacheTTL time.Duration `env:"RELATION_CACHE_TTL" envDefault:"30s"`
	// APIBaseURL, when set, makes relation pickers fetch from a remote API
	// instead of the local registry.
	APIBaseURL string `env:"API_BASE_URL"`
	APIToken   string `env:"API_TOKEN"`

	DateLayout string `env:"DATE_LAYOUT" envDefault:"02/01/2006"`
	Locale     string `env:"LOCALE" envDefault:"en"`
}

// Load reads an optional .env file, then parses the environment.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return Parse()
}

// Parse parses the environment without reading .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	switch cfg.Backend {
	case BackendSQLite, BackendMemory:
	case BackendREST:
		if cfg.APIBaseURL == "" {
			return Config{}, fmt.Errorf("BACKEND=rest requires API_BASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown BACKEND %q", cfg.Backend)
	}
	return cfg, nil
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Dev: c.LogDev}
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
