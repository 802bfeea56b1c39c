// Package config reads the storefront runtime configuration from environment
// variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"
)

// Runtime modes.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// Config is the storefront runtime configuration.
type Config struct {
	Mode      string        `env:"STOREFRONT_RUNTIME_MODE" envDefault:"auto"`
	BaseURL   string        `env:"STOREFRONT_API_BASE_URL"`
	Token     string        `env:"STOREFRONT_API_TOKEN"`
	Timeout   time.Duration `env:"STOREFRONT_API_TIMEOUT" envDefault:"10s"`
	CartDB    string        `env:"STOREFRONT_CART_DB"`
	CartScope string        `env:"STOREFRONT_CART_SCOPE" envDefault:"storefront"`
	// AsyncPersist decouples cart writes from mutations.
	AsyncPersist   bool          `env:"STOREFRONT_CART_ASYNC_PERSIST" envDefault:"false"`
	CacheRetention time.Duration `env:"STOREFRONT_CACHE_RETENTION" envDefault:"60s"`
	MockSeed       string        `env:"STOREFRONT_MOCK_PRODUCT_SEED"`
	LogLevel       string        `env:"STOREFRONT_LOG_LEVEL" envDefault:"info"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.CartDB = strings.TrimSpace(cfg.CartDB)
	cfg.MockSeed = strings.TrimSpace(cfg.MockSeed)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and the mode.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeAuto, ModeHTTP, ModeMock:
	default:
		return fmt.Errorf("config: unsupported STOREFRONT_RUNTIME_MODE value %q", c.Mode)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: STOREFRONT_API_BASE_URL must be an absolute URL, got %q", c.BaseURL)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: STOREFRONT_API_TIMEOUT must not be negative")
	}
	if c.CacheRetention < 0 {
		return fmt.Errorf("config: STOREFRONT_CACHE_RETENTION must not be negative")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: STOREFRONT_LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the parsed log level, defaulting to info.
func (c Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
