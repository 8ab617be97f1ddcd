// Package config provides configuration loading for the storefront.
//
// Precedence, lowest to highest: DefaultConfig, the YAML file, then
// STOREFRONT_* environment variables (e.g. STOREFRONT_HTTP_ADDR,
// STOREFRONT_STORE_PATH, STOREFRONT_SESSION_IDLE_TIMEOUT).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STOREFRONT"

// Backend kinds.
const (
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Config represents the complete storefront configuration
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Store   StoreConfig   `yaml:"store"`
	NATS    NATSConfig    `yaml:"nats"`
	Session SessionConfig `yaml:"session"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	// Addr is the listen address (default: :8080)
	Addr string `yaml:"addr" split_words:"true"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// BackendConfig selects the catalog collaborator
type BackendConfig struct {
	// Kind is one of sqlite, nats, memory
	Kind string `yaml:"kind" split_words:"true"`
}

// StoreConfig configures the SQLite database
type StoreConfig struct {
	Path string `yaml:"path" split_words:"true"`
	// PollInterval is how often writes by other processes are checked for
	PollInterval time.Duration `yaml:"poll_interval" split_words:"true"`
}

// NATSConfig configures the JetStream catalog
type NATSConfig struct {
	// URL is the NATS server URL (ignored when Embedded)
	URL string `yaml:"url" split_words:"true"`
	// Embedded starts an in-process server
	Embedded bool   `yaml:"embedded" split_words:"true"`
	Bucket   string `yaml:"bucket" split_words:"true"`
	// StoreDir holds embedded JetStream data
	StoreDir string `yaml:"store_dir" split_words:"true"`
}

// SessionConfig configures client sessions
type SessionConfig struct {
	// IdleTimeout closes sessions with no requests for this long
	IdleTimeout   time.Duration `yaml:"idle_timeout" split_words:"true"`
	SweepInterval time.Duration `yaml:"sweep_interval" split_words:"true"`
	CookieName    string        `yaml:"cookie_name" split_words:"true"`
}

// AuthConfig configures password hashing
type AuthConfig struct {
	BcryptCost int `yaml:"bcrypt_cost" split_words:"true"`
}

// LogConfig configures slog
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level" split_words:"true"`
	// Format is text or json
	Format string `yaml:"format" split_words:"true"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Backend: BackendConfig{
			Kind: BackendSQLite,
		},
		Store: StoreConfig{
			Path:         "storefront.db",
			PollInterval: 2 * time.Second,
		},
		NATS: NATSConfig{
			Embedded: true,
			Bucket:   "PRODUCTS",
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
			CookieName:    "storefront_session",
		},
		Auth: AuthConfig{
			BcryptCost: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("http.shutdown_timeout must be positive")
	}

	switch c.Backend.Kind {
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
		if c.Store.PollInterval <= 0 {
			return fmt.Errorf("store.poll_interval must be positive")
		}
	case BackendNATS:
		if !c.NATS.Embedded && c.NATS.URL == "" {
			return fmt.Errorf("nats.url is required unless nats.embedded is set")
		}
		if c.NATS.Bucket == "" {
			return fmt.Errorf("nats.bucket is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("backend.kind must be one of sqlite, nats, memory (got %q)", c.Backend.Kind)
	}

	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields from STOREFRONT_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Load builds the effective configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		var err error
		if config, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
