// Package config handles configuration loading and validation for porter.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	Database DatabaseConfig `yaml:"database"`
	DataDir  string         `yaml:"-"` // set by caller, not from config file
}

// RemoteConfig identifies the authoritative task store.
type RemoteConfig struct {
	// BaseURL is the root of the task store API.
	BaseURL string `yaml:"base_url"`
	// Token is the bearer token sent on every request.
	Token string `yaml:"token"`
	// OwnerID scopes every query and write to one account.
	OwnerID string `yaml:"owner_id"`
	// PollInterval controls how often the push subscription re-queries.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// WriteTimeout is the per-write budget during reconciliation.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// ProbeInterval is how often reachability is re-checked.
	ProbeInterval time.Duration `yaml:"probe_interval"`
	// Debounce collapses connectivity flaps within this window.
	Debounce time.Duration `yaml:"debounce"`
}

// DatabaseConfig holds SQLite tuning options.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			PollInterval: 3 * time.Second,
		},
		Sync: SyncConfig{
			WriteTimeout:  15 * time.Second,
			ProbeInterval: 5 * time.Second,
			Debounce:      500 * time.Millisecond,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the
// provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Remote.PollInterval <= 0 {
		c.Remote.PollInterval = defaults.Remote.PollInterval
	}
	if c.Sync.WriteTimeout <= 0 {
		c.Sync.WriteTimeout = defaults.Sync.WriteTimeout
	}
	if c.Sync.ProbeInterval <= 0 {
		c.Sync.ProbeInterval = defaults.Sync.ProbeInterval
	}
	if c.Sync.Debounce <= 0 {
		c.Sync.Debounce = defaults.Sync.Debounce
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Remote.BaseURL != "" && !strings.HasPrefix(c.Remote.BaseURL, "http") {
		return fmt.Errorf("remote.base_url must be an http(s) URL")
	}

	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database pool sizes must not be negative")
	}

	return nil
}

// RemoteConfigured reports whether a remote store is configured. Without
// one, porter runs purely locally and every write queues.
func (c *Config) RemoteConfigured() bool {
	return c.Remote.BaseURL != "" && c.Remote.OwnerID != ""
}
