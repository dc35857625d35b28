// Package config provides configuration loading for deliverd.
package config

import (
	"fmt"
	"time"
)

// Config is the full deliverd configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Store   StoreConfig   `koanf:"store"`
	NATS    NATSConfig    `koanf:"nats"`
	Rules   RulesConfig   `koanf:"rules"`
	Flow    FlowConfig    `koanf:"flow"`
	Fix     FixConfig     `koanf:"fix"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig selects the zap preset.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `koanf:"development"`
}

// StoreConfig selects flow and session persistence.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `koanf:"backend"`
	Redis   RedisConfig `koanf:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// NATSConfig configures event publishing. Publishing is disabled when URL
// is empty.
type NATSConfig struct {
	URL string `koanf:"url"`
}

// RulesConfig points at the operator rules file. Empty means built-in
// defaults only.
type RulesConfig struct {
	Path  string `koanf:"path"`
	Watch bool   `koanf:"watch"`
}

// FlowConfig tunes the orchestrator.
type FlowConfig struct {
	PhaseTimeout time.Duration `koanf:"phase_timeout"`
	// ReportDir is where the built-in report generator writes delivery
	// reports. Empty means the OS temp dir.
	ReportDir string `koanf:"report_dir"`
}

// FixConfig tunes the built-in remediation runner.
type FixConfig struct {
	// ProbeURL is the health endpoint retry-shaped strategies re-check.
	// Empty disables probing.
	ProbeURL string `koanf:"probe_url"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = "localhost:6379"
	}
	if cfg.Flow.PhaseTimeout == 0 {
		cfg.Flow.PhaseTimeout = 5 * time.Minute
	}
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("config: store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: store.backend %q is not one of memory, redis", c.Store.Backend)
	}
	if c.Flow.PhaseTimeout < 0 {
		return fmt.Errorf("config: flow.phase_timeout must not be negative")
	}
	return nil
}
