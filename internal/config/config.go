// Package config provides configuration loading for spiralmind.
//
// Values come from, lowest precedence first: built-in defaults, the YAML
// file (~/.config/spiralmind/config.yaml), and SPIRALMIND_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds the complete spiralmind configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Reasoning ReasoningConfig `koanf:"reasoning"`
	Session   SessionConfig   `koanf:"session"`
	Gateway   GatewayConfig   `koanf:"gateway"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StoreConfig selects and configures knowledge persistence.
type StoreConfig struct {
	Backend         string `koanf:"backend"`
	Path            string `koanf:"path"`
	MaxExplanations int    `koanf:"max_explanations"` // 0 = unlimited
}

// ReasoningConfig tunes spiral expansion.
type ReasoningConfig struct {
	MaxDepth int   `koanf:"max_depth"`
	Hops     int   `koanf:"hops"` // > 1 enables the multi-hop walk
	Seed     int64 `koanf:"seed"` // 0 seeds from the clock
}

// SessionConfig bounds short-term memory.
type SessionConfig struct {
	Capacity    int `koanf:"capacity"`
	MaxSessions int `koanf:"max_sessions"`
}

// GatewayConfig configures external lookups.
type GatewayConfig struct {
	Providers     []string `koanf:"providers"` // "none" disables lookups
	Timeout       Duration `koanf:"timeout"`
	UserAgent     string   `koanf:"user_agent"`
	WikipediaURL  string   `koanf:"wikipedia_url"`
	DuckDuckGoURL string   `koanf:"duckduckgo_url"`
	RateLimit     float64  `koanf:"rate_limit"` // lookups per second, 0 = unlimited
	Burst         int      `koanf:"burst"`
}

// LoggingConfig selects level, encoding and stream.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Output string `koanf:"output"`
}

// TelemetryConfig holds OpenTelemetry trace export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc or http/protobuf
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := load(nil, nil)
	if err != nil {
		// defaultsYAML is a constant; failing to parse it is a programming error.
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return cfg
}

// resolveStorePath picks the backend's default file when no path is set.
func resolveStorePath(cfg *Config) {
	if cfg.Store.Path != "" {
		return
	}
	if cfg.Store.Backend == BackendSQLite {
		cfg.Store.Path = "~/.config/spiralmind/knowledge.db"
	} else {
		cfg.Store.Path = "~/.config/spiralmind/knowledge.json"
	}
}

// EnabledProviders returns the gateway providers with "none" and blanks removed.
func (g GatewayConfig) EnabledProviders() []string {
	out := make([]string, 0, len(g.Providers))
	for _, p := range g.Providers {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || p == "none" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("invalid store backend %q (must be %s or %s)", c.Store.Backend, BackendFile, BackendSQLite)
	}
	if c.Store.Path == "" {
		return errors.New("store path is required")
	}
	if c.Store.MaxExplanations < 0 {
		return fmt.Errorf("store max_explanations must be >= 0, got %d", c.Store.MaxExplanations)
	}

	if c.Reasoning.MaxDepth < 1 {
		return fmt.Errorf("reasoning max_depth must be >= 1, got %d", c.Reasoning.MaxDepth)
	}
	if c.Reasoning.Hops < 1 || c.Reasoning.Hops > c.Reasoning.MaxDepth {
		return fmt.Errorf("reasoning hops must be between 1 and max_depth (%d), got %d", c.Reasoning.MaxDepth, c.Reasoning.Hops)
	}

	if c.Session.Capacity < 1 {
		return fmt.Errorf("session capacity must be >= 1, got %d", c.Session.Capacity)
	}
	if c.Session.MaxSessions < 1 {
		return fmt.Errorf("session max_sessions must be >= 1, got %d", c.Session.MaxSessions)
	}

	for _, p := range c.Gateway.EnabledProviders() {
		if p != "wikipedia" && p != "duckduckgo" {
			return fmt.Errorf("unknown gateway provider %q", p)
		}
	}
	if c.Gateway.Timeout <= 0 {
		return errors.New("gateway timeout must be positive")
	}
	if c.Gateway.RateLimit < 0 {
		return fmt.Errorf("gateway rate_limit must be >= 0, got %v", c.Gateway.RateLimit)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("telemetry protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
		}
	}

	return nil
}
