package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/spiralmind/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.Equal(t, "spiralmind", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.Sampling.Rate)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout.Duration())
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "collector.internal:4318",
		Protocol:    "http/protobuf",
		Insecure:    false,
		ServiceName: "spiralmind-test",
		SampleRate:  0.25,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector.internal:4318", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, "spiralmind-test", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.25, cfg.Sampling.Rate)
	require.NoError(t, cfg.Validate())

	// Blank settings keep defaults.
	cfg = FromSettings(config.TelemetryConfig{}, "")
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "dev", cfg.ServiceVersion)
}

func TestConfig_Validate(t *testing.T) {
	enabled := func(mutate func(*Config)) *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		mutate(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		config *Config
		errMsg string
	}{
		{name: "valid default config", config: NewDefaultConfig()},
		{name: "disabled config skips validation", config: &Config{}},
		{name: "enabled local", config: enabled(func(*Config) {})},
		{
			name:   "missing endpoint",
			config: enabled(func(c *Config) { c.Endpoint = "" }),
			errMsg: "endpoint is required",
		},
		{
			name:   "missing service name",
			config: enabled(func(c *Config) { c.ServiceName = "" }),
			errMsg: "service_name is required",
		},
		{
			name:   "unknown protocol",
			config: enabled(func(c *Config) { c.Protocol = "thrift" }),
			errMsg: "protocol must be",
		},
		{
			name:   "insecure remote endpoint",
			config: enabled(func(c *Config) { c.Endpoint = "otel.example.com:4317" }),
			errMsg: "insecure connections to remote endpoints",
		},
		{
			name: "secure remote endpoint",
			config: enabled(func(c *Config) {
				c.Endpoint = "otel.example.com:4317"
				c.Insecure = false
			}),
		},
		{
			name:   "sampling rate too high",
			config: enabled(func(c *Config) { c.Sampling.Rate = 1.5 }),
			errMsg: "sampling.rate",
		},
		{
			name:   "zero export interval",
			config: enabled(func(c *Config) { c.Metrics.ExportInterval = 0 }),
			errMsg: "export_interval",
		},
		{
			name:   "zero shutdown timeout",
			config: enabled(func(c *Config) { c.Shutdown.Timeout = 0 }),
			errMsg: "shutdown.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		local    bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"127.0.1.1", true},
		{"[::1]:4317", true},
		{"http://localhost:4318", true},
		{"otel.example.com:4317", false},
		{"10.0.0.5:4317", false},
		{"localhost.evil.com:4317", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.local, cfg.isLocalEndpoint())
		})
	}
}
