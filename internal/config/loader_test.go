package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temporary directory for the test.
func setupTestHome(t *testing.T) string {
	t.Helper()

	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	return tmpHome
}

// writeConfig writes content to ~/.config/spiralmind/config.yaml.
func writeConfig(t *testing.T, home, content string, perm os.FileMode) string {
	t.Helper()

	configDir := filepath.Join(home, ".config", "spiralmind")
	require.NoError(t, os.MkdirAll(configDir, 0o700))

	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), perm))
	return configPath
}

func TestLoad_ValidYAML(t *testing.T) {
	home := setupTestHome(t)

	configPath := writeConfig(t, home, `server:
  http_port: 9292
  shutdown_timeout: 3s
store:
  backend: sqlite
reasoning:
  max_depth: 3
  hops: 2
  seed: 42
gateway:
  providers: [duckduckgo]
  timeout: 2s
logging:
  level: debug
  output: stderr
`, 0o600)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9292, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "~/.config/spiralmind/knowledge.db", cfg.Store.Path)
	assert.Equal(t, 3, cfg.Reasoning.MaxDepth)
	assert.Equal(t, 2, cfg.Reasoning.Hops)
	assert.Equal(t, int64(42), cfg.Reasoning.Seed)
	assert.Equal(t, []string{"duckduckgo"}, cfg.Gateway.Providers)
	assert.Equal(t, 2*time.Second, cfg.Gateway.Timeout.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	// Untouched keys keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 5, cfg.Session.Capacity)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	home := setupTestHome(t)

	configPath := writeConfig(t, home, `server:
  http_port: 9292
`, 0o600)

	t.Setenv("SPIRALMIND_SERVER_HTTP_PORT", "9393")
	t.Setenv("SPIRALMIND_STORE_MAX_EXPLANATIONS", "8")
	t.Setenv("SPIRALMIND_GATEWAY_PROVIDERS", "wikipedia, none")
	t.Setenv("SPIRALMIND_GATEWAY_TIMEOUT", "750ms")
	t.Setenv("SPIRALMIND_TELEMETRY_ENABLED", "true")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9393, cfg.Server.Port, "environment beats file")
	assert.Equal(t, 8, cfg.Store.MaxExplanations)
	assert.Equal(t, []string{"wikipedia", "none"}, cfg.Gateway.Providers)
	assert.Equal(t, []string{"wikipedia"}, cfg.Gateway.EnabledProviders())
	assert.Equal(t, 750*time.Millisecond, cfg.Gateway.Timeout.Duration())
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_DefaultPath(t *testing.T) {
	home := setupTestHome(t)
	writeConfig(t, home, `session:
  capacity: 9
`, 0o600)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Session.Capacity)
}

func TestLoad_MissingFile(t *testing.T) {
	home := setupTestHome(t)

	cfg, err := Load(filepath.Join(home, ".config", "spiralmind", "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	home := setupTestHome(t)
	configPath := writeConfig(t, home, "server: [unclosed\n", 0o600)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_Validation(t *testing.T) {
	home := setupTestHome(t)
	configPath := writeConfig(t, home, `store:
  backend: postgres
`, 0o600)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoad_PathTraversal(t *testing.T) {
	setupTestHome(t)

	_, err := Load("../../../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be in ~/.config/spiralmind/ or /etc/spiralmind/")
}

func TestLoad_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	home := setupTestHome(t)
	configPath := writeConfig(t, home, "server:\n  http_port: 9292\n", 0o644)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_ReadOnlyPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	home := setupTestHome(t)
	configPath := writeConfig(t, home, "server:\n  http_port: 9292\n", 0o400)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 9292, cfg.Server.Port)
}

func TestLoad_FileTooLarge(t *testing.T) {
	home := setupTestHome(t)

	// ~2MB, over the 1MB limit.
	largeContent := bytes.Repeat([]byte("# comment line\n"), 150000)
	configPath := writeConfig(t, home, string(largeContent), 0o600)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		key       string
		value     string
		wantPath  string
		wantValue interface{}
	}{
		{"SPIRALMIND_SERVER_HTTP_PORT", "1", "server.http_port", "1"},
		{"SPIRALMIND_STORE_BACKEND", "sqlite", "store.backend", "sqlite"},
		{"SPIRALMIND_GATEWAY_PROVIDERS", "a, b", "gateway.providers", []string{"a", "b"}},
		{"SPIRALMIND_DEBUG", "1", "debug", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			path, value := envKey(tt.key, tt.value)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := setupTestHome(t)

	dir, err := EnsureConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "spiralmind"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}
}

func TestExpandPath(t *testing.T) {
	home := setupTestHome(t)

	got, err := ExpandPath("~/.config/spiralmind/knowledge.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "spiralmind", "knowledge.json"), got)

	got, err = ExpandPath("/var/lib/spiralmind/kb.json")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/spiralmind/kb.json", got)

	got, err = ExpandPath("relative/kb.json")
	require.NoError(t, err)
	assert.Equal(t, "relative/kb.json", got)
}
