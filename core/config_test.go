package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:5000", cfg.Backend.BaseURL)
	assert.Equal(t, Duration(15*time.Second), cfg.Backend.HTTPTimeout)
	assert.Equal(t, Duration(30*time.Second), cfg.Payment.PollInterval)
	assert.Equal(t, "file", cfg.TokenStore.Provider)
	assert.Equal(t, "authToken", cfg.TokenStore.Key)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestNewConfigAppliesOptions(t *testing.T) {
	cfg, err := NewConfig(
		WithBaseURL("https://pos.example.com/"),
		WithHTTPTimeout(5*time.Second),
		WithPollInterval(time.Second),
		WithTokenStore("memory"),
		WithLogLevel("debug"),
	)
	require.NoError(t, err)

	assert.Equal(t, "https://pos.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, Duration(5*time.Second), cfg.Backend.HTTPTimeout)
	assert.Equal(t, Duration(time.Second), cfg.Payment.PollInterval)
	assert.Equal(t, "memory", cfg.TokenStore.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.DeviceID, "device ID should be generated when unset")
}

func TestNewConfigEnvironmentLayer(t *testing.T) {
	t.Setenv("POSTERM_BASE_URL", "https://env.example.com")
	t.Setenv("POSTERM_POLL_INTERVAL", "10s")
	t.Setenv("POSTERM_TOKEN_STORE", "memory")
	t.Setenv("POSTERM_DEVICE_ID", "till-7")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, Duration(10*time.Second), cfg.Payment.PollInterval)
	assert.Equal(t, "till-7", cfg.DeviceID)
}

func TestOptionsOverrideEnvironment(t *testing.T) {
	t.Setenv("POSTERM_BASE_URL", "https://env.example.com")
	t.Setenv("POSTERM_TOKEN_STORE", "memory")

	cfg, err := NewConfig(WithBaseURL("https://option.example.com"))
	require.NoError(t, err)

	assert.Equal(t, "https://option.example.com", cfg.Backend.BaseURL)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scheme", func(c *Config) { c.Backend.BaseURL = "ftp://x" }},
		{"empty base url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"zero timeout", func(c *Config) { c.Backend.HTTPTimeout = 0 }},
		{"zero poll interval", func(c *Config) { c.Payment.PollInterval = 0 }},
		{"unknown store", func(c *Config) { c.TokenStore.Provider = "etcd" }},
		{"redis without url", func(c *Config) {
			c.TokenStore.Provider = "redis"
			c.TokenStore.RedisURL = ""
		}},
		{"unknown exporter", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "posterm.yaml")
	content := []byte(`
backend:
  base_url: https://file.example.com
  http_timeout: 20s
payment:
  poll_interval: 45s
token_store:
  provider: memory
logging:
  level: debug
  format: json
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://file.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, Duration(20*time.Second), cfg.Backend.HTTPTimeout)
	assert.Equal(t, Duration(45*time.Second), cfg.Payment.PollInterval)
	assert.Equal(t, "memory", cfg.TokenStore.Provider)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "posterm.json")
	content := []byte(`{"backend":{"base_url":"https://json.example.com","http_timeout":10000000000},"token_store":{"provider":"memory"}}`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://json.example.com", cfg.Backend.BaseURL)
}

func TestLoadFromFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "posterm.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o600))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
