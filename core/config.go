// Package core provides the shared foundation for the POS terminal client:
// configuration, structured logging, the error taxonomy, and the token
// storage abstraction used by the auth layer.
//
// Configuration follows a three-layer priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := core.NewConfig(
//	    core.WithBaseURL("https://pos-backend.example.com"),
//	    core.WithPollInterval(30*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can spell durations as
// strings ("30s") or as integer nanoseconds.
type Duration time.Duration

// UnmarshalJSON accepts either a JSON number (nanoseconds) or a string
// understood by time.ParseDuration.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", v)
	}
}

// MarshalJSON renders the duration in time.ParseDuration syntax
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalYAML accepts "30s"-style strings or integer nanoseconds
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, perr := time.ParseDuration(raw)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := value.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(ns))
	return nil
}

// MarshalYAML renders the duration in time.ParseDuration syntax
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all configuration options for the terminal client.
type Config struct {
	// Backend configuration
	Backend BackendConfig `json:"backend" yaml:"backend"`

	// Payment configuration
	Payment PaymentConfig `json:"payment" yaml:"payment"`

	// TokenStore configuration
	TokenStore TokenStoreConfig `json:"token_store" yaml:"token_store"`

	// Telemetry configuration (optional)
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Retry configuration for user-initiated re-submission affordances
	Retry RetryConfig `json:"retry" yaml:"retry"`

	// DeviceID identifies this terminal in request metadata.
	// Generated on first use when empty.
	DeviceID string `json:"device_id" yaml:"device_id"` // env: POSTERM_DEVICE_ID
}

// BackendConfig contains the remote REST backend settings.
type BackendConfig struct {
	// BaseURL is the backend root, e.g. https://pos-backend.example.com
	BaseURL string `json:"base_url" yaml:"base_url"` // env: POSTERM_BASE_URL

	// HTTPTimeout bounds every backend call. The original client let
	// requests hang forever; a bounded timeout is deliberate here.
	HTTPTimeout Duration `json:"http_timeout" yaml:"http_timeout"` // env: POSTERM_HTTP_TIMEOUT
}

// PaymentConfig contains payment lifecycle settings.
type PaymentConfig struct {
	// PollInterval is the delay between QR payment status checks.
	// Kept coarse to avoid overloading the status endpoint.
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"` // env: POSTERM_POLL_INTERVAL
}

// TokenStoreConfig selects where the bearer token is persisted.
// Provider "file" is the default for a standalone terminal; "redis" lets a
// fleet of terminals share a session backend; "memory" is for tests.
type TokenStoreConfig struct {
	Provider string `json:"provider" yaml:"provider"`   // env: POSTERM_TOKEN_STORE (memory|file|redis)
	FilePath string `json:"file_path" yaml:"file_path"` // env: POSTERM_TOKEN_FILE
	RedisURL string `json:"redis_url" yaml:"redis_url"` // env: POSTERM_REDIS_URL,REDIS_URL
	Key      string `json:"key" yaml:"key"`             // storage key for the token
}

// TelemetryConfig contains observability settings.
// Exporter "otlp" ships spans over gRPC; "stdout" pretty-prints them for
// development.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`           // env: POSTERM_TELEMETRY_ENABLED
	Exporter    string `json:"exporter" yaml:"exporter"`         // env: POSTERM_TELEMETRY_EXPORTER (otlp|stdout)
	Endpoint    string `json:"endpoint" yaml:"endpoint"`         // env: POSTERM_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT
	ServiceName string `json:"service_name" yaml:"service_name"` // env: OTEL_SERVICE_NAME
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // env: POSTERM_LOG_LEVEL
	Format string `json:"format" yaml:"format"` // env: POSTERM_LOG_FORMAT (json|text)
}

// RetryConfig defines retry settings with exponential backoff.
// Nothing in the client retries automatically; these govern the explicit
// retry affordances the front end offers after a failure.
type RetryConfig struct {
	MaxAttempts   int      `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay  Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay      Duration `json:"max_delay" yaml:"max_delay"`
	BackoffFactor float64  `json:"backoff_factor" yaml:"backoff_factor"`
}

// Option is a functional option for configuring the client.
// Options are applied in order and can return an error if the configuration
// is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
// The defaults can be overridden using environment variables or functional
// options.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Backend: BackendConfig{
			BaseURL:     "http://localhost:5000",
			HTTPTimeout: Duration(15 * time.Second),
		},
		Payment: PaymentConfig{
			PollInterval: Duration(30 * time.Second),
		},
		TokenStore: TokenStoreConfig{
			Provider: "file",
			FilePath: filepath.Join(home, ".posterm", "token"),
			Key:      "authToken",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Exporter:    "otlp",
			Endpoint:    "localhost:4317",
			ServiceName: "pos-terminal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  Duration(500 * time.Millisecond),
			MaxDelay:      Duration(5 * time.Second),
			BackoffFactor: 2.0,
		},
	}
}

// NewConfig creates a configuration by layering environment variables and
// the given options over the defaults, then validating the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.applyEnvironment()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying config option: %w", err)
		}
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.New().String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironment overlays recognized environment variables.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("POSTERM_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("POSTERM_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Backend.HTTPTimeout = Duration(d)
		}
	}
	if v := os.Getenv("POSTERM_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Payment.PollInterval = Duration(d)
		}
	}
	if v := os.Getenv("POSTERM_TOKEN_STORE"); v != "" {
		c.TokenStore.Provider = v
	}
	if v := os.Getenv("POSTERM_TOKEN_FILE"); v != "" {
		c.TokenStore.FilePath = v
	}
	if v := firstEnv("POSTERM_REDIS_URL", "REDIS_URL"); v != "" {
		c.TokenStore.RedisURL = v
	}
	if v := os.Getenv("POSTERM_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("POSTERM_TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = v
	}
	if v := firstEnv("POSTERM_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}
	if v := os.Getenv("POSTERM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("POSTERM_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("POSTERM_DEVICE_ID"); v != "" {
		c.DeviceID = v
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("%w: backend base URL", ErrMissingConfiguration)
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("%w: backend base URL must be http(s), got %q", ErrInvalidConfiguration, c.Backend.BaseURL)
	}
	if c.Backend.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http timeout must be positive", ErrInvalidConfiguration)
	}
	if c.Payment.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfiguration)
	}
	switch c.TokenStore.Provider {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("%w: unknown token store provider %q", ErrInvalidConfiguration, c.TokenStore.Provider)
	}
	if c.TokenStore.Provider == "file" && c.TokenStore.FilePath == "" {
		return fmt.Errorf("%w: token file path", ErrMissingConfiguration)
	}
	if c.TokenStore.Provider == "redis" && c.TokenStore.RedisURL == "" {
		return fmt.Errorf("%w: redis URL for token store", ErrMissingConfiguration)
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "otlp", "stdout":
		default:
			return fmt.Errorf("%w: unknown telemetry exporter %q", ErrInvalidConfiguration, c.Telemetry.Exporter)
		}
	}
	return nil
}

// LoadFromFile reads configuration from a JSON or YAML file and overlays it
// on the defaults plus environment.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	cfg.applyEnvironment()

	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config extension %q", ErrInvalidConfiguration, ext)
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.New().String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Functional options

// WithBaseURL sets the backend base URL
func WithBaseURL(url string) Option {
	return func(c *Config) error {
		if url == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		c.Backend.BaseURL = strings.TrimRight(url, "/")
		return nil
	}
}

// WithHTTPTimeout sets the per-request timeout for backend calls
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		c.Backend.HTTPTimeout = Duration(timeout)
		return nil
	}
}

// WithPollInterval sets the QR payment status poll interval
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return fmt.Errorf("poll interval must be positive")
		}
		c.Payment.PollInterval = Duration(interval)
		return nil
	}
}

// WithTokenStore selects the token persistence provider
func WithTokenStore(provider string) Option {
	return func(c *Config) error {
		c.TokenStore.Provider = provider
		return nil
	}
}

// WithTokenFile sets the path for the file token store
func WithTokenFile(path string) Option {
	return func(c *Config) error {
		c.TokenStore.FilePath = path
		return nil
	}
}

// WithRedisURL sets the Redis URL for the redis token store
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.TokenStore.RedisURL = url
		return nil
	}
}

// WithTelemetry enables telemetry with the given exporter and endpoint
func WithTelemetry(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = exporter
		if endpoint != "" {
			c.Telemetry.Endpoint = endpoint
		}
		return nil
	}
}

// WithLogLevel sets the minimum log level
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithDeviceID pins the terminal device identifier
func WithDeviceID(id string) Option {
	return func(c *Config) error {
		c.DeviceID = id
		return nil
	}
}
