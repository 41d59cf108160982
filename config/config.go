// Package config handles loading, merging and validating camstream
// configuration from JSON files and environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Log level and format constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the complete application configuration
type Config struct {
	Version string        `json:"version,omitempty"` // Semantic version of the config schema
	Server  ServerConfig  `json:"server"`
	Tap     TapConfig     `json:"tap,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty"`
	Logging LoggingConfig `json:"logging,omitempty"`
}

// ServerConfig identifies the camera server and how to reach it
type ServerConfig struct {
	Host        string        `json:"host"`                   // Hostname or IP of the camera server
	Port        int           `json:"port,omitempty"`         // HTTP port (default 8000)
	Username    string        `json:"username,omitempty"`     // Basic auth user, empty for open servers
	Password    string        `json:"password,omitempty"`     // Basic auth password
	UseTLS      bool          `json:"use_tls,omitempty"`      // Connect with TLS (HTTPS port on the server)
	TLS         TLSOptions    `json:"tls,omitempty"`          // TLS refinements, only read when UseTLS is set
	DialTimeout time.Duration `json:"dial_timeout,omitempty"` // Per-connection dial timeout (default 10s)
}

// TLSOptions refines TLS connections to the server. Camera servers commonly
// present self-signed or site-CA certificates, so extra trust roots and a
// verification escape hatch are first-class options.
type TLSOptions struct {
	CAFiles            []string `json:"ca_files,omitempty"`             // Additional trusted CA certificates (PEM files)
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty"` // Accept any certificate
	MinVersion         string   `json:"min_version,omitempty"`          // "1.2" (default) or "1.3"
}

// TapConfig controls the persistent event stream connection
type TapConfig struct {
	Enabled bool          `json:"enabled"` // Maintain the event tap (default true)
	Backoff BackoffConfig `json:"backoff,omitempty"`
}

// BackoffConfig shapes the reconnect schedule for the event tap.
// With Enabled false the tap reconnects immediately after every drop.
type BackoffConfig struct {
	Enabled      bool          `json:"enabled"`
	InitialDelay time.Duration `json:"initial_delay,omitempty"` // default 500ms
	MaxDelay     time.Duration `json:"max_delay,omitempty"`     // default 30s
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"` // default 9090
	Path    string `json:"path,omitempty"` // default /metrics
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // json, text
}

// Default returns the default configuration. Server.Host is left empty and
// must come from a file or environment override.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			DialTimeout: 10 * time.Second,
		},
		Tap: TapConfig{
			Enabled: true,
			Backoff: BackoffConfig{
				Enabled:      true,
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     30 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatJSON,
		},
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Server.DialTimeout < 0 {
		return errors.New("server.dial_timeout cannot be negative")
	}

	// Password without a username cannot form a credential pair
	if c.Server.Password != "" && c.Server.Username == "" {
		return errors.New("server.username is required when server.password is set")
	}

	switch c.Server.TLS.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("server.tls.min_version %q is not valid", c.Server.TLS.MinVersion)
	}

	if c.Tap.Backoff.Enabled {
		if c.Tap.Backoff.InitialDelay <= 0 {
			return errors.New("tap.backoff.initial_delay must be positive")
		}
		if c.Tap.Backoff.MaxDelay < c.Tap.Backoff.InitialDelay {
			return errors.New("tap.backoff.max_delay cannot be below initial_delay")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
		}
	}

	switch c.Logging.Level {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("logging.level %q is not valid", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("logging.format %q is not valid", c.Logging.Format)
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Redacted returns a copy with the server password masked, safe for logging
func (c *Config) Redacted() *Config {
	clone := c.Clone()
	if clone.Server.Password != "" {
		clone.Server.Password = "[REDACTED]"
	}
	return clone
}

// Address returns the host:port pair for the camera server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// String returns a JSON representation of the config with credentials masked
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Use secure file writing with validation
	return safeWriteFile(path, data)
}
