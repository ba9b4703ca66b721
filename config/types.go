// Package config provides configuration management for the runtime API service
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal:
		return true
	default:
		return false
	}
}

// Log formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config represents the complete service configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app" toml:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log" toml:"log"`

	// Runtime API subsystem configuration
	Subsystem SubsystemConfig `yaml:"subsystem" json:"subsystem" toml:"subsystem"`

	// Metrics and monitoring configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" toml:"metrics"`

	// State provider configuration
	Provider ProviderConfig `yaml:"provider" json:"provider" toml:"provider"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Application name
	Name string `yaml:"name" json:"name" toml:"name"`

	// Application version
	Version string `yaml:"version" json:"version" toml:"version"`

	// Deployment environment
	Environment Environment `yaml:"environment" json:"environment" toml:"environment"`

	// Debug mode
	Debug bool `yaml:"debug" json:"debug" toml:"debug"`

	// Application metadata
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty" toml:"metadata,omitempty"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level" toml:"level"`

	// Log format (console, json)
	Format string `yaml:"format" json:"format" toml:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" toml:"output"`

	// Enable colored console output
	Color bool `yaml:"color" json:"color" toml:"color"`

	// Fields to include in every log line
	Fields map[string]string `yaml:"fields,omitempty" json:"fields,omitempty" toml:"fields,omitempty"`
}

// SubsystemConfig contains runtime API subsystem settings
type SubsystemConfig struct {
	// Mailbox capacity
	MailboxSize int `yaml:"mailbox_size" json:"mailbox_size" toml:"mailbox_size"`

	// How long Stop waits for the loop to conclude
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" toml:"shutdown_timeout"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	// Record request outcomes in Prometheus; when false a no-op recorder is used
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// HTTP server exposing metrics and health
	HTTP HTTPMonitorConfig `yaml:"http" json:"http" toml:"http"`
}

// HTTPMonitorConfig contains HTTP monitoring server settings
type HTTPMonitorConfig struct {
	// Enable HTTP monitoring server
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// HTTP server address
	Address string `yaml:"address" json:"address" toml:"address"`

	// HTTP server port
	Port int `yaml:"port" json:"port" toml:"port"`

	// Metrics endpoint path
	MetricsPath string `yaml:"metrics_path" json:"metrics_path" toml:"metrics_path"`

	// Health endpoint path
	HealthPath string `yaml:"health_path" json:"health_path" toml:"health_path"`
}

// ProviderConfig contains state provider settings
type ProviderConfig struct {
	// Path of the state snapshot document (yaml or json)
	SnapshotPath string `yaml:"snapshot_path" json:"snapshot_path" toml:"snapshot_path"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "runtime-api",
			Version:     "1.0.0",
			Environment: EnvDevelopment,
			Debug:       false,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatConsole,
			Output: "stdout",
			Color:  true,
		},
		Subsystem: SubsystemConfig{
			MailboxSize:     1024,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			HTTP: HTTPMonitorConfig{
				Enabled:     true,
				Address:     "0.0.0.0",
				Port:        9615,
				MetricsPath: "/metrics",
				HealthPath:  "/health",
			},
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}

	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	if c.Log.Format != "" && c.Log.Format != LogFormatConsole && c.Log.Format != LogFormatJSON {
		return ErrInvalidLogFormat
	}

	if c.Subsystem.MailboxSize <= 0 {
		return ErrInvalidMailboxSize
	}
	if c.Subsystem.ShutdownTimeout < 0 {
		return ErrInvalidShutdownTimeout
	}

	// port 0 binds a free port
	if c.Metrics.HTTP.Enabled {
		if c.Metrics.HTTP.Port < 0 || c.Metrics.HTTP.Port > 65535 {
			return ErrInvalidPort
		}
	}

	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// IsDebugEnabled returns true if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == EnvDevelopment
}

// Duration is a time.Duration that decodes from "5s"-style strings in YAML,
// JSON and TOML alike. Integers are read as nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(ns)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	if s, err := strconv.Unquote(string(data)); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	return d.UnmarshalText(data)
}
