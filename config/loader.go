package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
	FormatTOML ConfigFormat = "toml"
)

// DefaultEnvPrefix is the prefix of environment variable overrides
const DefaultEnvPrefix = "RUNTIMEAPI"

// Loader handles configuration loading from various sources
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Dotenv files consulted for overrides after the process environment
	envFiles []string

	// Default configuration
	defaultConfig *Config
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	paths := []string{".", "./config", "./configs", "/etc/runtimeapi"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".runtimeapi"))
	}

	return &Loader{
		searchPaths:   paths,
		envPrefix:     DefaultEnvPrefix,
		envFiles:      []string{".env"},
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetEnvFiles sets the dotenv files read for overrides. Missing files are skipped.
func (l *Loader) SetEnvFiles(files ...string) *Loader {
	l.envFiles = files
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// Load loads configuration from the specified file, or discovers one when
// filename is empty.
func (l *Loader) Load(filename string) (*Config, error) {
	if filename == "" {
		return l.AutoLoad()
	}

	config, err := l.loadFromFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from file %s: %w", filename, err)
	}
	return config, nil
}

// LoadWithPath is like Load but also returns the file the configuration
// was read from. The path is empty when no file was found and the defaults
// were used.
func (l *Loader) LoadWithPath(filename string) (*Config, string, error) {
	if filename == "" {
		found, err := l.findConfigFile()
		if errors.Is(err, ErrConfigFileNotFound) {
			config, err := l.finish(l.defaults())
			return config, "", err
		}
		if err != nil {
			return nil, "", err
		}
		filename = found
	}

	config, err := l.Load(filename)
	if err != nil {
		return nil, "", err
	}
	return config, filename, nil
}

// LoadFromFile loads configuration from a specific file
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	return l.loadFromFile(filename)
}

// LoadFromReader loads configuration from an io.Reader. Environment
// overrides are not applied.
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	return l.parseConfig(data, format)
}

// AutoLoad automatically discovers and loads configuration
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, err := l.findConfigFile()
	if errors.Is(err, ErrConfigFileNotFound) {
		return l.finish(l.defaults())
	}
	if err != nil {
		return nil, err
	}

	return l.loadFromFile(configFile)
}

// FormatFromPath determines the configuration format from a file extension
func FormatFromPath(path string) (ConfigFormat, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"runtimeapi.yaml", "runtimeapi.yml",
		"config.yaml", "config.yml",
		"runtimeapi.toml", "config.toml",
		"runtimeapi.json", "config.json",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}

	return "", ErrConfigFileNotFound
}

// loadFromFile loads configuration from a file
func (l *Loader) loadFromFile(filename string) (*Config, error) {
	format, err := FormatFromPath(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}

	return l.finish(config)
}

// finish applies environment overrides and validates
func (l *Loader) finish(config *Config) (*Config, error) {
	if err := l.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// parseConfig decodes data over a copy of the defaults, so fields absent
// from the document keep their default values.
func (l *Loader) parseConfig(data []byte, format ConfigFormat) (*Config, error) {
	config := l.defaults()

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return config, nil
}

// defaults returns a copy of the default configuration that is safe to decode into
func (l *Loader) defaults() *Config {
	base := l.defaultConfig
	if base == nil {
		base = DefaultConfig()
	}

	config := *base
	config.App.Metadata = cloneMap(base.App.Metadata)
	config.Log.Fields = cloneMap(base.Log.Fields)
	return &config
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// lookupEnv reads a variable from the process environment, then from the
// dotenv files.
func (l *Loader) lookupEnv(dotenv map[string]string, name string) string {
	key := l.envPrefix + "_" + name
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return dotenv[key]
}

func (l *Loader) readEnvFiles() (map[string]string, error) {
	merged := make(map[string]string)
	for _, file := range l.envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEnvironmentVarError, file, err)
		}
		for k, v := range values {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

// loadFromEnv loads configuration overrides from environment variables
func (l *Loader) loadFromEnv(config *Config) error {
	dotenv, err := l.readEnvFiles()
	if err != nil {
		return err
	}
	env := func(name string) string { return l.lookupEnv(dotenv, name) }

	// App configuration
	if val := env("APP_NAME"); val != "" {
		config.App.Name = val
	}
	if val := env("APP_VERSION"); val != "" {
		config.App.Version = val
	}
	if val := env("APP_ENVIRONMENT"); val != "" {
		config.App.Environment = Environment(val)
	}
	if val := env("APP_DEBUG"); val != "" {
		config.App.Debug = strings.ToLower(val) == "true"
	}

	// Log configuration
	if val := env("LOG_LEVEL"); val != "" {
		config.Log.Level = LogLevel(strings.ToLower(val))
	}
	if val := env("LOG_FORMAT"); val != "" {
		config.Log.Format = val
	}
	if val := env("LOG_OUTPUT"); val != "" {
		config.Log.Output = val
	}

	// Subsystem configuration
	if val := env("SUBSYSTEM_MAILBOX_SIZE"); val != "" {
		size, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: %s_SUBSYSTEM_MAILBOX_SIZE: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Subsystem.MailboxSize = size
	}

	// Metrics configuration
	if val := env("METRICS_ENABLED"); val != "" {
		config.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := env("METRICS_PORT"); val != "" {
		port, err := parsePort(val)
		if err != nil {
			return fmt.Errorf("%w: %s_METRICS_PORT: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Metrics.HTTP.Port = port
	}

	// Provider configuration
	if val := env("PROVIDER_SNAPSHOT_PATH"); val != "" {
		config.Provider.SnapshotPath = val
	}

	return nil
}

// Helper function to parse port number
func parsePort(val string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, err
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port number: %d", port)
	}
	return port, nil
}
