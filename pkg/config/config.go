package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	httpadapter "github.com/marmos91/dittobrowse/pkg/adapter/http"
	"github.com/spf13/viper"
)

// Config represents the complete DittoBrowse configuration.
//
// This structure captures all configurable aspects of the browser including:
//   - Logging configuration
//   - Server-wide settings (shutdown, metrics)
//   - Filesystem backend selection and configuration (backend-specific)
//   - Listing limits and ordering
//   - Thumbnail cache and generator tuning
//   - Protocol adapter configurations
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOBROWSE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each filesystem backend reads its own options from a type-specific section
// (filesystem.local, filesystem.s3, filesystem.memory). Only the section
// matching filesystem.type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Filesystem selects the backend that holds the browsed tree
	Filesystem FilesystemConfig `mapstructure:"filesystem"`

	// Listing controls directory listings
	Listing ListingConfig `mapstructure:"listing"`

	// Cache controls the thumbnail cache
	Cache CacheConfig `mapstructure:"cache"`

	// Thumbnails controls thumbnail generation
	Thumbnails ThumbnailsConfig `mapstructure:"thumbnails"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig configures Prometheus metrics collection and exposure.
type MetricsConfig struct {
	// Enabled turns on metric collection and the /metrics listener
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics listener port
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// FilesystemConfig selects the backend and the directory that is browsed.
type FilesystemConfig struct {
	// Type specifies which backend to use
	// Valid values: local, s3, memory
	Type string `mapstructure:"type" validate:"required,oneof=local s3 memory"`

	// Root is the browsed directory. Nothing outside it is ever served.
	Root string `mapstructure:"root" validate:"required"`

	// Local contains local-disk options
	// Only used when Type = "local"
	Local map[string]any `mapstructure:"local"`

	// S3 contains S3 options
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Memory contains in-memory options
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`
}

// ListingConfig controls directory listings.
type ListingConfig struct {
	// Limit caps the number of entries read from one directory
	Limit int `mapstructure:"limit" validate:"min=0"`

	// Order sorts each listing section
	// Valid values: shuffle, name, mtime
	Order string `mapstructure:"order" validate:"required,oneof=shuffle name mtime"`

	// KeepUndated lists files that have no modification time
	KeepUndated bool `mapstructure:"keep_undated"`
}

// CacheConfig controls the thumbnail cache.
type CacheConfig struct {
	// Enabled turns the cache on. Without it every thumbnail is regenerated.
	Enabled bool `mapstructure:"enabled"`

	// MaxEntries bounds the number of cached thumbnails
	MaxEntries int `mapstructure:"max_entries" validate:"min=0"`

	// QueueSize is the cache inbox length
	QueueSize int `mapstructure:"queue_size" validate:"min=0"`

	// Store selects where thumbnail bytes live
	// Valid values: memory, badger
	Store string `mapstructure:"store" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB options
	// Only used when Store = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// Sweep configures periodic removal of stale entries
	Sweep SweepConfig `mapstructure:"sweep"`
}

// SweepConfig configures the background cache sweeper.
type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// ThumbnailsConfig controls thumbnail generation.
type ThumbnailsConfig struct {
	// MaxDimension bounds thumbnail width and height in pixels
	MaxDimension int `mapstructure:"max_dimension" validate:"min=1"`

	// Quality is the JPEG quality (1-100)
	Quality int `mapstructure:"quality" validate:"min=1,max=100"`

	// MaxSourceBytes refuses to decode larger images
	MaxSourceBytes int64 `mapstructure:"max_source_bytes" validate:"min=1"`

	// AutoOrient applies EXIF orientation
	AutoOrient bool `mapstructure:"auto_orient"`

	// Workers is the number of concurrent decoders
	Workers int `mapstructure:"workers" validate:"min=1"`

	// RateLimit admits this many generations per second (0 = unlimited)
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`

	// Burst is the rate limiter bucket size
	Burst int `mapstructure:"burst" validate:"min=0"`

	// Timeout bounds a single generation
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// HTTP contains the web adapter configuration.
	// Uses the http.HTTPConfig type directly to avoid duplication.
	HTTP httpadapter.HTTPConfig `mapstructure:"http"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOBROWSE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DITTOBROWSE_ prefix and underscores
	// Example: DITTOBROWSE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOBROWSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans default to true can't be told apart from an explicit false
	// after unmarshalling, so they are seeded here instead of ApplyDefaults.
	// Registering them also lets AutomaticEnv override them.
	for _, key := range boolDefaultsTrue {
		v.SetDefault(key, true)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittobrowse/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// boolDefaultsTrue lists the keys whose default is true.
var boolDefaultsTrue = []string{
	"cache.enabled",
	"cache.sweep.enabled",
	"thumbnails.auto_orient",
	"adapters.http.enabled",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittobrowse")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittobrowse")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
