package config

import (
	"strings"
	"time"

	httpadapter "github.com/marmos91/dittobrowse/pkg/adapter/http"
	"github.com/marmos91/dittobrowse/pkg/gc"
	"github.com/marmos91/dittobrowse/pkg/listing"
	"github.com/marmos91/dittobrowse/pkg/metrics"
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
	"github.com/marmos91/dittobrowse/pkg/thumbnail"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans that default to true are seeded by Load (see boolDefaultsTrue)
//     and by GetDefaultConfig, never here
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyFilesystemDefaults(&cfg.Filesystem)
	applyListingDefaults(&cfg.Listing)
	applyCacheDefaults(&cfg.Cache)
	applyThumbnailsDefaults(&cfg.Thumbnails)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = metrics.DefaultPort
	}
}

// applyFilesystemDefaults sets backend defaults.
func applyFilesystemDefaults(cfg *FilesystemConfig) {
	if cfg.Type == "" {
		cfg.Type = "local"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Root == "" {
		switch cfg.Type {
		case "local":
			cfg.Root = "."
		default:
			cfg.Root = "/"
		}
	}

	if cfg.Local == nil {
		cfg.Local = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	// Defaults for every backend, so generated files document all of them
	if _, ok := cfg.Local["jail"]; !ok {
		cfg.Local["jail"] = false
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
	if _, ok := cfg.S3["bucket"]; !ok {
		cfg.S3["bucket"] = ""
	}
	if _, ok := cfg.S3["key_prefix"]; !ok {
		cfg.S3["key_prefix"] = ""
	}
	if _, ok := cfg.S3["page_size"]; !ok {
		cfg.S3["page_size"] = 1000
	}
}

// applyListingDefaults sets listing defaults.
func applyListingDefaults(cfg *ListingConfig) {
	if cfg.Limit == 0 {
		cfg.Limit = listing.DefaultLimit
	}
	if cfg.Order == "" {
		cfg.Order = string(listing.OrderShuffle)
	}
	cfg.Order = strings.ToLower(cfg.Order)
	// KeepUndated defaults to false: undated files are hidden
}

// applyCacheDefaults sets thumbnail cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = thumbcache.DefaultMaxEntries
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = thumbcache.DefaultQueueSize
	}
	if cfg.Store == "" {
		cfg.Store = "memory"
	}
	cfg.Store = strings.ToLower(cfg.Store)

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if _, ok := cfg.Badger["dir"]; !ok {
		cfg.Badger["dir"] = ""
	}

	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = gc.DefaultInterval
	}
	if cfg.Sweep.Timeout == 0 {
		cfg.Sweep.Timeout = gc.DefaultTimeout
	}
}

// applyThumbnailsDefaults sets generator defaults.
func applyThumbnailsDefaults(cfg *ThumbnailsConfig) {
	d := thumbnail.DefaultConfig()

	if cfg.MaxDimension == 0 {
		cfg.MaxDimension = d.MaxDimension
	}
	if cfg.Quality == 0 {
		cfg.Quality = d.Quality
	}
	if cfg.MaxSourceBytes == 0 {
		cfg.MaxSourceBytes = d.MaxSourceBytes
	}
	if cfg.Workers == 0 {
		cfg.Workers = d.Workers
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = d.Timeout
	}
	// RateLimit defaults to 0 (unlimited); Burst is derived from it
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// A config that never mentions the HTTP adapter (no port either) gets it
	// enabled, so a config built without Load still passes validation.
	if !cfg.HTTP.Enabled && cfg.HTTP.Port == 0 {
		cfg.HTTP.Enabled = true
	}

	applyHTTPDefaults(&cfg.HTTP)
}

// applyHTTPDefaults sets HTTP adapter defaults.
func applyHTTPDefaults(cfg *httpadapter.HTTPConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Cache: CacheConfig{
			Enabled: true,
			Sweep:   SweepConfig{Enabled: true},
		},
		Thumbnails: ThumbnailsConfig{
			AutoOrient: true,
		},
		Adapters: AdaptersConfig{
			HTTP: httpadapter.HTTPConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
