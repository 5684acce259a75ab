package config

import (
	"github.com/marmos91/dittobrowse/pkg/metrics"
	promMetrics "github.com/marmos91/dittobrowse/pkg/metrics/prometheus"
	"github.com/marmos91/dittobrowse/pkg/resolver"
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
	"github.com/marmos91/dittobrowse/pkg/thumbnail"
	"github.com/marmos91/dittobrowse/pkg/vfs/s3fs"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// HTTP is the collector for the HTTP adapter (never nil, uses noop if disabled)
	HTTP metrics.HTTPMetrics

	// The collectors below are nil when disabled; each component falls back
	// to its own noop.
	Thumbcache thumbcache.CacheMetrics
	Resolver   resolver.Metrics
	Thumbnail  thumbnail.Metrics
	S3         s3fs.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// Parameters:
//   - cfg: The complete DittoBrowse configuration
//
// Returns:
//   - MetricsResult containing all metrics components
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			HTTP: metrics.NewNoopHTTPMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:     server,
		HTTP:       promMetrics.NewHTTPMetrics(),
		Thumbcache: metrics.NewThumbcacheMetrics(),
		Resolver:   metrics.NewResolverMetrics(),
		Thumbnail:  metrics.NewThumbnailMetrics(),
		S3:         metrics.NewS3Metrics(),
	}
}
