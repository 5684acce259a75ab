package config

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/gc"
	"github.com/marmos91/dittobrowse/pkg/listing"
	"github.com/marmos91/dittobrowse/pkg/registry"
	"github.com/marmos91/dittobrowse/pkg/resolver"
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
	"github.com/marmos91/dittobrowse/pkg/thumbnail"
	"github.com/marmos91/dittobrowse/pkg/vfs"
)

// InitializeRegistry creates a fully configured Registry from the provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Creates the filesystem backend from cfg.Filesystem
//  2. Canonicalizes the served root through that backend
//  3. Creates the lister, thumbnail cache, generator and sweeper
//  4. Hands everything to registry.New
//
// Nothing is started. The caller runs reg.Start() and, on shutdown, reg.Close().
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: Complete configuration loaded from config file
//   - m: Metrics collectors from InitializeMetrics (nil = no metrics)
//
// Returns:
//   - *registry.Registry: Fully initialized registry
//   - error: If any component cannot be created. Anything already created is released.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, err := config.InitializeRegistry(ctx, cfg, config.InitializeMetrics(cfg))
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
func InitializeRegistry(ctx context.Context, cfg *Config, m *MetricsResult) (reg *registry.Registry, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if m == nil {
		m = &MetricsResult{}
	}

	logger.Debug("Initializing registry from configuration")

	// Step 1: Filesystem
	fsys, err := CreateFilesystem(ctx, &cfg.Filesystem, m.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem: %w", err)
	}
	defer func() {
		if err != nil {
			closeFilesystem(fsys)
		}
	}()
	logger.Debug("Filesystem %q created", cfg.Filesystem.Type)

	// Step 2: Root
	res, err := resolver.New(ctx, cfg.Filesystem.Root, fsys, resolver.WithMetrics(m.Resolver))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", cfg.Filesystem.Root, err)
	}
	logger.Info("Serving %s", res.Root())

	// Step 3: Listing
	order, err := listing.ParseOrder(cfg.Listing.Order)
	if err != nil {
		return nil, err
	}
	lister := listing.New(fsys, res,
		listing.WithLimit(cfg.Listing.Limit),
		listing.WithOrder(order),
		listing.WithKeepUndated(cfg.Listing.KeepUndated),
	)

	// Step 4: Cache and sweeper
	cache, collector, err := createCache(ctx, cfg, fsys, m)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil && cache != nil {
			cache.Close()
		}
	}()

	// Step 5: Thumbnails
	generator := thumbnail.NewGenerator(fsys, thumbnail.Config{
		MaxDimension:   cfg.Thumbnails.MaxDimension,
		Quality:        cfg.Thumbnails.Quality,
		MaxSourceBytes: cfg.Thumbnails.MaxSourceBytes,
		AutoOrient:     cfg.Thumbnails.AutoOrient,
		Workers:        cfg.Thumbnails.Workers,
		RateLimit:      cfg.Thumbnails.RateLimit,
		Burst:          cfg.Thumbnails.Burst,
		Timeout:        cfg.Thumbnails.Timeout,
	}, thumbnail.WithGeneratorMetrics(m.Thumbnail))

	// A nil *thumbcache.Cache must not become a non-nil interface.
	var serviceCache thumbnail.Cache
	if cache != nil {
		serviceCache = cache
	}
	service := thumbnail.NewService(serviceCache, generator,
		thumbnail.WithServiceMetrics(m.Thumbnail),
		thumbnail.WithServiceTimeout(cfg.Thumbnails.Timeout),
	)

	reg, err = registry.New(registry.Components{
		VFS:        fsys,
		Resolver:   res,
		Lister:     lister,
		Thumbnails: service,
		Generator:  generator,
		Cache:      cache,
		Collector:  collector,
	})
	if err != nil {
		return nil, err
	}

	return reg, nil
}

// createCache builds the thumbnail cache and its sweeper. Both are nil when
// caching is disabled; the collector is also nil when sweeping is.
func createCache(ctx context.Context, cfg *Config, fsys vfs.VFS, m *MetricsResult) (*thumbcache.Cache, *gc.Collector, error) {
	if !cfg.Cache.Enabled {
		logger.Info("Thumbnail cache disabled")
		return nil, nil, nil
	}

	store, err := CreateCacheStore(ctx, &cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cache store: %w", err)
	}

	cache := thumbcache.New(fsys,
		thumbcache.WithStore(store),
		thumbcache.WithMaxEntries(cfg.Cache.MaxEntries),
		thumbcache.WithQueueSize(cfg.Cache.QueueSize),
		thumbcache.WithMetrics(m.Thumbcache),
	)

	if !cfg.Cache.Sweep.Enabled {
		return cache, nil, nil
	}

	collector, err := gc.NewCollector(cache, gc.Config{
		Enabled:  true,
		Interval: cfg.Cache.Sweep.Interval,
		Timeout:  cfg.Cache.Sweep.Timeout,
	})
	if err != nil {
		cache.Close()
		return nil, nil, fmt.Errorf("failed to create cache sweeper: %w", err)
	}

	return cache, collector, nil
}

func closeFilesystem(fsys vfs.VFS) {
	c, ok := fsys.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("Failed to close filesystem: %v", err)
	}
}
