// Package registry holds the long-lived components of a running server and
// owns their lifecycle.
//
// Every component is built once at startup (see config.InitializeRegistry)
// and handed to adapters through the registry. Nothing in the process reaches
// for a package-level instance.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/gc"
	"github.com/marmos91/dittobrowse/pkg/listing"
	"github.com/marmos91/dittobrowse/pkg/resolver"
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
	"github.com/marmos91/dittobrowse/pkg/thumbnail"
	"github.com/marmos91/dittobrowse/pkg/vfs"
)

// Components are the parts a Registry is assembled from.
type Components struct {
	// VFS is the filesystem every component reads through (required).
	VFS vfs.VFS

	// Resolver confines client paths to the served root (required).
	Resolver *resolver.Resolver

	// Lister produces directory listings (required).
	Lister *listing.Lister

	// Thumbnails serves cached or freshly generated thumbnails (required).
	Thumbnails *thumbnail.Service

	// Generator backs Thumbnails. Nil when the service was built with a
	// custom renderer.
	Generator *thumbnail.Generator

	// Cache is nil when caching is disabled.
	Cache *thumbcache.Cache

	// Collector sweeps Cache periodically. Nil when Cache is nil or
	// sweeping is disabled.
	Collector *gc.Collector
}

// Registry exposes the shared components to adapters.
//
// Thread Safety: The getters are safe for concurrent use. Start and Close
// are each effective once.
type Registry struct {
	c Components

	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// New validates c and returns a registry over it. Components are not
// started; call Start.
//
// Returns:
//   - *Registry: Ready to hand to adapters
//   - error: If a required component is missing
func New(c Components) (*Registry, error) {
	if c.VFS == nil {
		return nil, fmt.Errorf("registry: filesystem is required")
	}
	if c.Resolver == nil {
		return nil, fmt.Errorf("registry: resolver is required")
	}
	if c.Lister == nil {
		return nil, fmt.Errorf("registry: lister is required")
	}
	if c.Thumbnails == nil {
		return nil, fmt.Errorf("registry: thumbnail service is required")
	}
	return &Registry{c: c}, nil
}

// VFS returns the filesystem.
func (r *Registry) VFS() vfs.VFS { return r.c.VFS }

// Resolver returns the path resolver.
func (r *Registry) Resolver() *resolver.Resolver { return r.c.Resolver }

// Lister returns the directory lister.
func (r *Registry) Lister() *listing.Lister { return r.c.Lister }

// Thumbnails returns the thumbnail service.
func (r *Registry) Thumbnails() *thumbnail.Service { return r.c.Thumbnails }

// Generator returns the thumbnail generator, or nil.
func (r *Registry) Generator() *thumbnail.Generator { return r.c.Generator }

// Cache returns the thumbnail cache, or nil when caching is disabled.
func (r *Registry) Cache() *thumbcache.Cache { return r.c.Cache }

// Collector returns the cache sweeper, or nil.
func (r *Registry) Collector() *gc.Collector { return r.c.Collector }

// Start launches the background goroutines of every component that has
// them: the cache actor, the generator workers and the sweeper.
func (r *Registry) Start() {
	r.startOnce.Do(func() {
		if r.c.Cache != nil {
			r.c.Cache.Start()
		}
		if r.c.Generator != nil {
			r.c.Generator.Start()
		}
		if r.c.Collector != nil {
			r.c.Collector.Start()
		}
		logger.Debug("Registry started: cache=%t sweeper=%t",
			r.c.Cache != nil, r.c.Collector != nil)
	})
}

// Close stops the components in reverse dependency order: the sweeper, the
// generator, the cache (which closes its store) and finally the filesystem
// when it holds resources. Every step runs even if an earlier one failed;
// the errors are joined.
//
// Safe to call more than once; later calls return the first result.
func (r *Registry) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		var errs []error

		if r.c.Collector != nil {
			if err := r.c.Collector.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop sweeper: %w", err))
			}
		}
		if r.c.Generator != nil {
			if err := r.c.Generator.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop generator: %w", err))
			}
		}
		if r.c.Cache != nil {
			if err := r.c.Cache.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop cache: %w", err))
			}
		}
		if closer, ok := r.c.VFS.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close filesystem: %w", err))
			}
		}

		r.closeErr = errors.Join(errs...)
		if r.closeErr != nil {
			logger.Warn("Registry closed with errors: %v", r.closeErr)
		} else {
			logger.Debug("Registry closed")
		}
	})
	return r.closeErr
}
