// Package gc periodically removes dead thumbnail cache entries.
//
// The cache already refuses to serve a stale entry, but it only notices one
// when that exact key is requested. Entries for files that were deleted, or
// that changed and were never viewed again, would otherwise sit in the cache
// until LRU pressure pushes them out. The collector asks the cache to sweep
// itself on a fixed interval so that memory (or badger disk space) is
// reclaimed.
//
// The sweep runs inside the cache actor; the collector only schedules it.
package gc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
)

const (
	// DefaultInterval is the time between sweeps.
	DefaultInterval = time.Hour

	// DefaultTimeout bounds a single sweep.
	DefaultTimeout = 5 * time.Minute
)

// Sweeper is implemented by *thumbcache.Cache.
type Sweeper interface {
	Sweep(ctx context.Context) (thumbcache.SweepResult, error)
}

// Collector performs periodic sweeps of the thumbnail cache.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	cache     Sweeper
	config    Config
	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
}

// Config contains configuration for the collector.
type Config struct {
	// Enabled controls whether periodic sweeping is active.
	Enabled bool

	// Interval is how often to sweep (default: 1h).
	Interval time.Duration

	// Timeout bounds a single sweep (default: 5m).
	Timeout time.Duration
}

// NewCollector creates a new collector. Call Start() to begin background
// sweeping.
//
// Parameters:
//   - cache: The cache to sweep
//   - config: Collector configuration
//
// Returns:
//   - *Collector: Initialized collector (not started)
//   - error: Returns error if cache is nil
func NewCollector(cache Sweeper, config Config) (*Collector, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache is required")
	}

	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &Collector{
		cache:  cache,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins background sweeping at the configured interval.
//
// Safe to call multiple times (subsequent calls are no-ops).
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Cache sweeping disabled")
		return
	}

	c.startOnce.Do(func() {
		c.started.Store(true)
		logger.Info("Starting cache sweeper: interval=%s", c.config.Interval)
		go c.worker()
	})
}

// Stop stops the collector and waits for an in-progress sweep to finish.
// Safe to call multiple times.
//
// Returns:
//   - error: Returns ctx.Err() if ctx expires before shutdown completes
func (c *Collector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if !c.started.Load() {
		return nil
	}

	select {
	case <-c.doneCh:
		logger.Info("Cache sweeper stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Cache sweeper shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate sweep and blocks until it completes.
//
// Returns:
//   - *Stats: Sweep statistics
//   - error: Returns error if the cache is closed or ctx is cancelled
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Debug("Running cache sweep (manual trigger)")
	return c.collect(ctx)
}

// worker is the background goroutine that runs periodic sweeps.
func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Cache sweep failed: %v", err)
			} else {
				logger.Info("Cache sweep completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single sweep.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	result, err := c.cache.Sweep(ctx)
	stats.EndTime = time.Now()
	if err != nil {
		return stats, fmt.Errorf("failed to sweep cache: %w", err)
	}

	stats.CheckedCount = uint64(result.Checked)
	stats.RemovedCount = uint64(result.Removed)
	return stats, nil
}

// Stats contains statistics from a sweep.
type Stats struct {
	StartTime    time.Time // When the sweep started
	EndTime      time.Time // When the sweep ended
	CheckedCount uint64    // Entries whose file was stat'd
	RemovedCount uint64    // Entries removed as stale or orphaned
}

// Duration returns the total sweep duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the sweep.
func (s *Stats) Summary() string {
	return fmt.Sprintf("checked=%d removed=%d duration=%s",
		s.CheckedCount, s.RemovedCount, s.Duration())
}
