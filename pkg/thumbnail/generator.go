// Package thumbnail produces JPEG thumbnails for images reachable through a
// VFS.
//
// Generation is split in two layers. The Generator owns a fixed pool of
// worker goroutines that open, decode and scale images; request goroutines
// only hand it jobs and wait. The Service sits in front of it, consults the
// thumbnail cache, and collapses concurrent misses on the same file into a
// single generation.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/internal/ratelimiter"
	"github.com/marmos91/dittobrowse/pkg/resolver"
	"github.com/marmos91/dittobrowse/pkg/vfs"
)

const (
	// DefaultMaxDimension bounds thumbnail width and height.
	DefaultMaxDimension = 400

	// DefaultQuality is the JPEG quality of generated thumbnails.
	DefaultQuality = 50

	// DefaultMaxSourceBytes caps the size of a source image (64MB).
	DefaultMaxSourceBytes = 64 << 20

	// DefaultTimeout bounds a single generation.
	DefaultTimeout = 30 * time.Second
)

// ErrStopped is returned by Generate after Stop.
var ErrStopped = errors.New("thumbnail generator stopped")

// Config configures a Generator.
type Config struct {
	// MaxDimension bounds both output dimensions. Default 400.
	MaxDimension int

	// Quality is the JPEG quality. Default 50.
	Quality int

	// MaxSourceBytes refuses larger source files. Default 64MB.
	MaxSourceBytes int64

	// AutoOrient applies EXIF orientation before scaling.
	AutoOrient bool

	// Workers is the size of the decode pool. Default GOMAXPROCS.
	Workers int

	// RateLimit is the number of generations admitted per second.
	// Zero disables throttling.
	RateLimit float64

	// Burst is the token bucket size. Zero derives it from RateLimit.
	Burst int

	// Timeout bounds one generation, including the wait for a worker.
	Timeout time.Duration
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	c := Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.MaxDimension <= 0 {
		c.MaxDimension = DefaultMaxDimension
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = DefaultQuality
	}
	if c.MaxSourceBytes <= 0 {
		c.MaxSourceBytes = DefaultMaxSourceBytes
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

type job struct {
	ctx   context.Context
	key   resolver.ConfinedPath
	reply chan jobResult
}

type jobResult struct {
	data []byte
	err  error
}

// Generator renders thumbnails on a bounded worker pool.
//
// Thread Safety:
// Generate may be called from any number of goroutines. Start and Stop are
// idempotent.
type Generator struct {
	fsys    vfs.VFS
	cfg     Config
	limiter *ratelimiter.RateLimiter
	metrics Metrics

	jobs      chan job
	stopCh    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithGeneratorMetrics reports generation outcomes to m. A nil m is ignored.
func WithGeneratorMetrics(m Metrics) GeneratorOption {
	return func(g *Generator) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGenerator creates a stopped Generator reading sources from fsys.
func NewGenerator(fsys vfs.VFS, cfg Config, opts ...GeneratorOption) *Generator {
	cfg.applyDefaults()
	g := &Generator{
		fsys:    fsys,
		cfg:     cfg,
		limiter: ratelimiter.New(cfg.RateLimit, cfg.Burst),
		metrics: noopMetrics{},
		jobs:    make(chan job),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// Start launches the worker goroutines.
func (g *Generator) Start() {
	g.startOnce.Do(func() {
		for range g.cfg.Workers {
			g.wg.Add(1)
			go g.worker()
		}
		logger.Info("Thumbnail generator started: workers=%d max_dimension=%d quality=%d",
			g.cfg.Workers, g.cfg.MaxDimension, g.cfg.Quality)
	})
}

// Stop signals the workers and waits for in-progress renders to finish or
// for ctx to end.
func (g *Generator) Stop(ctx context.Context) error {
	g.stopOnce.Do(func() { close(g.stopCh) })

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Thumbnail generator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Generate renders the thumbnail for key.
//
// The call first waits for an admission token, then for a free worker.
// Either wait ends early when ctx does.
//
// Returns:
//   - the JPEG bytes
//   - ErrStopped after Stop
//   - vfs errors from opening the source, ErrDecode or ErrSourceTooLarge
func (g *Generator) Generate(ctx context.Context, key resolver.ConfinedPath) ([]byte, error) {
	if key.IsZero() {
		return nil, resolver.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := g.limiter.Wait(ctx); err != nil {
		g.metrics.ObserveGeneration(OutcomeRejected, time.Since(start))
		return nil, err
	}

	reply := make(chan jobResult, 1)
	select {
	case g.jobs <- job{ctx: ctx, key: key, reply: reply}:
	case <-g.stopCh:
		return nil, ErrStopped
	case <-ctx.Done():
		g.metrics.ObserveGeneration(OutcomeRejected, time.Since(start))
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		outcome := OutcomeOK
		if r.err != nil {
			outcome = OutcomeError
		}
		g.metrics.ObserveGeneration(outcome, time.Since(start))
		return r.data, r.err
	case <-ctx.Done():
		g.metrics.ObserveGeneration(OutcomeRejected, time.Since(start))
		return nil, ctx.Err()
	}
}

func (g *Generator) worker() {
	defer g.wg.Done()
	for {
		select {
		case <-g.stopCh:
			return
		case j := <-g.jobs:
			data, err := g.render(j.ctx, j.key)
			j.reply <- jobResult{data: data, err: err}
		}
	}
}

func (g *Generator) render(ctx context.Context, key resolver.ConfinedPath) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := g.fsys.OpenForRead(ctx, key.String())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key.Rel(), err)
	}
	defer func() { _ = rc.Close() }()

	data, err := Render(rc, RenderOptions{
		MaxDimension:   g.cfg.MaxDimension,
		Quality:        g.cfg.Quality,
		MaxSourceBytes: g.cfg.MaxSourceBytes,
		AutoOrient:     g.cfg.AutoOrient,
	})
	if err != nil {
		logger.Debug("Thumbnail render failed for %s: %v", key.Rel(), err)
		return nil, fmt.Errorf("render %s: %w", key.Rel(), err)
	}
	return data, nil
}
