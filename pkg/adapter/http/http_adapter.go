// Package http exposes the registry over HTTP.
//
// Routes:
//   - GET /api/list/{path...}: JSON directory listing
//   - GET /file/{path...}: download of a regular file
//   - GET /thumb/{path...}: JPEG thumbnail, or an icon when none can be made
//   - GET /thumb, GET /thumbdir: static file and folder icons
//
// Every failure a client can observe is a plain 404, whatever the cause.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/metrics"
	"github.com/marmos91/dittobrowse/pkg/registry"
)

// HTTPAdapter serves the browse API.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. The listener is closed, no new requests are accepted
//  3. In-flight requests complete (up to ShutdownTimeout)
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown is guarded by sync.Once.
type HTTPAdapter struct {
	config   HTTPConfig
	registry *registry.Registry
	metrics  metrics.HTTPMetrics

	server *http.Server

	// port is the bound port once Serve has a listener.
	port atomic.Int64

	shutdownOnce sync.Once
	shutdownErr  error
}

// HTTPConfig holds configuration parameters for the HTTP server.
//
// Default values (applied by New if zero):
//   - Port: 8080
//   - ReadTimeout: 30s
//   - WriteTimeout: 5m (large downloads)
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
type HTTPConfig struct {
	// Enabled controls whether the HTTP adapter is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on. If 0, defaults to 8080.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// ReadTimeout bounds reading a complete request, headers included.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing a response. It must cover the largest
	// file download expected over the slowest client link.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes keep-alive connections idle for longer.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *HTTPConfig) applyDefaults() {
	// Enabled defaults live in pkg/config/defaults.go so that an explicit
	// false survives.
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks the configuration after defaults were applied.
func (c *HTTPConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("invalid timeouts: must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// New creates a new HTTPAdapter in a stopped state. Call SetRegistry() and
// then Serve().
//
// Parameters:
//   - config: Server configuration; zero values are replaced with defaults
//   - httpMetrics: Optional metrics collector (nil for no metrics)
//
// Panics if config validation fails.
func New(config HTTPConfig, httpMetrics metrics.HTTPMetrics) *HTTPAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid HTTP config: %v", err))
	}

	if httpMetrics == nil {
		httpMetrics = metrics.NewNoopHTTPMetrics()
	}

	a := &HTTPAdapter{
		config:  config,
		metrics: httpMetrics,
	}
	a.port.Store(int64(config.Port))
	a.server = &http.Server{
		Handler:      a.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return a
}

// SetRegistry injects the shared registry. Called once before Serve().
func (a *HTTPAdapter) SetRegistry(reg *registry.Registry) {
	a.registry = reg
	logger.Debug("HTTP adapter configured with registry")
}

// Serve listens on the configured port and blocks until ctx is cancelled or
// the server fails.
//
// Returns:
//   - nil when Stop() ended the server
//   - ctx.Err() after a graceful shutdown triggered by ctx
//   - error if the listener cannot be created or the server fails
func (a *HTTPAdapter) Serve(ctx context.Context) error {
	if a.registry == nil {
		return fmt.Errorf("registry not set; call SetRegistry() before Serve()")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener on port %d: %w", a.config.Port, err)
	}
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		a.port.Store(int64(addr.Port))
	}

	logger.Info("HTTP server listening on port %d", a.Port())
	logger.Debug("HTTP config: read_timeout=%v write_timeout=%v idle_timeout=%v",
		a.config.ReadTimeout, a.config.WriteTimeout, a.config.IdleTimeout)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("HTTP shutdown signal received: %v", ctx.Err())
		// ctx is already cancelled; give the drain its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return ctx.Err()

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times and
// concurrently with Serve(); later calls return the first result.
func (a *HTTPAdapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		if err := a.server.Shutdown(ctx); err != nil {
			a.shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			logger.Error("HTTP server shutdown error: %v", err)
			// Cut the remaining connections rather than leak them.
			_ = a.server.Close()
			return
		}
		logger.Info("HTTP server stopped gracefully")
	})
	return a.shutdownErr
}

// Protocol returns "HTTP".
func (a *HTTPAdapter) Protocol() string {
	return "HTTP"
}

// Port returns the configured port, or the bound port once Serve is
// listening.
func (a *HTTPAdapter) Port() int {
	return int(a.port.Load())
}
