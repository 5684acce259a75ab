package thumbnail

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/resolver"
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
)

// Cache is the subset of the thumbnail cache the Service uses.
type Cache interface {
	Get(ctx context.Context, key resolver.ConfinedPath) (thumbcache.Entry, bool)
	InsertAt(key resolver.ConfinedPath, data []byte, at time.Time)
}

// Renderer produces thumbnail bytes for a confined path.
type Renderer interface {
	Generate(ctx context.Context, key resolver.ConfinedPath) ([]byte, error)
}

type noCache struct{}

func (noCache) Get(context.Context, resolver.ConfinedPath) (thumbcache.Entry, bool) {
	return thumbcache.Entry{}, false
}
func (noCache) InsertAt(resolver.ConfinedPath, []byte, time.Time) {}

// call is one in-flight generation shared by every concurrent requester of
// the same key.
type call struct {
	done  chan struct{}
	entry thumbcache.Entry
	err   error
}

// Service answers thumbnail requests from the cache, generating on a miss.
type Service struct {
	cache    Cache
	renderer Renderer
	metrics  Metrics
	now      func() time.Time
	timeout  time.Duration
	inflight *xsync.Map[string, *call]
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithServiceMetrics reports request results to m. A nil m is ignored.
func WithServiceMetrics(m Metrics) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithServiceClock overrides the time stamped on freshly generated entries.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithServiceTimeout bounds a detached generation. Non-positive values are
// ignored.
func WithServiceTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a Service. A nil cache disables caching: every request
// generates.
func NewService(cache Cache, renderer Renderer, opts ...ServiceOption) *Service {
	if cache == nil {
		cache = noCache{}
	}
	s := &Service{
		cache:    cache,
		renderer: renderer,
		metrics:  noopMetrics{},
		now:      time.Now,
		timeout:  DefaultTimeout,
		inflight: xsync.NewMap[string, *call](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Thumbnail returns the thumbnail for key together with the time it was
// produced. Callers sharing a generation receive the same slice and must not
// modify it.
//
// A fresh cache entry is returned directly. Otherwise one generation runs
// for all concurrent callers asking for the same key; its result is inserted
// into the cache. The generation is detached from the caller that started
// it, so a caller going away does not fail the others, and it is bounded by
// the generator timeout instead.
//
// Any regular file is attempted; a source that is not an image fails with
// ErrDecode. Deciding which names deserve a thumbnail is up to the caller,
// since key is the canonical target and may not carry the name a listing
// showed.
func (s *Service) Thumbnail(ctx context.Context, key resolver.ConfinedPath) (thumbcache.Entry, error) {
	if key.IsZero() {
		return thumbcache.Entry{}, resolver.ErrNotFound
	}
	if entry, ok := s.cache.Get(ctx, key); ok {
		s.metrics.RecordRequest(RequestHit)
		return entry, nil
	}

	c := &call{done: make(chan struct{})}
	actual, shared := s.inflight.LoadOrStore(key.String(), c)
	if !shared {
		go s.generate(context.WithoutCancel(ctx), key, c)
	}

	select {
	case <-actual.done:
	case <-ctx.Done():
		s.metrics.RecordRequest(RequestError)
		return thumbcache.Entry{}, ctx.Err()
	}

	switch {
	case actual.err != nil:
		s.metrics.RecordRequest(RequestError)
	case shared:
		s.metrics.RecordRequest(RequestShared)
	default:
		s.metrics.RecordRequest(RequestGenerated)
	}
	return actual.entry, actual.err
}

func (s *Service) generate(ctx context.Context, key resolver.ConfinedPath, c *call) {
	defer close(c.done)
	defer s.inflight.Delete(key.String())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.renderer.Generate(ctx, key)
	if err != nil {
		c.err = err
		return
	}

	// One clock read, so the cached entry and this response agree on
	// Last-Modified.
	now := s.now()
	s.cache.InsertAt(key, data, now)
	c.entry = thumbcache.Entry{Data: data, Inserted: now}
	logger.Debug("Generated thumbnail for %s (%d bytes)", key.Rel(), len(data))
}
