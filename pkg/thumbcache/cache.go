// Package thumbcache is the thumbnail cache actor.
//
// A single goroutine owns every piece of cache state: the index of entries,
// their insertion times, the recency list and the blob Store. Other
// goroutines talk to it only by sending messages on the inbox channel. A Get
// carries its own reply channel, buffered with room for exactly one answer,
// so the actor never blocks on a caller that has gone away.
//
// Freshness is decided at read time. The actor stats the key through the VFS
// and serves the entry only when the file's modification time is not newer
// than the moment the entry was inserted:
//
//	entry | stat ok | has mtime | mtime vs inserted | result
//	------+---------+-----------+-------------------+-------
//	no    |    -    |     -     |         -         | miss
//	yes   |   no    |     -     |         -         | miss
//	yes   |   yes   |    no     |         -         | miss
//	yes   |   yes   |    yes    |   mtime > entry   | miss (entry dropped)
//	yes   |   yes   |    yes    |   mtime <= entry  | hit
//
// A miss is never an error. Callers regenerate and Insert.
package thumbcache

import (
	"bytes"
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/resolver"
	"github.com/marmos91/dittobrowse/pkg/vfs"
)

const (
	// DefaultQueueSize is the inbox buffer length.
	DefaultQueueSize = 256

	// DefaultMaxEntries bounds the number of cached thumbnails.
	DefaultMaxEntries = 10000
)

// Entry is a cached thumbnail handed out by value.
type Entry struct {
	Data     []byte
	Inserted time.Time
}

// Stats are the actor's counters at the time of the request.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Stale     uint64
	Inserts   uint64
	Dropped   uint64
	Evictions uint64
	Entries   int
}

// SweepResult reports what a Sweep removed.
type SweepResult struct {
	Checked int
	Removed int
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore sets the blob store. The cache takes ownership and closes it.
func WithStore(s Store) Option {
	return func(c *Cache) {
		if s != nil {
			c.store = s
		}
	}
}

// WithMaxEntries bounds the cache. Zero or negative means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithQueueSize sets the inbox buffer length.
func WithQueueSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithMetrics sets the metrics sink. A nil value keeps the no-op sink.
func WithMetrics(m CacheMetrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock replaces time.Now for insertion timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Messages accepted by the actor loop.
type (
	insertMsg struct {
		key  resolver.ConfinedPath
		data []byte
		at   time.Time
	}

	getReply struct {
		entry Entry
		ok    bool
	}

	getMsg struct {
		ctx   context.Context
		key   resolver.ConfinedPath
		reply chan getReply
	}

	statsMsg struct {
		reply chan Stats
	}

	sweepMsg struct {
		ctx   context.Context
		reply chan SweepResult
	}
)

// item is the actor's bookkeeping for one entry. The bytes live in the Store.
type item struct {
	key      resolver.ConfinedPath
	inserted time.Time
}

// Cache is a handle to the actor. All methods are safe for concurrent use;
// the state behind them is touched only by the actor goroutine.
type Cache struct {
	fsys       vfs.VFS
	inbox      chan any
	stopCh     chan struct{}
	doneCh     chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
	queueSize  int
	maxEntries int
	now        func() time.Time
	metrics    CacheMetrics
	dropped    atomic.Uint64

	// Owned by the actor goroutine.
	store Store
	index map[resolver.ConfinedPath]*list.Element
	lru   *list.List
	stats Stats
}

// New returns a cache that judges freshness through fsys. Call Start before
// use; until then messages queue up in the inbox.
func New(fsys vfs.VFS, opts ...Option) *Cache {
	c := &Cache{
		fsys:       fsys,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		queueSize:  DefaultQueueSize,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		metrics:    noopCacheMetrics{},
		index:      make(map[resolver.ConfinedPath]*list.Element),
		lru:        list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	c.inbox = make(chan any, c.queueSize)
	return c
}

// Start launches the actor goroutine. Subsequent calls are no-ops.
func (c *Cache) Start() {
	c.startOnce.Do(func() {
		logger.Debug("Thumbnail cache started: max_entries=%d queue=%d", c.maxEntries, c.queueSize)
		go c.loop()
	})
}

// Close stops intake. Messages already queued are still processed, then the
// loop exits, the Store is closed and Done is closed. Safe to call more than
// once, and before Start.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		// A never-started cache still needs a loop to drain and close the store.
		c.startOnce.Do(func() { go c.loop() })
	})
}

// Stop closes the cache and waits for the loop to exit or ctx to expire.
func (c *Cache) Stop(ctx context.Context) error {
	c.Close()
	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		logger.Warn("Thumbnail cache shutdown timeout")
		return ctx.Err()
	}
}

// Done is closed once the actor loop has exited.
func (c *Cache) Done() <-chan struct{} { return c.doneCh }

func (c *Cache) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Insert records data for key with the current time, replacing any previous
// entry. It never blocks: when the cache is closed or the inbox is full the
// insert is dropped, which only costs a later regeneration.
func (c *Cache) Insert(key resolver.ConfinedPath, data []byte) {
	c.InsertAt(key, data, time.Time{})
}

// InsertAt is Insert with the insertion time chosen by the caller, so a
// caller that already reported a time for data stores that same time. A
// zero at means the actor's clock.
func (c *Cache) InsertAt(key resolver.ConfinedPath, data []byte, at time.Time) {
	if key.IsZero() {
		return
	}
	if c.stopped() {
		logger.Debug("Thumbnail cache closed, dropping insert for %s", key.Rel())
		return
	}

	select {
	case c.inbox <- insertMsg{key: key, data: bytes.Clone(data), at: at}:
	default:
		logger.Debug("Thumbnail cache queue full, dropping insert for %s", key.Rel())
		c.dropped.Add(1)
		c.metrics.RecordDropped()
	}
}

// Get returns the cached entry for key if it is still fresh.
//
// If ctx ends first, Get returns a miss; the actor's eventual reply lands in
// the buffered reply channel and is garbage collected with it.
func (c *Cache) Get(ctx context.Context, key resolver.ConfinedPath) (Entry, bool) {
	if key.IsZero() || c.stopped() {
		return Entry{}, false
	}

	reply := make(chan getReply, 1)
	select {
	case c.inbox <- getMsg{ctx: ctx, key: key, reply: reply}:
	case <-ctx.Done():
		return Entry{}, false
	case <-c.stopCh:
		return Entry{}, false
	}

	select {
	case r := <-reply:
		return r.entry, r.ok
	case <-ctx.Done():
		return Entry{}, false
	case <-c.doneCh:
		// The loop may have answered just before exiting.
		select {
		case r := <-reply:
			return r.entry, r.ok
		default:
			return Entry{}, false
		}
	}
}

// Stats asks the actor for its counters. It returns the zero value if the
// cache is closed or ctx ends.
func (c *Cache) Stats(ctx context.Context) Stats {
	reply := make(chan Stats, 1)
	if !c.send(ctx, statsMsg{reply: reply}) {
		return Stats{}
	}
	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
	case <-c.doneCh:
	}
	return Stats{}
}

// Sweep asks the actor to drop every entry that is no longer fresh. It is
// driven periodically by the sweeper in pkg/gc.
func (c *Cache) Sweep(ctx context.Context) (SweepResult, error) {
	reply := make(chan SweepResult, 1)
	if !c.send(ctx, sweepMsg{ctx: ctx, reply: reply}) {
		return SweepResult{}, errClosed(ctx)
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return SweepResult{}, ctx.Err()
	case <-c.doneCh:
		return SweepResult{}, ErrClosed
	}
}

// ErrClosed is returned by Sweep after Close.
var ErrClosed = errors.New("thumbcache: closed")

func errClosed(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrClosed
}

func (c *Cache) send(ctx context.Context, msg any) bool {
	if c.stopped() {
		return false
	}
	select {
	case c.inbox <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-c.stopCh:
		return false
	}
}

// loop is the actor. It is the only code that touches index, lru, stats and
// store.
func (c *Cache) loop() {
	defer close(c.doneCh)
	defer func() {
		if err := c.store.Close(); err != nil {
			logger.Warn("Thumbnail cache store close failed: %v", err)
		}
	}()

	for {
		select {
		case msg := <-c.inbox:
			c.handle(msg)
		case <-c.stopCh:
			c.drain()
			logger.Debug("Thumbnail cache stopped: %d entries", len(c.index))
			return
		}
	}
}

func (c *Cache) drain() {
	for {
		select {
		case msg := <-c.inbox:
			c.handle(msg)
		default:
			return
		}
	}
}

func (c *Cache) handle(msg any) {
	switch m := msg.(type) {
	case insertMsg:
		c.insert(m.key, m.data, m.at)
	case getMsg:
		entry, ok := c.get(m.ctx, m.key)
		// Buffered with capacity one and written once: never blocks.
		m.reply <- getReply{entry: entry, ok: ok}
	case statsMsg:
		s := c.stats
		s.Entries = len(c.index)
		s.Dropped = c.dropped.Load()
		m.reply <- s
	case sweepMsg:
		m.reply <- c.sweep(m.ctx)
	default:
		logger.Error("Thumbnail cache: unknown message %T", msg)
	}
}

func (c *Cache) insert(key resolver.ConfinedPath, data []byte, at time.Time) {
	if err := c.store.Put(key.String(), data); err != nil {
		logger.Warn("Thumbnail cache store put %s failed: %v", key.Rel(), err)
		c.remove(key)
		return
	}

	now := at
	if now.IsZero() {
		now = c.now()
	}
	if el, ok := c.index[key]; ok {
		el.Value.(*item).inserted = now
		c.lru.MoveToFront(el)
	} else {
		c.index[key] = c.lru.PushFront(&item{key: key, inserted: now})
	}

	c.stats.Inserts++
	c.metrics.RecordInsert(len(data))

	for c.maxEntries > 0 && len(c.index) > c.maxEntries {
		oldest := c.lru.Back().Value.(*item)
		c.remove(oldest.key)
		c.stats.Evictions++
		c.metrics.RecordEviction(EvictCapacity)
	}
	c.metrics.RecordEntries(len(c.index))
}

func (c *Cache) get(ctx context.Context, key resolver.ConfinedPath) (Entry, bool) {
	el, ok := c.index[key]
	if !ok {
		c.miss(LookupMiss)
		return Entry{}, false
	}
	it := el.Value.(*item)

	fresh, definite := c.fresh(ctx, it)
	if !fresh {
		if definite {
			c.remove(key)
			c.stats.Stale++
			c.stats.Evictions++
			c.metrics.RecordEviction(EvictStale)
			c.metrics.RecordEntries(len(c.index))
			c.miss(LookupStale)
		} else {
			c.miss(LookupError)
		}
		return Entry{}, false
	}

	data, err := c.store.Get(key.String())
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logger.Warn("Thumbnail cache store get %s failed: %v", key.Rel(), err)
		}
		c.remove(key)
		c.metrics.RecordEntries(len(c.index))
		c.miss(LookupError)
		return Entry{}, false
	}

	c.lru.MoveToFront(el)
	c.stats.Hits++
	c.metrics.RecordLookup(LookupHit)
	return Entry{Data: bytes.Clone(data), Inserted: it.inserted}, true
}

// fresh applies the decision table. definite is true when the entry is
// provably stale (the file changed after insertion) rather than merely
// unverifiable right now.
func (c *Cache) fresh(ctx context.Context, it *item) (fresh, definite bool) {
	rec, err := c.fsys.Stat(ctx, it.key.String())
	if err != nil {
		logger.Debug("Thumbnail cache stat %s failed, treating as miss: %v", it.key.Rel(), err)
		return false, false
	}
	if rec.Modified == nil {
		return false, false
	}
	if rec.Modified.After(it.inserted) {
		return false, true
	}
	return true, false
}

func (c *Cache) sweep(ctx context.Context) SweepResult {
	var res SweepResult
	for el := c.lru.Back(); el != nil && ctx.Err() == nil; {
		prev := el.Prev()
		it := el.Value.(*item)
		res.Checked++

		rec, err := c.fsys.Stat(ctx, it.key.String())
		gone := vfs.IsNotFound(err)
		changed := err == nil && rec.Modified != nil && rec.Modified.After(it.inserted)
		if gone || changed {
			c.remove(it.key)
			res.Removed++
			c.stats.Evictions++
			c.metrics.RecordEviction(EvictSweep)
		}
		el = prev
	}
	c.metrics.RecordEntries(len(c.index))
	return res
}

func (c *Cache) miss(result string) {
	c.stats.Misses++
	c.metrics.RecordLookup(result)
}

func (c *Cache) remove(key resolver.ConfinedPath) {
	if el, ok := c.index[key]; ok {
		c.lru.Remove(el)
		delete(c.index, key)
	}
	if err := c.store.Delete(key.String()); err != nil {
		logger.Warn("Thumbnail cache store delete %s failed: %v", key.Rel(), err)
	}
}
