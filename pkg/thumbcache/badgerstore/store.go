// Package badgerstore is a thumbcache.Store backed by BadgerDB.
//
// By default the database runs in memory, which keeps thumbnails off the Go
// heap's hot path (Badger manages its own arenas) while preserving the
// "empty after restart" behavior of the cache. Setting Dir stores blobs on
// disk instead. The cache index is never persisted, so any blobs left from a
// previous run are dropped when the store opens.
package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
)

// keyPrefix namespaces thumbnail blobs inside the database.
const keyPrefix = "thumb:"

// Config configures the Badger store.
type Config struct {
	// Dir is the on-disk location. Empty means in-memory.
	Dir string `mapstructure:"dir"`

	// BlockCacheSizeMB is Badger's block cache size (default: 64).
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is Badger's index cache size (default: 32).
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// Store is the Badger-backed blob store.
//
// Thread Safety: Badger is safe for concurrent use, but the cache only ever
// calls a Store from its actor goroutine.
type Store struct {
	db *badger.DB
}

// New opens the database described by cfg.
//
// Parameters:
//   - ctx: Checked before the database is opened
//   - cfg: Location and cache sizing
//
// Returns:
//   - *Store: Ready to hand to thumbcache.WithStore
//   - error: If ctx is done or Badger cannot open
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.Dir == "" {
		opts = opts.WithInMemory(true)
	}

	// Thumbnails are already compressed JPEG.
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := cfg.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %q: %w", cfg.Dir, err)
	}

	if cfg.Dir != "" {
		if err := db.DropPrefix([]byte(keyPrefix)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to clear stale thumbnails: %w", err)
		}
	}

	location := cfg.Dir
	if location == "" {
		location = "memory"
	}
	logger.Info("Thumbnail store: badger (%s)", location)

	return &Store{db: db}, nil
}

func key(k string) []byte {
	return []byte(keyPrefix + k)
}

// Get implements thumbcache.Store.
func (s *Store) Get(k string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(k))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return thumbcache.ErrMiss
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put implements thumbcache.Store.
func (s *Store) Put(k string, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(k), data)
	})
}

// Delete implements thumbcache.Store.
func (s *Store) Delete(k string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(k))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Close implements thumbcache.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ thumbcache.Store = (*Store)(nil)
