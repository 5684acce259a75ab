package thumbcache

import "errors"

// ErrMiss is returned by Store.Get when the key holds no blob.
var ErrMiss = errors.New("thumbcache: no such blob")

// Store holds thumbnail bytes for the cache actor.
//
// A Store is owned by exactly one Cache and is only ever called from that
// cache's actor goroutine, so implementations need no synchronization of
// their own. Freshness bookkeeping (insertion times, recency) stays in the
// actor; a Store only maps keys to bytes.
type Store interface {
	// Get returns the blob for key, or ErrMiss.
	Get(key string) ([]byte, error)

	// Put stores data under key, replacing any previous blob. The store
	// takes ownership of data.
	Put(key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases the store. The actor calls it when its loop exits.
	Close() error
}

// memoryStore is the default Store: a plain map owned by the actor.
type memoryStore struct {
	blobs map[string][]byte
}

// NewMemoryStore returns an in-process Store.
func NewMemoryStore() Store {
	return &memoryStore{blobs: make(map[string][]byte)}
}

func (s *memoryStore) Get(key string) ([]byte, error) {
	data, ok := s.blobs[key]
	if !ok {
		return nil, ErrMiss
	}
	return data, nil
}

func (s *memoryStore) Put(key string, data []byte) error {
	s.blobs[key] = data
	return nil
}

func (s *memoryStore) Delete(key string) error {
	delete(s.blobs, key)
	return nil
}

func (s *memoryStore) Close() error {
	s.blobs = nil
	return nil
}
