package thumbcache

// Lookup results reported through CacheMetrics.RecordLookup.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupStale = "stale"
	LookupError = "error"
)

// Eviction reasons reported through CacheMetrics.RecordEviction.
const (
	EvictCapacity = "capacity"
	EvictStale    = "stale"
	EvictSweep    = "sweep"
)

// CacheMetrics provides observability for the thumbnail cache.
//
// Every method except RecordDropped is called from the actor goroutine.
// Implementations must not block. If no implementation is supplied, metrics
// collection is skipped.
type CacheMetrics interface {
	// RecordLookup records the outcome of a Get.
	RecordLookup(result string)

	// RecordInsert records an accepted insert of the given size.
	RecordInsert(bytes int)

	// RecordDropped records an insert that never reached the actor.
	RecordDropped()

	// RecordEviction records an entry removed for the given reason.
	RecordEviction(reason string)

	// RecordEntries records the current number of entries.
	RecordEntries(count int)
}

// noopCacheMetrics is a default no-op metrics implementation
type noopCacheMetrics struct{}

func (noopCacheMetrics) RecordLookup(string)   {}
func (noopCacheMetrics) RecordInsert(int)      {}
func (noopCacheMetrics) RecordDropped()        {}
func (noopCacheMetrics) RecordEviction(string) {}
func (noopCacheMetrics) RecordEntries(int)     {}
