package metrics

import (
	"github.com/marmos91/dittobrowse/pkg/thumbcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// thumbcacheMetrics is the Prometheus implementation of the
// thumbcache.CacheMetrics interface.
//
// This implementation collects:
//   - Lookup counts by result (hit, miss, stale, error)
//   - Insert counts and inserted bytes
//   - Inserts dropped before reaching the actor
//   - Evictions by reason
//   - The current number of entries
type thumbcacheMetrics struct {
	lookups       *prometheus.CounterVec
	inserts       prometheus.Counter
	insertedBytes prometheus.Counter
	dropped       prometheus.Counter
	evictions     *prometheus.CounterVec
	entries       prometheus.Gauge
}

// NewThumbcacheMetrics creates a new Prometheus-backed CacheMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes the cache to use the built-in no-op implementation.
func NewThumbcacheMetrics() thumbcache.CacheMetrics {
	if !IsEnabled() {
		return nil
	}
	return newThumbcacheMetrics(GetRegistry())
}

func newThumbcacheMetrics(reg prometheus.Registerer) *thumbcacheMetrics {
	return &thumbcacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "thumbcache_lookups_total",
				Help:      "Total number of thumbnail cache lookups by result",
			},
			[]string{"result"},
		),
		inserts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "thumbcache_inserts_total",
				Help:      "Total number of thumbnails inserted into the cache",
			},
		),
		insertedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "thumbcache_inserted_bytes_total",
				Help:      "Total bytes of thumbnail data inserted into the cache",
			},
		),
		dropped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "thumbcache_dropped_inserts_total",
				Help:      "Inserts dropped because the cache queue was full",
			},
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "thumbcache_evictions_total",
				Help:      "Total number of cache entries removed by reason",
			},
			[]string{"reason"},
		),
		entries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "thumbcache_entries",
				Help:      "Current number of cached thumbnails",
			},
		),
	}
}

// RecordLookup implements thumbcache.CacheMetrics.RecordLookup
func (m *thumbcacheMetrics) RecordLookup(result string) {
	m.lookups.WithLabelValues(result).Inc()
}

// RecordInsert implements thumbcache.CacheMetrics.RecordInsert
func (m *thumbcacheMetrics) RecordInsert(bytes int) {
	m.inserts.Inc()
	m.insertedBytes.Add(float64(bytes))
}

// RecordDropped implements thumbcache.CacheMetrics.RecordDropped
func (m *thumbcacheMetrics) RecordDropped() {
	m.dropped.Inc()
}

// RecordEviction implements thumbcache.CacheMetrics.RecordEviction
func (m *thumbcacheMetrics) RecordEviction(reason string) {
	m.evictions.WithLabelValues(reason).Inc()
}

// RecordEntries implements thumbcache.CacheMetrics.RecordEntries
func (m *thumbcacheMetrics) RecordEntries(count int) {
	m.entries.Set(float64(count))
}
