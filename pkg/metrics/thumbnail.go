package metrics

import (
	"time"

	"github.com/marmos91/dittobrowse/pkg/thumbnail"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// thumbnailMetrics is the Prometheus implementation of thumbnail.Metrics.
type thumbnailMetrics struct {
	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	requests           *prometheus.CounterVec
}

// NewThumbnailMetrics creates a Prometheus-backed thumbnail.Metrics.
//
// Returns nil if metrics are not enabled, which makes the generator and the
// service use their no-op implementation.
func NewThumbnailMetrics() thumbnail.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newThumbnailMetrics(GetRegistry())
}

func newThumbnailMetrics(reg prometheus.Registerer) *thumbnailMetrics {
	return &thumbnailMetrics{
		generations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "thumbnail_generations_total",
				Help:      "Total number of thumbnail generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		generationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "thumbnail_generation_duration_seconds",
				Help:      "Duration of thumbnail generation, including queueing",
				Buckets: []float64{
					0.01, // 10ms
					0.05, // 50ms
					0.1,  // 100ms
					0.25, // 250ms
					0.5,  // 500ms
					1,    // 1s
					2.5,  // 2.5s
					5,    // 5s
					10,   // 10s
					30,   // 30s
				},
			},
			[]string{"outcome"},
		),
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "thumbnail_requests_total",
				Help:      "Total number of thumbnail requests by how they were served",
			},
			[]string{"result"},
		),
	}
}

func (m *thumbnailMetrics) ObserveGeneration(outcome string, d time.Duration) {
	m.generations.WithLabelValues(outcome).Inc()
	m.generationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *thumbnailMetrics) RecordRequest(result string) {
	m.requests.WithLabelValues(result).Inc()
}
