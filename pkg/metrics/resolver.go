package metrics

import (
	"github.com/marmos91/dittobrowse/pkg/resolver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// resolverMetrics counts path resolutions by outcome. Escapes are worth
// alerting on: they mean a symlink inside the root points outside it.
type resolverMetrics struct {
	resolutions *prometheus.CounterVec
}

// NewResolverMetrics creates a Prometheus-backed resolver.Metrics.
//
// Returns nil if metrics are not enabled.
func NewResolverMetrics() resolver.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newResolverMetrics(GetRegistry())
}

func newResolverMetrics(reg prometheus.Registerer) *resolverMetrics {
	return &resolverMetrics{
		resolutions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolver_resolutions_total",
				Help:      "Total number of user path resolutions by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *resolverMetrics) RecordResolve(outcome string) {
	m.resolutions.WithLabelValues(outcome).Inc()
}
