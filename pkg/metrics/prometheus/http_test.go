package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetrics(t *testing.T) {
	m := newHTTPMetrics(prometheus.NewRegistry())

	m.RecordRequestStart("thumb")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsInFlight.WithLabelValues("thumb")))

	m.RecordRequest("thumb", 200, 15*time.Millisecond, 2048)
	m.RecordRequestEnd("thumb")
	m.RecordRequest("file", 404, time.Millisecond, 0)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsInFlight.WithLabelValues("thumb")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("thumb", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("file", "404")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.responseBytes.WithLabelValues("thumb")))
}

func TestNewHTTPMetrics_Disabled(t *testing.T) {
	assert.NotNil(t, NewHTTPMetrics(), "falls back to a no-op")
}
