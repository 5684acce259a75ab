package metrics

import "time"

// HTTPMetrics provides observability for the HTTP adapter.
//
// This interface is optional - if not provided to the adapter, a no-op
// implementation is used with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewHTTPMetrics()
//	adapter := http.New(config, m)
//
//	// Without metrics (no-op)
//	adapter := http.New(config, nil)
type HTTPMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - route: Route name ("list", "file", "thumb", "icon")
	//   - status: HTTP status code written
	//   - duration: Time taken to serve the request
	//   - bytes: Response body size
	RecordRequest(route string, status int, duration time.Duration, bytes int64)

	// RecordRequestStart increments the in-flight gauge for route.
	RecordRequestStart(route string)

	// RecordRequestEnd decrements the in-flight gauge for route.
	RecordRequestEnd(route string)
}

type noopHTTPMetrics struct{}

// NewNoopHTTPMetrics returns an HTTPMetrics that discards everything.
func NewNoopHTTPMetrics() HTTPMetrics {
	return noopHTTPMetrics{}
}

func (noopHTTPMetrics) RecordRequest(string, int, time.Duration, int64) {}
func (noopHTTPMetrics) RecordRequestStart(string)                       {}
func (noopHTTPMetrics) RecordRequestEnd(string)                         {}
