package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittobrowse/internal/logger"
)

// Route labels used for metrics and logs.
const (
	routeList    = "list"
	routeFile    = "file"
	routeThumb   = "thumb"
	routeIcon    = "icon"
	routeUnknown = "unknown"
)

type requestIDKey struct{}

// RequestID returns the id assigned to the request carrying ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// responseWriter captures the status and body size written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// instrument wraps h with request id assignment, logging and metrics.
//
// The id is always freshly generated; an X-Request-Id sent by the client is
// ignored so ids stay unique in the logs.
func (a *HTTPAdapter) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		a.metrics.RecordRequestStart(route)
		defer a.metrics.RecordRequestEnd(route)

		if a.registry == nil && route != routeIcon {
			logger.Warn("HTTP request %s before registry was set", id)
			http.NotFound(rw, r)
		} else {
			h(rw, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		}

		duration := time.Since(start)
		a.metrics.RecordRequest(route, rw.status, duration, rw.size)
		logger.Debug("HTTP %s %s: route=%s status=%d bytes=%d duration=%v request_id=%s",
			r.Method, r.URL.Path, route, rw.status, rw.size, duration, id)
	})
}

// notFound answers 404 and logs the underlying reason, which never reaches
// the client.
func notFound(w http.ResponseWriter, r *http.Request, reason error) {
	logger.Debug("HTTP 404 %s: %v (request_id=%s)", r.URL.Path, reason, RequestID(r.Context()))
	http.NotFound(w, r)
}
