// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/allot/internal/domain/dedupe"
	"github.com/okian/allot/pkg/metrics"
	"github.com/okian/allot/pkg/tracing"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics and a server span.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracing.StartSpan(r.Context(), "http."+endpoint, tracing.KindServer)
		span.SetAttributes(map[string]any{"http.method": r.Method, "http.route": r.Pattern})

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		statusCodeStr := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr, durationMs)
		if wrapped.statusCode >= http.StatusBadRequest {
			metrics.RecordError("http", getErrorType(wrapped.statusCode))
		}
		span.SetStatusFromHTTPCode(wrapped.statusCode)
		span.End()
	}
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return "server_error"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case statusCode == http.StatusNotFound:
		return "not_found"
	case statusCode == http.StatusConflict:
		return "conflict"
	default:
		return "client_error"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

// IdempotencyHeader carries a client-chosen key for mutating requests.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyMiddleware rejects a request whose Idempotency-Key was already
// accepted for the same route. A request that fails is forgotten so the
// client may retry it with the same key. Requests without the header pass.
func IdempotencyMiddleware(d dedupe.Deduper, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if key == "" || d == nil {
			next(w, r)
			return
		}
		scoped := r.Method + " " + r.URL.Path + " " + key
		if d.SeenAndRecord(r.Context(), scoped) {
			writeJSON(w, http.StatusConflict, errorResponse{
				Kind:    "duplicate_request",
				Message: "a request with this " + IdempotencyHeader + " was already accepted",
			})
			return
		}
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(wrapped, r)
		if wrapped.statusCode >= http.StatusBadRequest {
			d.Unrecord(r.Context(), scoped)
		}
	}
}
