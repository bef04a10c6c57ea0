package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"storefront/internal/common/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware tags each request with an id and logs method, path,
// status and duration once the handler returns.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r = r.WithContext(logging.ContextWithRequestID(r.Context(), requestID))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		fields := []logging.Field{
			{Key: "method", Value: r.Method},
			{Key: "path", Value: r.URL.Path},
			{Key: "status", Value: wrapped.statusCode},
			{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			{Key: "remote_addr", Value: r.RemoteAddr},
		}
		if r.URL.RawQuery != "" {
			fields = append(fields, logging.Field{Key: "query", Value: r.URL.RawQuery})
		}

		logger := logging.WithContext(r.Context())
		switch {
		case wrapped.statusCode >= 500:
			logger.Error("HTTP request failed", nil, fields...)
		case wrapped.statusCode >= 400:
			logger.Warn("HTTP request client error", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	})
}
