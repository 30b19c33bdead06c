package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
)

// RequestIDHeader carries the request id to and from clients
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware tags the request logger with a request id and the caller,
// then writes one access log line per request. An inbound X-Request-ID is kept.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		fields := map[string]interface{}{"request_id": requestID}
		if session := SessionFromContext(r.Context()); session != nil {
			fields["user_id"] = session.UserID
		}
		ctx := observability.WithLogFields(r.Context(), fields)

		rw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		route := routeOf(r)
		if route == "" {
			route = r.URL.Path
		}

		logger := observability.LoggerFromContext(ctx)
		event := logger.Info()
		switch {
		case rw.statusCode >= http.StatusInternalServerError:
			event = logger.Error()
		case rw.statusCode >= http.StatusBadRequest:
			event = logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("route", route).
			Int("status", rw.statusCode).
			Int64("bytes", rw.written).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// loggingResponseWriter records the status code and body size
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *loggingResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *loggingResponseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
