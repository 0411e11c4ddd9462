package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/caravan-llm/caravan/internal/core/constants"
	"github.com/caravan-llm/caravan/internal/logger"
	"github.com/caravan-llm/caravan/internal/util"
)

// HeaderRequestID is echoed back so clients can correlate streams with logs.
const HeaderRequestID = "X-Caravan-Request-ID"

// responseWriter wraps http.ResponseWriter to capture response size and status
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += int64(size)
	return size, err
}

func (rw *responseWriter) WriteHeader(s int) {
	rw.status = s
	rw.ResponseWriter.WriteHeader(s)
}

// Flush must pass through to the underlying writer or streamed chat deltas
// would sit in the buffer until the response ends.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(constants.ContextRequestIdKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggingMiddleware assigns each request an ID, propagates it through the
// context and logs request/response details.
func LoggingMiddleware(styledLogger *logger.StyledLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = util.GenerateRequestID()
			}

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			ctx := context.WithValue(r.Context(), constants.ContextRequestIdKey, requestID)
			w.Header().Set(HeaderRequestID, requestID)

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			rlog := styledLogger.WithRequestID(requestID)
			rlog.Debug("Request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"request_bytes", requestSize)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)

			rlog.Info("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration_ms", duration.Milliseconds(),
				"request_bytes", requestSize,
				"response_bytes", wrapped.size)
		})
	}
}
