package app

import (
	"fmt"
	"net/http"

	"github.com/caravan-llm/caravan/internal/app/middleware"
	"github.com/caravan-llm/caravan/internal/config"
	"github.com/caravan-llm/caravan/internal/logger"
)

type RequestSizeLimiter struct {
	maxBodySize int64
	logger      *logger.StyledLogger
}

func NewRequestSizeLimiter(limits config.ServerRequestLimits, logger *logger.StyledLogger) *RequestSizeLimiter {
	return &RequestSizeLimiter{
		maxBodySize: limits.MaxBodySize,
		logger:      logger,
	}
}

func (rsl *RequestSizeLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := rsl.validateAndLimitBody(w, r); err != nil {
			rsl.logger.Warn("Request rejected: body size exceeded",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)

			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rsl *RequestSizeLimiter) validateAndLimitBody(w http.ResponseWriter, r *http.Request) error {
	if rsl.maxBodySize <= 0 {
		return nil
	}

	// Check Content-Length header first (if present)
	if r.ContentLength > rsl.maxBodySize {
		return fmt.Errorf("content-length %d exceeds limit %d", r.ContentLength, rsl.maxBodySize)
	}

	// Wrap body with limited reader to catch cases where Content-Length is wrong/missing
	r.Body = http.MaxBytesReader(w, r.Body, rsl.maxBodySize)

	return nil
}

// corsMiddleware answers preflight requests and stamps the configured origin
// on every response so the browser client can talk to us cross-origin.
func (a *Application) corsMiddleware(next http.Handler) http.Handler {
	origin := a.config.Server.AllowedOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// wrapServerMiddleware applies the server-wide layers outside the per-route
// chains: request logging first so every request gets an ID, then CORS.
func (a *Application) wrapServerMiddleware(mux *http.ServeMux) http.Handler {
	var handler http.Handler = mux

	handler = a.corsMiddleware(handler)

	if a.config.Server.RequestLogging {
		handler = middleware.LoggingMiddleware(a.logger)(handler)
	}

	return handler
}
