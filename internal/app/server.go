package app

import (
	"errors"
	"net/http"

	"github.com/docker/go-units"
)

const (
	ContentTypeJSON   = "application/json"
	ContentTypeSSE    = "text/event-stream"
	ContentTypeHeader = "Content-Type"
)

func (a *Application) startWebServer() {
	a.logger.Info("Starting WebServer...",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"max_body_size", units.BytesSize(float64(a.config.Server.RequestLimits.MaxBodySize)))

	mux := http.NewServeMux()

	a.registerRoutes()
	a.registry.WireUpWithMiddleware(mux, a.relayChain(), a.opsChain())

	a.server.Handler = a.wrapServerMiddleware(mux)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", "error", err)
			a.errCh <- err
		}
	}()

	a.logger.Info("Started WebServer", "bind", a.server.Addr)
}

func (a *Application) registerRoutes() {
	a.registry.RegisterRelayRoute("/api/chat", a.chatHandler, "Streaming chat relay endpoint", http.MethodPost)
	a.registry.Register("/api/models", a.modelsHandler, "Available model list")
	a.registry.Register("/internal/health", a.healthHandler, "Health check endpoint")
	a.registry.Register("/internal/status", a.statusHandler, "Relay statistics")
	a.registry.Register("/version", a.versionHandler, "Version and build metadata")
}

// relayChain wraps chat traffic: rate limit bucket plus the body size cap.
func (a *Application) relayChain() func(http.Handler) http.Handler {
	sizeLimiter := NewRequestSizeLimiter(a.config.Server.RequestLimits, a.logger)
	return func(next http.Handler) http.Handler {
		limited := a.rateLimiter.Middleware()(next)
		return sizeLimiter.Middleware(limited)
	}
}

// opsChain wraps the health/status/version endpoints.
func (a *Application) opsChain() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.rateLimiter.Middleware()(next)
	}
}
