package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/caravan-llm/caravan/internal/adapter/keypool"
	"github.com/caravan-llm/caravan/internal/adapter/relay"
	"github.com/caravan-llm/caravan/internal/adapter/stats"
	"github.com/caravan-llm/caravan/internal/adapter/upstream"
	"github.com/caravan-llm/caravan/internal/config"
	"github.com/caravan-llm/caravan/internal/core/ports"
	"github.com/caravan-llm/caravan/internal/logger"
	"github.com/caravan-llm/caravan/internal/router"
)

// Application wires the key pool, upstream client and relay service behind
// the HTTP surface.
type Application struct {
	config       *config.Config
	server       *http.Server
	logger       *logger.StyledLogger
	registry     *router.RouteRegistry
	keyPool      *keypool.RotatingPool
	client       *upstream.Client
	relayService ports.RelayService
	statsService ports.StatsCollector
	rateLimiter  *RateLimiter
	errCh        chan error
}

// New creates a new application instance
func New(cfg *config.Config, logger *logger.StyledLogger) (*Application, error) {
	registry := router.NewRouteRegistry(logger)

	keyPool := keypool.NewRotatingPool(cfg.Upstream.APIKeys)
	if keyPool.Size() == 0 {
		logger.Warn("No API keys configured; chat requests will be rejected",
			"env", config.EnvAPIKeys)
	} else {
		logger.InfoWithCount("Loaded API key pool", keyPool.Size())
	}

	client := upstream.NewClient(&upstream.Configuration{
		CompletionsURL:      cfg.Upstream.URL,
		Referer:             cfg.Upstream.Referer,
		Title:               cfg.Upstream.Title,
		AttemptTimeout:      cfg.Upstream.AttemptTimeout,
		ConnectionTimeout:   cfg.Upstream.ConnectionTimeout,
		ConnectionKeepAlive: cfg.Upstream.ConnectionKeepAlive,
	}, logger)

	statsService := stats.NewCollector(logger)

	relayService := relay.NewService(
		keyPool,
		client,
		statsService,
		cfg.Models.Allowed,
		cfg.Upstream.StreamBufferSize,
		logger,
	)

	app := &Application{
		config:       cfg,
		logger:       logger,
		registry:     registry,
		keyPool:      keyPool,
		client:       client,
		relayService: relayService,
		statsService: statsService,
		rateLimiter:  NewRateLimiter(cfg.Server.RateLimits, logger),
		errCh:        make(chan error, 1),
	}

	app.server = &http.Server{
		Addr:        cfg.Server.GetAddress(),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// WriteTimeout stays zero: chat responses stream for as long as the
		// model keeps talking.
		Handler: nil, // Will be set in Start()
	}

	return app, nil
}

// Start starts the application
func (a *Application) Start(ctx context.Context) error {
	go func() {
		select {
		case err := <-a.errCh:
			a.logger.Error("Server startup error", "error", err)
		case <-ctx.Done():
			return
		}
	}()

	a.startWebServer()

	a.logger.Info("Caravan started", "bind", a.server.Addr)
	return nil
}

// Stop stops the application
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.config.Server.ShutdownTimeout)
	defer cancel()

	a.rateLimiter.Stop()
	a.client.Cleanup()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	return nil
}
