// cartd - Larmone storefront cart service.
// Hosts the client-authoritative cart engine: catalog polling, stock-gated
// mutations and local snapshot persistence, exposed over REST and MCP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"larmone-cart/internal/cart"
	"larmone-cart/internal/catalog"
	"larmone-cart/internal/checkout"
	"larmone-cart/internal/clienthdr"
	"larmone-cart/internal/config"
	"larmone-cart/internal/handler"
	"larmone-cart/internal/middleware"
	"larmone-cart/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("storefront_id", cfg.StorefrontID),
		slog.String("environment", cfg.Environment),
		slog.String("catalog_url", cfg.Catalog.BaseURL),
		slog.Bool("interactive", cfg.Interactive),
	)

	// Snapshot persistence: SQLite when a path is configured, no-op otherwise
	var store cart.SnapshotStore
	if cfg.StoragePath != "" {
		sqlStore, err := storage.Open(cfg.StoragePath, logger)
		if err != nil {
			return fmt.Errorf("opening snapshot store: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	} else {
		store = storage.NoopStore{}
	}

	// Catalog client
	var catalogOpts []catalog.Option
	if cfg.Catalog.PageSize > 0 {
		catalogOpts = append(catalogOpts, catalog.WithPageSize(cfg.Catalog.PageSize))
	}
	client := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, catalogOpts...)

	// Cart engine
	cartStore := cart.NewStore(cart.Options{
		Fetcher:            client,
		Storage:            store,
		Logger:             logger,
		Interactive:        cfg.Interactive,
		MinRefreshInterval: cfg.MinRefreshInterval,
		PollInterval:       cfg.PollInterval,
	})

	// Warm the catalog snapshot; a cold start with an unreachable catalog is
	// not fatal, the poller and mutations retry.
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := cartStore.Refresh(warmCtx, true); err != nil {
		logger.Warn("initial catalog refresh failed", slog.String("error", err.Error()))
	}
	cancel()

	cartStore.StartPolling()
	defer cartStore.StopPolling()

	// Handler with checkout flow
	h := handler.New(cartStore, checkout.NewFlow(), logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → logging → client header → handler.
	// Recovery must be outermost to catch panics from logging middleware.
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		clienthdr.Middleware(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting", slog.String("port", cfg.Port))
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initLogger creates a JSON slog logger honoring LOG_LEVEL.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
