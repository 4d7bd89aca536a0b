// Package main is the entry point for the wealth portfolio valuation service.
// It serves the HTTP API, keeps exchange rates fresh while views are open and
// runs the scheduled snapshot, consolidation, cleanup and backup jobs.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/wealth/internal/config"
	"github.com/aristath/wealth/internal/di"
	"github.com/aristath/wealth/internal/server"
	"github.com/aristath/wealth/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires databases, services and jobs via the DI container
// 4. Warms the rate cache and starts the background refresh loop
// 5. Starts the scheduler and the HTTP server
// 6. Waits for a shutdown signal and stops everything in reverse order
//
// The application uses a 3-database architecture:
// - portfolio.db: portfolios, positions, global assets and the movement ledger
// - history.db: one valuation snapshot per portfolio per day
// - client_data.db: cache for exchange rates, benchmark series and analyses
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting wealth service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// First fetch is best effort: cached or fallback rates serve until it succeeds.
	warmCtx, warmCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := container.RateCache.EnsureFresh(warmCtx); err != nil {
		log.Warn().Err(err).Msg("Initial rate refresh failed, serving cached rates")
	}
	warmCancel()

	go container.RateCache.Run(ctx)

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		DataDir:   cfg.DataDir,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the refresh loop, then wait for running jobs before closing databases.
	cancel()
	container.Scheduler.Stop()

	log.Info().Msg("Server stopped")
}
