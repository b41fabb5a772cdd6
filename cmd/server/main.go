// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/loomfeed/internal/api"
	"github.com/tomtom215/loomfeed/internal/config"
	"github.com/tomtom215/loomfeed/internal/events"
	"github.com/tomtom215/loomfeed/internal/logging"
	"github.com/tomtom215/loomfeed/internal/metrics"
	"github.com/tomtom215/loomfeed/internal/recommend/algorithms"
	"github.com/tomtom215/loomfeed/internal/recommend/engine"
	"github.com/tomtom215/loomfeed/internal/supervisor"
	"github.com/tomtom215/loomfeed/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Str("backend", cfg.Persistence.Backend).
		Str("save_mode", cfg.Persistence.SaveMode).
		Int("embedding_dim", cfg.Recommend.Model.EmbeddingDim).
		Msg("Starting Loomfeed with supervisor tree")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === RECOMMENDATION ENGINE ===

	eng, err := engine.New(&cfg.Recommend, logging.WithComponent("recommend"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation engine")
	}

	store, closeStore, err := openStore(&cfg.Persistence)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open snapshot store")
	}
	if persister := newPersister(&cfg.Persistence, store); persister != nil {
		eng.SetPersister(persister)

		loaded, err := eng.LoadSnapshot(ctx)
		if err != nil {
			_ = closeStore()
			if errors.Is(err, algorithms.ErrSnapshotMismatch) {
				logging.Fatal().Err(err).
					Msg("Saved model does not match the configured embedding dimension; remove the snapshot or change EMBEDDING_DIM")
			}
			logging.Fatal().Err(err).Msg("Failed to restore saved model")
		}
		logging.Info().
			Bool("restored", loaded).
			Str("backend", persister.Backend()).
			Str("key", persister.Key()).
			Msg("Snapshot persistence enabled")
	} else {
		logging.Warn().Str("backend", cfg.Persistence.Backend).Msg("Snapshot persistence disabled, the model lives in memory only")
	}

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.Supervisor)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Data layer services
	if store != nil {
		snapshotSvc := services.NewSnapshotService(eng, cfg.Snapshot, logging.WithComponent("snapshot"))
		tree.AddDataService(snapshotSvc)

		// Messaging layer services
		if cfg.Persistence.Async() {
			bus, err := events.NewBus(&cfg.Events, logging.NewWatermillLogger(logging.WithComponent("events"), false))
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to create event bus")
			}
			if err := bus.HandleInteractions("snapshot", snapshotSvc.OnInteraction); err != nil {
				logging.Fatal().Err(err).Msg("Failed to register snapshot handler")
			}
			eng.SetPublisher(bus)
			tree.AddMessagingService(services.NewEventRouterService(bus))
			logging.Info().Msg("Interaction event bus added to supervisor tree")
		}
	}

	// API layer services
	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Server.RateLimitRequests
	mwConfig.RateLimitWindow = cfg.Server.RateLimitWindow
	mwConfig.RateLimitDisabled = cfg.Server.RateLimitDisabled

	router := api.NewRouter(api.NewHandler(eng, &cfg.Recommend, cfg.Server.MaxBodyBytes), mwConfig)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout).
		WithLogger(logging.WithComponent("http")))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	go trackUptime(ctx, time.Now())

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	// The snapshot service has made its final flush by now.
	if err := closeStore(); err != nil {
		logging.Error().Err(err).Msg("Failed to close snapshot store")
		os.Exit(1)
	}

	logging.Info().Msg("Application stopped gracefully")
}

// trackUptime updates the uptime gauge until ctx is done.
func trackUptime(ctx context.Context, started time.Time) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		metrics.AppUptime.Set(time.Since(started).Seconds())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
