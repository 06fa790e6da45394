// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/pelagos/internal/api"
	"github.com/tomtom215/pelagos/internal/config"
	"github.com/tomtom215/pelagos/internal/database"
	"github.com/tomtom215/pelagos/internal/ingest"
	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/store"
	"github.com/tomtom215/pelagos/internal/supervisor"
	"github.com/tomtom215/pelagos/internal/supervisor/services"
	syncpkg "github.com/tomtom215/pelagos/internal/sync"
	ws "github.com/tomtom215/pelagos/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Pelagos with supervisor tree")
	logging.Info().
		Str("upstream_url", cfg.Upstream.URL).
		Str("store_backend", cfg.Store.Backend).
		Str("db_path", cfg.Database.Path).
		Int("tile_zoom", cfg.Tile.Zoom).
		Msg("Configuration loaded")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS is configured with wildcard origin (CORS_ORIGINS=*)")
		logging.Warn().Msg("Any website can subscribe to the vessel stream; set explicit origins for production deployments")
	}

	// Boot order follows the data flow: durable store, live store, ingest,
	// batch sync, HTTP surface, dispatcher. Shutdown reverses it through
	// the supervisor tree and the deferred closes below.

	// Durable store: DuckDB with the spatial extension when available.
	db, err := database.New(&cfg.Database, cfg.Tile.Zoom)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().
		Bool("spatial", db.IsSpatialAvailable()).
		Str("path", db.Path()).
		Msg("Database initialized successfully")

	// Live store: the authoritative short-lived vessel state.
	liveStore, err := store.New(context.Background(), store.Config{
		Backend:  cfg.Store.Backend,
		TTL:      cfg.Store.VesselTTL(),
		Zoom:     cfg.Tile.Zoom,
		RedisURL: cfg.Store.RedisURL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize live store")
	}
	defer func() {
		if err := liveStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing live store")
		}
	}()
	logging.Info().
		Str("backend", cfg.Store.Backend).
		Dur("vessel_ttl", cfg.Store.VesselTTL()).
		Msg("Live vessel store initialized")

	// Dispatch hub: created before the ingest client so its dirty-tile
	// intake channel can be handed to the client.
	hub := ws.NewHub(ws.Config{
		FlushInterval:     cfg.Dispatch.FlushInterval(),
		Heartbeat:         cfg.WebSocket.Heartbeat(),
		QueueSize:         cfg.WebSocket.ClientQueueSize,
		MaxTilesPerClient: cfg.WebSocket.MaxTilesPerClient,
	}, liveStore)

	// Upstream ingest client.
	boxes, err := ingest.ParseBoundingBoxes(cfg.Upstream.BBox)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid AISSTREAM_BBOX")
	}
	feed := ingest.New(ingest.Config{
		URL:           cfg.Upstream.URL,
		APIKey:        cfg.Upstream.APIKey,
		BoundingBoxes: boxes,
		FlushInterval: cfg.Ingest.FlushInterval(),
	}, liveStore, hub.Intake())
	logging.Info().
		Int("bounding_boxes", len(boxes)).
		Int("covered_tiles", ingest.TileCoverage(boxes, cfg.Tile.Zoom)).
		Dur("flush_interval", cfg.Ingest.FlushInterval()).
		Msg("Upstream ingest client created")

	// Batch synchronizer: live store -> DuckDB.
	syncManager := syncpkg.NewManager(liveStore, db, &cfg.Sync)

	// Optional NATS event publishing (requires build with -tags nats).
	eventComponents, err := InitEvents(cfg, feed)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event publishing")
	}

	// HTTP surface.
	handler := api.NewHandler(db, liveStore, hub, feed, syncManager, cfg)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		// WriteTimeout applies until a connection is hijacked, so it never
		// touches established WebSocket sessions.
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===
	// Boot order: the ingest feed starts first so positions flow as soon
	// as the upstream socket opens, then the batch synchronizer, the HTTP
	// server, and last the dispatch hub. Updates accepted before the hub
	// starts buffer in its intake channel.

	tree.AddMessagingService(services.NewIngestService(feed))
	logging.Info().Msg("Ingest client added to supervisor tree")

	tree.AddDataService(services.NewSyncService(syncManager))
	logging.Info().
		Dur("interval", cfg.Sync.Interval()).
		Int("batch_size", cfg.Sync.BatchSize).
		Msg("Batch synchronizer added to supervisor tree")

	// The drain hook refuses new WebSocket upgrades (503) during the
	// grace window while in-flight requests complete.
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, func() {
		handler.SetShuttingDown(true)
	}))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	AddEventsToSupervisor(tree, eventComponents)
	logging.Info().Msg("Dispatch hub added to supervisor tree")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
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

	logging.Info().Msg("Application stopped gracefully")
}
