// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

// Package main is the entry point for the Ornithographus server.
//
// Ornithographus is a caching geospatial proxy for eBird observation
// data. It sits between browser map clients and the eBird API 2.0,
// decomposing viewport queries into a fixed tile grid, serving cached
// tiles instantly, and fetching cold tiles upstream at a pace the
// shared API quota tolerates.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Tile grid: Equirectangular grid geometry from the configured tile size
//  3. Caches: TTL tile cache and per-client delivered-tiles ledger
//  4. Upstream client: Paced eBird client wrapped in a circuit breaker
//  5. WebSocket hub: Per-client background fetch notifications
//  6. Engine: Viewport query orchestration over all of the above
//  7. NATS (optional): External mirror of batch-completion events
//  8. Supervisor tree: Sweeper, hub, and HTTP server under suture supervision
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (see .env.example)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// The only required setting is the upstream credential:
//   - EBIRD_API_KEY: eBird API key (get one at https://ebird.org/api/keygen)
//
// # Build Tags
//
// Optional build tags enable additional functionality:
//
//	go build -tags "nats" ./cmd/server  # Enable the NATS JetStream event mirror
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Closes WebSocket subscriptions and the event mirror
//   - Waits for in-flight background tile batches to wind down
//
// # Example Usage
//
// Minimal local run:
//
//	export EBIRD_API_KEY=your-ebird-api-key
//	./ornithographus
//
// Tuned for a busier deployment:
//
//	export EBIRD_API_KEY=your-ebird-api-key
//	export MAX_PARALLEL_REQUESTS=4
//	export MAX_INITIAL_BATCHES=2
//	export CACHE_MAX_ENTRIES=50000
//	export CORS_ORIGINS=https://birds.example.com
//	./ornithographus
//
// Docker:
//
//	docker run -d \
//	  -e EBIRD_API_KEY=your-ebird-api-key \
//	  -p 4326:4326 \
//	  ghcr.io/tomtom215/ornithographus
//
// # Port 4326
//
// The default port 4326 references EPSG:4326 (the WGS 84 lat/lng
// coordinate system), the reference frame every viewport and
// observation in the API uses.
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

	"github.com/tomtom215/ornithographus/internal/api"
	"github.com/tomtom215/ornithographus/internal/cache"
	"github.com/tomtom215/ornithographus/internal/config"
	"github.com/tomtom215/ornithographus/internal/ebird"
	"github.com/tomtom215/ornithographus/internal/engine"
	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/supervisor"
	"github.com/tomtom215/ornithographus/internal/supervisor/services"
	"github.com/tomtom215/ornithographus/internal/tile"
	ws "github.com/tomtom215/ornithographus/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		if errors.Is(err, config.ErrMissingAPIKey) {
			logging.Fatal().Err(err).Msg("No eBird API key configured")
		}
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Ornithographus with supervisor tree")
	logging.Info().
		Str("ebird_base_url", cfg.EBird.BaseURL).
		Float64("tile_size_km", cfg.Tiles.SizeKm).
		Dur("cache_ttl", cfg.Cache.TTL).
		Int("max_parallel_requests", cfg.Fetch.MaxParallelRequests).
		Msg("Configuration loaded")

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
		logging.Warn().Msg("This should only be used for development and testing!")
	}

	// Geometry and caches. The grid is pure math; the caches own all
	// observation state for the process.
	grid := tile.NewGrid(cfg.Tiles.SizeKm, cfg.Tiles.MaxLatitude, cfg.Tiles.EdgeBuffer)
	tiles := cache.NewTileCache(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	ledger := cache.NewLedger(cfg.Cache.LedgerTTL)

	// Upstream path: paced client behind a circuit breaker. The breaker
	// prevents hammering eBird while it is down; the pacer keeps request
	// spacing inside the shared quota.
	pacer := ebird.NewPacer(cfg.Fetch.SlowThreshold)
	upstream := ebird.NewCircuitBreakerClient(ebird.NewClient(&cfg.EBird, pacer))
	fetcher := ebird.NewTileFetcher(grid, upstream, &cfg.EBird)

	// WebSocket hub for background fetch notifications (before the
	// engine, which publishes batch completions through it)
	wsHub := ws.NewHub()

	eng := engine.New(cfg, grid, tiles, ledger, fetcher, wsHub)
	defer eng.Stop()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	// Create supervisor tree
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Initialize the NATS event mirror (optional - requires build with
	// -tags nats). Mirrors every batch completion to a JetStream topic
	// for consumers outside the process.
	eventsCleanup, err := initEvents(ctx, cfg, eng)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event mirror")
	}
	defer eventsCleanup()

	handler := api.NewHandler(eng, wsHub, cfg)
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(&cfg.Security))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Maintenance layer services
	tree.AddMaintenanceService(services.NewSweeperService(eng, cfg.Cache.SweepInterval))
	logging.Info().Dur("interval", cfg.Cache.SweepInterval).Msg("Tile sweeper added to supervisor tree")

	// Messaging layer services
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	logging.Info().Msg("WebSocket hub added to supervisor tree")

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

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
