// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
engine.go - Viewport Query Orchestration

This file contains the core Engine struct, initialization, and the
viewport query pipeline that turns a lat/lng rectangle into a cached,
deduplicated, per-client observation delta.

Engine Components:
  - tile.Grid: coordinate <-> tile geometry
  - cache.TileCache: TTL tile store (optional LRU cap)
  - cache.Ledger: per-client delivered-tiles record
  - TileFetcher: upstream two-feed fetch + merge (ebird package)
  - NotificationHub: per-client batch-completion stream (websocket package)
  - TileEventPublisher: optional external event mirror (NATS build)

Query Pipeline:
  1. Validate viewport bounds
  2. Enumerate covering tiles (edge-buffered)
  3. Identify tiles missing from the cache
  4. Rank missing tiles by distance to the viewport center
  5. Batch into groups of MaxParallelRequests
  6. Fetch the first MaxInitialBatches batches in the foreground,
     spawn the remainder as one background task
  7. Assemble the client delta from the cache, tagging each
     observation with its tile id
  8. Commit materialized tiles to the client ledger
  9. Return observations plus background-loading metadata

Failure Policy:
  - A failed tile fetch caches an empty entry, suppressing repeat
    upstream calls until the entry's TTL expires
  - Queries never fail because individual tiles failed; partial
    results are the intended behavior
  - The one exception: an all-cold viewport where every foreground
    fetch failed and nothing materialized surfaces
    ErrUpstreamUnavailable

Thread Safety:
  - The engine is a process-scoped value; all shared state lives in
    its components, each internally synchronized
  - Background work runs on the engine's own context, so request
    cancellation abandons only the orchestrator's wait
*/

//nolint:staticcheck // File documentation, not package doc
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/ornithographus/internal/cache"
	"github.com/tomtom215/ornithographus/internal/config"
	"github.com/tomtom215/ornithographus/internal/ebird"
	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/metrics"
	"github.com/tomtom215/ornithographus/internal/models"
	"github.com/tomtom215/ornithographus/internal/tile"
	"github.com/tomtom215/ornithographus/internal/validation"
)

// ErrInvalidViewport marks a query whose viewport failed validation.
// The wrapped detail names the offending field. Maps to HTTP 400.
var ErrInvalidViewport = errors.New("invalid viewport")

// ErrUpstreamUnavailable marks the one query-fatal upstream condition:
// the viewport was entirely uncached and every foreground fetch failed,
// so there is nothing at all to return. Maps to HTTP 502. The joined
// cause preserves ebird.ErrRateLimited when the failures were pure
// rate limiting.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// TileFetcher fetches and fuses one tile's observations. Implemented by
// ebird.TileFetcher; tests substitute stubs.
type TileFetcher interface {
	FetchTile(ctx context.Context, id tile.ID) ([]models.CachedObservation, error)
}

// NotificationHub delivers batch completions to per-client subscribers.
// Implemented by websocket.Hub.
type NotificationHub interface {
	Publish(clientID string, completion models.BatchCompletion)
}

// TileEventPublisher mirrors batch completions to an external broker for
// consumers outside the process. Optional; wired only in the nats build.
type TileEventPublisher interface {
	PublishBatchCompletion(ctx context.Context, clientID string, completion models.BatchCompletion) error
}

// Engine orchestrates viewport queries over the tile cache, the client
// ledger, and the upstream fetcher. One Engine value owns all shared
// state for the process; construct it once at startup and pass it to
// every entry point.
type Engine struct {
	cfg     *config.Config
	grid    *tile.Grid
	tiles   *cache.TileCache
	ledger  *cache.Ledger
	fetcher TileFetcher
	hub     NotificationHub

	// Optional external mirror, set before serving begins.
	publisher TileEventPublisher

	// baseCtx carries the engine lifetime. Fetch work runs against it,
	// not against request contexts, so an abandoned request never
	// cancels a fetch whose result the cache wants anyway.
	baseCtx context.Context
	cancel  context.CancelFunc
	bgWg    sync.WaitGroup
}

// New creates an Engine over the given components. The engine owns a
// background context for detached work; call Stop to release it.
func New(cfg *config.Config, grid *tile.Grid, tiles *cache.TileCache, ledger *cache.Ledger, fetcher TileFetcher, hub NotificationHub) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:     cfg,
		grid:    grid,
		tiles:   tiles,
		ledger:  ledger,
		fetcher: fetcher,
		hub:     hub,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// SetEventPublisher installs the optional external event mirror. Call
// before the engine starts serving queries; not safe to swap afterwards.
func (e *Engine) SetEventPublisher(publisher TileEventPublisher) {
	e.publisher = publisher
}

// Stop cancels detached background work and waits for in-flight
// background batches to wind down. In-flight upstream requests abort
// through context cancellation.
func (e *Engine) Stop() {
	e.cancel()
	e.bgWg.Wait()
}

// Query executes the full viewport pipeline and returns the client's
// observation delta.
//
// The returned error is nil for every partial-failure case: failed
// tiles are cached empty and simply contribute nothing. Errors surface
// only for invalid viewports (ErrInvalidViewport), abandoned requests
// (the request context's error), and all-cold viewports with nothing to
// return (ErrUpstreamUnavailable).
func (e *Engine) Query(ctx context.Context, viewport models.Viewport, clientID string) (*models.QueryResult, error) {
	start := time.Now()

	if err := validateViewport(viewport); err != nil {
		metrics.RecordQuery("invalid", time.Since(start), 0)
		return nil, err
	}

	covering := e.grid.Covering(viewport)
	missing := e.tiles.Missing(covering)
	allCold := len(missing) == len(covering)

	rankByDistance(missing, e.grid, viewport)
	batches := batchTiles(missing, e.cfg.Fetch.MaxParallelRequests)

	foreground := batches
	var background [][]tile.ID
	if len(batches) > e.cfg.Fetch.MaxInitialBatches {
		foreground = batches[:e.cfg.Fetch.MaxInitialBatches]
		background = batches[e.cfg.Fetch.MaxInitialBatches:]
	}

	outcome, err := e.runForeground(ctx, foreground)
	if err != nil {
		// Request abandoned. In-flight fetches finish on the engine
		// context and populate the cache for whoever asks next.
		return nil, err
	}

	if len(background) > 0 {
		e.spawnBackground(background, viewport, clientID)
	}

	// Assemble the delta. Tiles absent from the cache here are
	// background-pending and are skipped; they will reach the client
	// through a later query after their batch completion fires.
	delta := e.ledger.MissingFor(clientID, covering)
	birds := make([]models.TaggedObservation, 0, len(delta)*8)
	materialized := make([]tile.ID, 0, len(delta))
	for _, id := range delta {
		entry, ok := e.tiles.Get(id)
		if !ok {
			continue
		}
		materialized = append(materialized, id)
		tileID := id.String()
		for _, obs := range entry.Observations {
			birds = append(birds, models.TaggedObservation{CachedObservation: obs, TileID: tileID})
		}
	}

	if allCold && outcome.attempted > 0 && outcome.failed == outcome.attempted && len(birds) == 0 {
		metrics.RecordQuery("upstream_error", time.Since(start), len(covering))
		return nil, coldFailure(outcome)
	}

	// Commit only what the response actually carries. A skipped
	// background-pending tile must stay missing in the ledger or the
	// client would never receive it.
	e.ledger.Seen(clientID, materialized)
	metrics.TileCacheEntries.Set(float64(e.tiles.Len()))
	metrics.LedgerClients.Set(float64(e.ledger.ClientCount()))

	pending := len(e.tiles.Missing(covering))
	result := &models.QueryResult{
		Birds: birds,
		Metadata: models.QueryMetadata{
			HasBackgroundLoading: len(background) > 0,
			PendingTileCount:     pending,
		},
	}

	metrics.RecordQuery("ok", time.Since(start), len(covering))
	logging.Debug().
		Str("client_id", clientID).
		Int("covering", len(covering)).
		Int("missing", len(missing)).
		Int("birds", len(birds)).
		Int("pending", pending).
		Bool("background", len(background) > 0).
		Dur("duration", time.Since(start)).
		Msg("Viewport query completed")

	return result, nil
}

// SweepNow removes expired tiles and idle clients immediately. The
// periodic sweeper calls this on its interval; the admin endpoint calls
// it on demand.
func (e *Engine) SweepNow() models.SweepResult {
	removedTiles := e.tiles.Sweep()
	removedClients := e.ledger.Sweep()

	metrics.RecordCacheSweep(removedTiles, removedClients)
	metrics.TileCacheEntries.Set(float64(e.tiles.Len()))
	metrics.LedgerClients.Set(float64(e.ledger.ClientCount()))

	if removedTiles > 0 || removedClients > 0 {
		logging.Info().
			Int("removed_tiles", removedTiles).
			Int("removed_clients", removedClients).
			Msg("Cache sweep completed")
	}
	return models.SweepResult{RemovedTiles: removedTiles, RemovedClients: removedClients}
}

// Stats snapshots cache and ledger occupancy together with the effective
// configuration for the stats endpoint.
func (e *Engine) Stats() models.CacheStats {
	snapshot := e.tiles.Stats()
	return models.CacheStats{
		TotalEntries:     int(snapshot.TotalEntries),
		ExpiredEntries:   int(snapshot.ExpiredEntries),
		ApproximateBytes: snapshot.ApproximateBytes,
		OldestAgeSeconds: snapshot.OldestAgeSeconds,
		ClientCount:      e.ledger.ClientCount(),
		Config: models.CacheStatsConfig{
			TileSizeKm:           e.cfg.Tiles.SizeKm,
			TTLMinutes:           int(e.cfg.Cache.TTL.Minutes()),
			SweepIntervalMinutes: int(e.cfg.Cache.SweepInterval.Minutes()),
			LedgerTTLMinutes:     int(e.cfg.Cache.LedgerTTL.Minutes()),
			MaxEntries:           e.cfg.Cache.MaxEntries,
			MaxBackDays:          e.cfg.EBird.MaxBackDays,
		},
	}
}

// DebugTiles reports the covering tile set for a viewport together with
// cache occupancy and the four corner tiles, for verifying grid
// alignment from the outside.
func (e *Engine) DebugTiles(viewport models.Viewport) (*models.TileDebug, error) {
	if err := validateViewport(viewport); err != nil {
		return nil, err
	}

	covering := e.grid.Covering(viewport)
	cacheHits := len(covering) - len(e.tiles.Missing(covering))

	return &models.TileDebug{
		TileCount: len(covering),
		CacheHits: cacheHits,
		Config: models.TileDebugConfig{
			TileSizeKm:   e.cfg.Tiles.SizeKm,
			EdgeBuffer:   e.cfg.Tiles.EdgeBuffer,
			RadiusBuffer: e.cfg.EBird.RadiusBuffer,
			MaxLatitude:  e.cfg.Tiles.MaxLatitude,
		},
		Corners: map[string]models.TileCorner{
			"northWest": e.cornerFor(viewport.MaxLat, viewport.MinLng),
			"northEast": e.cornerFor(viewport.MaxLat, viewport.MaxLng),
			"southWest": e.cornerFor(viewport.MinLat, viewport.MinLng),
			"southEast": e.cornerFor(viewport.MinLat, viewport.MaxLng),
		},
	}, nil
}

// ResetClient drops a client's ledger entry so its next query
// re-delivers every tile.
func (e *Engine) ResetClient(clientID string) models.LedgerResetResult {
	existed := e.ledger.Reset(clientID)
	logging.Info().Str("client_id", clientID).Bool("existed", existed).Msg("Client ledger reset")
	return models.LedgerResetResult{ClientID: clientID, Existed: existed}
}

// cornerFor describes the tile containing one viewport corner.
func (e *Engine) cornerFor(lat, lng float64) models.TileCorner {
	id := e.grid.IDForPoint(lat, lng)
	bounds := e.grid.BoundsOf(id)
	_, cached := e.tiles.Get(id)
	return models.TileCorner{
		TileID:    id.String(),
		MinLat:    bounds.MinLat,
		MaxLat:    bounds.MaxLat,
		MinLng:    bounds.MinLng,
		MaxLng:    bounds.MaxLng,
		CenterLat: bounds.CenterLat,
		CenterLng: bounds.CenterLng,
		Cached:    cached,
	}
}

// validateViewport rejects out-of-range and inverted bounds. The range
// and ordering rules live as validate tags on models.Viewport; this
// wraps their verdict in ErrInvalidViewport for the API layer to map.
func validateViewport(viewport models.Viewport) error {
	if verr := validation.ValidateStruct(viewport); verr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidViewport, verr)
	}
	return nil
}

// rankByDistance orders tiles ascending by Euclidean distance between
// tile center and viewport center on raw lat/lng degrees. The ordering
// is a fetch-priority heuristic, not a geometric claim. Ties break by
// lexicographic tile id so equal-distance tiles fetch in a stable order.
func rankByDistance(ids []tile.ID, grid *tile.Grid, viewport models.Viewport) {
	centerLat := viewport.CenterLat()
	centerLng := viewport.CenterLng()

	distance := make(map[tile.ID]float64, len(ids))
	for _, id := range ids {
		bounds := grid.BoundsOf(id)
		dLat := bounds.CenterLat - centerLat
		dLng := bounds.CenterLng - centerLng
		distance[id] = dLat*dLat + dLng*dLng
	}

	sort.Slice(ids, func(i, j int) bool {
		if distance[ids[i]] != distance[ids[j]] {
			return distance[ids[i]] < distance[ids[j]]
		}
		return ids[i].Less(ids[j])
	})
}

// batchTiles partitions tiles into consecutive groups of size. The last
// batch may be short. size < 1 is treated as 1.
func batchTiles(ids []tile.ID, size int) [][]tile.ID {
	if size < 1 {
		size = 1
	}
	if len(ids) == 0 {
		return nil
	}

	batches := make([][]tile.ID, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// coldFailure builds the all-cold error. Any non-rate-limit failure in
// the mix means upstream is truly unhealthy; a pure 429 streak keeps
// ebird.ErrRateLimited is-able so the API layer can answer with the
// rate-limit error code.
func coldFailure(outcome foregroundOutcome) error {
	representative := outcome.errs[0]
	for _, err := range outcome.errs {
		if !errors.Is(err, ebird.ErrRateLimited) {
			representative = err
			break
		}
	}
	return fmt.Errorf("%w: viewport cold and every foreground fetch failed: %w", ErrUpstreamUnavailable, representative)
}
