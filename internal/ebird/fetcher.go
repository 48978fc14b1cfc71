// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package ebird

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tomtom215/ornithographus/internal/config"
	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/metrics"
	"github.com/tomtom215/ornithographus/internal/models"
	"github.com/tomtom215/ornithographus/internal/tile"
)

// TileFetcher turns a tile identifier into the tile's merged observation
// list. Each tile costs two upstream requests, recent and notable, issued
// concurrently against the disc that circumscribes the tile; the shared
// pacer inside the client keeps the pair within the global request gap.
type TileFetcher struct {
	grid   *tile.Grid
	client ObservationFetcher
	cfg    *config.EBirdConfig
}

// NewTileFetcher creates a fetcher over the given grid and upstream client.
func NewTileFetcher(grid *tile.Grid, client ObservationFetcher, cfg *config.EBirdConfig) *TileFetcher {
	return &TileFetcher{
		grid:   grid,
		client: client,
		cfg:    cfg,
	}
}

// FetchTile fetches both feeds for one tile and fuses them into the
// deduplicated, bounds-clipped list a cache entry stores. A failure on
// either feed fails the whole tile: a half-fetched tile would cache an
// observation list missing one feed's records for a full TTL, which is
// worse than retrying on the next viewport that needs the tile.
func (f *TileFetcher) FetchTile(ctx context.Context, id tile.ID) ([]models.CachedObservation, error) {
	bounds := f.grid.BoundsOf(id)
	distKm := fetchDistKm(f.grid, f.cfg.RadiusBuffer)

	start := time.Now()

	var wg sync.WaitGroup
	var recentObs, notableObs []models.Observation
	var recentErr, notableErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		recentObs, recentErr = f.client.FetchObservations(ctx, FeedRecent, bounds.CenterLat, bounds.CenterLng, distKm, f.cfg.MaxBackDays)
	}()
	go func() {
		defer wg.Done()
		notableObs, notableErr = f.client.FetchObservations(ctx, FeedNotable, bounds.CenterLat, bounds.CenterLng, distKm, f.cfg.MaxBackDays)
	}()
	wg.Wait()

	if recentErr != nil || notableErr != nil {
		err := fmt.Errorf("tile %s: %w", id, errors.Join(recentErr, notableErr))
		metrics.RecordTileFetch(err, 0)
		logging.Warn().
			Err(err).
			Str("tile", id.String()).
			Dur("duration", time.Since(start)).
			Msg("Tile fetch failed")
		return nil, err
	}

	merged := tile.MergeClip(recentObs, notableObs, bounds)
	metrics.RecordTileFetch(nil, len(merged))

	logging.Debug().
		Str("tile", id.String()).
		Int("recent", len(recentObs)).
		Int("notable", len(notableObs)).
		Int("observations", len(merged)).
		Dur("duration", time.Since(start)).
		Msg("Tile fetched")

	return merged, nil
}

// fetchDistKm converts the grid's buffered fetch radius to the integer km
// the upstream dist parameter takes, rounding up so the disc never
// undershoots the tile corners. The upstream rejects dist < 1.
func fetchDistKm(grid *tile.Grid, buffer float64) int {
	distKm := int(math.Ceil(grid.FetchRadiusKm(buffer)))
	if distKm < 1 {
		distKm = 1
	}
	return distKm
}
