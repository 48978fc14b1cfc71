// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
background.go - Batch Execution and Background Loading

Batches run one at a time; tiles within a batch fetch in parallel. The
batch size is the upstream parallelism bound, so sequential batches keep
total concurrency at MaxParallelRequests regardless of viewport size.

Foreground batches block the query. Background batches run detached on
the engine context and announce each completion to the requesting
client's notification stream (and to the external mirror when one is
wired). A failed background tile is cached empty like any other failure
and is left out of the completion's completed list; the completion still
fires so the client re-queries and the viewport converges.
*/
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/metrics"
	"github.com/tomtom215/ornithographus/internal/models"
	"github.com/tomtom215/ornithographus/internal/tile"
)

// foregroundOutcome aggregates fetch results across foreground batches
// for the all-cold failure check.
type foregroundOutcome struct {
	attempted int
	failed    int
	errs      []error
}

// batchResult reports one batch's outcome. completed holds only the
// tiles whose fetch produced data; failed tiles are cached empty and
// appear solely in errs.
type batchResult struct {
	completed []tile.ID
	errs      []error
}

// runForeground executes batches sequentially, blocking until all
// finish or the request context ends. On cancellation the orchestrator
// abandons its wait; the in-flight batch keeps running on the engine
// context and lands in the cache.
func (e *Engine) runForeground(ctx context.Context, batches [][]tile.ID) (foregroundOutcome, error) {
	var outcome foregroundOutcome
	for _, batch := range batches {
		select {
		case result := <-e.fetchBatch(batch):
			outcome.attempted += len(batch)
			outcome.failed += len(result.errs)
			outcome.errs = append(outcome.errs, result.errs...)
		case <-ctx.Done():
			return outcome, ctx.Err()
		}
	}
	return outcome, nil
}

// fetchBatch fetches every tile in the batch in parallel on the engine
// context and delivers a single result when the slowest tile finishes.
// The channel is buffered, so an abandoned wait never strands the
// goroutine.
func (e *Engine) fetchBatch(batch []tile.ID) <-chan batchResult {
	done := make(chan batchResult, 1)

	go func() {
		errs := make([]error, len(batch))

		var wg sync.WaitGroup
		for i, id := range batch {
			wg.Add(1)
			go func(slot int, id tile.ID) {
				defer wg.Done()
				errs[slot] = e.fetchAndCache(id)
			}(i, id)
		}
		wg.Wait()

		var result batchResult
		for slot, err := range errs {
			if err != nil {
				result.errs = append(result.errs, err)
				continue
			}
			result.completed = append(result.completed, batch[slot])
		}
		done <- result
	}()

	return done
}

// fetchAndCache fetches one tile and stores the outcome. Fetch failures
// cache an empty entry: the viewport renders without that tile, and the
// empty entry suppresses repeat upstream calls until its TTL expires.
func (e *Engine) fetchAndCache(id tile.ID) error {
	observations, err := e.fetcher.FetchTile(e.baseCtx, id)
	if err != nil {
		e.tiles.Put(id, nil)
		return err
	}
	e.tiles.Put(id, observations)
	return nil
}

// spawnBackground launches the remaining batches as one detached task
// tied to the engine lifetime.
func (e *Engine) spawnBackground(batches [][]tile.ID, viewport models.Viewport, clientID string) {
	e.bgWg.Add(1)
	go e.runBackground(batches, viewport, clientID)
}

// runBackground drains the background batches sequentially, announcing
// each completion. Every batch produces a completion even when all its
// tiles failed; the final batch is marked complete so clients know the
// viewport has converged.
func (e *Engine) runBackground(batches [][]tile.ID, viewport models.Viewport, clientID string) {
	defer e.bgWg.Done()

	pending := 0
	for _, batch := range batches {
		pending += len(batch)
	}
	metrics.BackgroundTilesPending.Add(float64(pending))
	defer func() { metrics.BackgroundTilesPending.Sub(float64(pending)) }()

	start := time.Now()
	for i, batch := range batches {
		if e.baseCtx.Err() != nil {
			logging.Debug().
				Str("client_id", clientID).
				Int("abandoned_batches", len(batches)-i).
				Msg("Background loading stopped by shutdown")
			return
		}

		result := <-e.fetchBatch(batch)
		metrics.BackgroundBatches.Inc()

		completion := models.BatchCompletion{
			CompletedTileIDs: tileIDStrings(result.completed),
			BatchNumber:      i + 1,
			TotalBatches:     len(batches),
			RemainingTileIDs: remainingTileIDs(batches[i+1:]),
			Viewport:         viewport,
			IsComplete:       i == len(batches)-1,
		}
		e.publishCompletion(clientID, completion)

		if len(result.errs) > 0 {
			logging.Warn().
				Str("client_id", clientID).
				Int("batch", i+1).
				Int("failed_tiles", len(result.errs)).
				Err(result.errs[0]).
				Msg("Background batch finished with failures")
		}
	}

	metrics.TileCacheEntries.Set(float64(e.tiles.Len()))
	logging.Debug().
		Str("client_id", clientID).
		Int("batches", len(batches)).
		Int("tiles", pending).
		Dur("duration", time.Since(start)).
		Msg("Background loading completed")
}

// publishCompletion fans a completion out to the client's notification
// stream and the external mirror. Anonymous queries have no stream to
// notify; the mirror, when wired, sees every completion.
func (e *Engine) publishCompletion(clientID string, completion models.BatchCompletion) {
	if clientID != "" && e.hub != nil {
		e.hub.Publish(clientID, completion)
	}
	if e.publisher != nil {
		ctx, cancel := context.WithTimeout(e.baseCtx, 5*time.Second)
		defer cancel()
		if err := e.publisher.PublishBatchCompletion(ctx, clientID, completion); err != nil {
			logging.Warn().Err(err).Str("client_id", clientID).Msg("Failed to mirror batch completion")
		}
	}
}

func tileIDStrings(ids []tile.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func remainingTileIDs(batches [][]tile.ID) []string {
	out := []string{}
	for _, batch := range batches {
		for _, id := range batch {
			out = append(out, id.String())
		}
	}
	return out
}
