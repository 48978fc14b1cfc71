// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/models"
)

// TileSweeper interface matches the engine's on-demand sweep method.
//
// This interface allows the SweeperService to drive periodic cache
// maintenance without importing the engine package, avoiding circular
// dependencies.
//
// Satisfied by *engine.Engine from internal/engine:
//   - SweepNow() models.SweepResult
type TileSweeper interface {
	SweepNow() models.SweepResult
}

// SweeperService periodically evicts expired tiles and idle client
// ledgers from the cache.
//
// The engine exposes sweeping as an on-demand operation (also reachable
// through the admin API); this service owns the schedule. The first
// sweep fires after a jittered delay in [interval/2, interval), and
// every subsequent sweep fires one full interval after the previous one
// completed.
//
// Example usage:
//
//	svc := services.NewSweeperService(eng, cfg.Cache.SweepInterval)
//	tree.AddMaintenanceService(svc)
type SweeperService struct {
	sweeper  TileSweeper
	interval time.Duration
	name     string
}

// NewSweeperService creates a new sweeper service.
//
// If interval is zero or negative, a default of 5 minutes is used.
func NewSweeperService(sweeper TileSweeper, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweeperService{
		sweeper:  sweeper,
		interval: interval,
		name:     "tile-sweeper",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Waits a jittered delay in [interval/2, interval) before the first sweep
//  2. Calls SweepNow on every tick and resets the timer to the full interval
//  3. Returns ctx.Err() when the context is canceled
//
// The engine logs sweep outcomes itself; this loop only traces that the
// schedule is alive.
func (s *SweeperService) Serve(ctx context.Context) error {
	delay := s.interval
	if half := s.interval / 2; half > 0 {
		//nolint:gosec // G404: Using weak random for non-cryptographic jitter in sweep scheduling
		delay = half + time.Duration(rand.Int63n(int64(half)))
	}

	logging.Debug().
		Dur("interval", s.interval).
		Dur("first_sweep_in", delay).
		Msg("Tile sweeper started")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			result := s.sweeper.SweepNow()
			logging.Debug().
				Int("removed_tiles", result.RemovedTiles).
				Int("removed_clients", result.RemovedClients).
				Msg("Scheduled sweep completed")
			timer.Reset(s.interval)
		}
	}
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *SweeperService) String() string {
	return s.name
}
