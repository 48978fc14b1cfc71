// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

//go:build !nats

package main

import (
	"context"

	"github.com/tomtom215/ornithographus/internal/config"
	"github.com/tomtom215/ornithographus/internal/engine"
	"github.com/tomtom215/ornithographus/internal/logging"
)

// initEvents is a no-op without the nats build tag. Enabling the mirror
// on a binary that cannot provide it is a misconfiguration worth a loud
// log line, but not a startup failure.
func initEvents(_ context.Context, cfg *config.Config, _ *engine.Engine) (func(), error) {
	if cfg.Events.Enabled {
		logging.Warn().Msg("NATS_ENABLED=true but binary built without -tags nats; event mirror unavailable")
	}
	return func() {}, nil
}
