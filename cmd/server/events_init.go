// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

//go:build nats

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/ornithographus/internal/config"
	"github.com/tomtom215/ornithographus/internal/engine"
	"github.com/tomtom215/ornithographus/internal/events"
	"github.com/tomtom215/ornithographus/internal/logging"
)

// initEvents wires the optional NATS event mirror into the engine.
//
// With EVENTS disabled it does nothing. With NATS_EMBEDDED=true an
// in-process JetStream server is started first and the mirror connects
// to it; otherwise the mirror connects to NATS_URL. Every background
// batch completion the engine publishes to WebSocket subscribers is
// then also mirrored to the configured topic.
//
// The returned cleanup closes the mirror and, if one was started, shuts
// down the embedded server. It is safe to call when nothing was wired.
func initEvents(ctx context.Context, cfg *config.Config, eng *engine.Engine) (func(), error) {
	if !cfg.Events.Enabled {
		logging.Info().Msg("Event mirror disabled (NATS_ENABLED=false)")
		return func() {}, nil
	}

	url := cfg.Events.NATSURL
	var embedded *events.EmbeddedServer

	if cfg.Events.Embedded {
		srv, err := events.NewEmbeddedServer(events.DefaultEmbeddedServerConfig(cfg.Events.StoreDir))
		if err != nil {
			return nil, fmt.Errorf("failed to start embedded NATS server: %w", err)
		}
		embedded = srv
		url = srv.ClientURL()
		logging.Info().
			Str("url", url).
			Str("store_dir", cfg.Events.StoreDir).
			Msg("Embedded NATS JetStream server started")
	}

	mirror, err := events.NewPublisher(events.DefaultConfig(url, cfg.Events.Topic))
	if err != nil {
		if embedded != nil {
			if shutdownErr := embedded.Shutdown(ctx); shutdownErr != nil {
				logging.Error().Err(shutdownErr).Msg("Error shutting down embedded NATS server")
			}
		}
		return nil, fmt.Errorf("failed to create event mirror: %w", err)
	}

	eng.SetEventPublisher(mirror)
	logging.Info().
		Str("topic", cfg.Events.Topic).
		Bool("embedded", cfg.Events.Embedded).
		Msg("Event mirror wired to engine")

	cleanup := func() {
		if err := mirror.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event mirror")
		}
		if embedded != nil {
			if err := embedded.Shutdown(context.Background()); err != nil {
				logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
			}
		}
	}
	return cleanup, nil
}
