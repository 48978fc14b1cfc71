// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

//go:build nats

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamName is the JetStream stream capturing the tile event subject.
const StreamName = "ORNITHOGRAPHUS_TILES"

// streamMaxAge bounds event retention; consumers further behind than a
// week re-warm from the API instead of replaying history.
const streamMaxAge = 7 * 24 * time.Hour

// dedupWindow is the JetStream duplicate-tracking window matched against
// the event UUID carried as the message ID.
const dedupWindow = 2 * time.Minute

// EnsureStream creates or updates the tile event stream so publishers
// and subscribers find it configured consistently. Idempotent.
func EnsureStream(ctx context.Context, nc *natsgo.Conn, topic string) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{topic},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      streamMaxAge,
		Duplicates:  dedupWindow,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	_, err = js.Stream(ctx, StreamName)
	if err == nil {
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", StreamName, err)
		}
		return nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", StreamName, err)
		}
		return nil
	}

	return fmt.Errorf("check stream %s: %w", StreamName, err)
}
