// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

//go:build !nats

package events

import "fmt"

// NewPublisher returns an error when NATS dependencies are not compiled
// in. Build with -tags=nats to enable the event mirror.
func NewPublisher(cfg Config) (*Mirror, error) {
	return nil, fmt.Errorf("NATS event mirror not available: build with -tags=nats")
}
