// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
Package events mirrors background batch completions to a message bus.

Every completion delivered to the WebSocket notification stream can also
be published as a TileEvent on a Watermill topic, so consumers outside
the process (cache warmers, dashboards, sibling instances) observe the
same tile lifecycle the browser does.

The Mirror core is transport-agnostic: it wraps any Watermill
message.Publisher and adds serialization, metadata, metrics, and an
optional circuit breaker. The NATS JetStream transport (NewPublisher,
EmbeddedServer) is compiled in only with -tags=nats; the default build
carries a constructor stub that reports the feature as unavailable.

Delivery is at-least-once on the bus side (JetStream deduplicates on
the event UUID) and best-effort from the engine's perspective: a failed
publish is logged and counted, never allowed to stall batch loading.
*/
package events
