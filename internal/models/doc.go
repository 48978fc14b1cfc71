// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
Package models defines data structures for the Ornithographus application.

This package contains all data models used throughout the application: the
upstream observation wire format, the cache-resident merged observation form,
the client-facing tagged observation, viewport queries, notification event
payloads, and the standardized API response envelope. It serves as the single
source of truth for data structure definitions.

Key Components:

  - Observation: raw upstream record as returned by the observation API
  - CachedObservation: merged record held in the tile cache (aggregated
    submission IDs, fused notable flag)
  - TaggedObservation: client wire form carrying the owning tile identifier
  - Viewport: axis-aligned lat/lng query rectangle
  - BatchCompletion: background fetch completion event payload
  - APIResponse: standardized API response wrapper

Model Categories:

 1. Upstream Models:
    Observation mirrors the upstream JSON field names exactly so responses
    decode without translation layers.

 2. Cache Models:
    CachedObservation is produced by the merge pipeline and is immutable once
    stored; TaggedObservation adds the tile identifier at assembly time.

 3. API Request/Response Models:
    APIResponse, Metadata, and APIError form the uniform response envelope;
    QueryResult and CacheStats are endpoint payloads carried in Data.

Design Principles:

  - JSON tags use the upstream's camelCase names for observation fields and
    snake_case for envelope metadata, matching what clients already parse.
  - Models contain no behavior beyond small derivation helpers; all business
    logic lives in the tile, cache, ebird, and engine packages.
*/
package models
