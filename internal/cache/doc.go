// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
Package cache provides the two in-memory stores behind the query engine:
the tile cache (tile id → observations) and the client ledger (client id →
delivered tiles).

# Overview

The tile cache stores one immutable entry per geographic tile:

  - Get performs lazy expiration: a found-but-expired entry is removed
    and reported as a miss.
  - Put always creates a fresh entry with a new expiry; an entry's
    expires-at never changes in place (refreshing means replacement).
  - An entry with zero observations is valid data. Failed upstream
    fetches are cached as empty entries to suppress repeated failing
    calls until the TTL lapses.
  - An optional max-entries cap adds least-recently-used eviction on top
    of TTL expiry. With the cap disabled (0) the cache grows unbounded
    between sweeps.

The client ledger tracks which tiles each client has already received so
repeat queries return only the delta:

  - Seen is additive within an entry's lifetime and refreshes the
    entry's last-touched time.
  - MissingFor never mutates; an absent or idle-expired client simply
    reports every tile as missing, which re-delivers everything (safe).
  - Reset drops one client's entry on demand.

# Sweeping

Neither store runs its own goroutine. The supervision tree's sweeper
service calls Sweep on both at the configured interval; between sweeps
lazy expiration keeps reads correct. Sweep results feed the
administrative cache endpoints.

# Thread Safety

Both stores are safe for concurrent use. The tile cache serializes all
entry access through one mutex because reads also update recency order;
the ledger uses a read-write mutex (MissingFor is read-only).

# Memory

Tile cache stats report an approximate byte size computed from string
lengths plus fixed per-record overhead. The figure exists for operators
watching growth trends, not for accounting.
*/
package cache
