// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/ornithographus/internal/tile"
)

// clientEntry is one client's delivered-tile set plus the idle clock
// that the sweeper checks.
type clientEntry struct {
	tiles       map[tile.ID]struct{}
	lastTouched time.Time
}

// Ledger tracks which tiles each client has already received. Entries
// grow additively and disappear only through Reset or the idle-TTL
// sweep; an expired or absent client sees every tile as missing, which
// re-delivers everything and is always safe.
type Ledger struct {
	mu      sync.RWMutex
	clients map[string]*clientEntry
	idleTTL time.Duration
}

// NewLedger creates a ledger whose client entries are swept after
// sitting idle for idleTTL.
func NewLedger(idleTTL time.Duration) *Ledger {
	return &Ledger{
		clients: make(map[string]*clientEntry),
		idleTTL: idleTTL,
	}
}

// Seen records tiles as delivered to the client, creating the entry on
// first delivery, and refreshes the entry's last-touched time. Callers
// must invoke it only after the tiles' observations have been placed
// into the response headed to this client.
func (l *Ledger) Seen(clientID string, ids []tile.ID) {
	if clientID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.clients[clientID]
	if !exists {
		entry = &clientEntry{tiles: make(map[tile.ID]struct{}, len(ids))}
		l.clients[clientID] = entry
	}
	for _, id := range ids {
		entry.tiles[id] = struct{}{}
	}
	entry.lastTouched = time.Now()
}

// MissingFor returns, in input order, the tiles the client has not yet
// received. An unknown or idle-expired client gets the full input back.
// MissingFor never mutates the ledger.
func (l *Ledger) MissingFor(clientID string, ids []tile.ID) []tile.ID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, exists := l.clients[clientID]
	if clientID == "" || !exists || l.expired(entry, time.Now()) {
		out := make([]tile.ID, len(ids))
		copy(out, ids)
		return out
	}

	missing := make([]tile.ID, 0, len(ids))
	for _, id := range ids {
		if _, seen := entry.tiles[id]; !seen {
			missing = append(missing, id)
		}
	}
	return missing
}

// Sweep removes clients idle past the TTL and returns how many were
// removed.
func (l *Ledger) Sweep() int {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for clientID, entry := range l.clients {
		if l.expired(entry, now) {
			delete(l.clients, clientID)
			removed++
		}
	}
	return removed
}

// Reset removes a client's entry so the next query re-delivers every
// tile. Reports whether an entry existed.
func (l *Ledger) Reset(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, existed := l.clients[clientID]
	delete(l.clients, clientID)
	return existed
}

// ClientCount returns the number of tracked clients, idle-expired
// entries included until the next sweep.
func (l *Ledger) ClientCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}

// TileCount returns how many tiles the ledger holds for a client, 0 for
// unknown clients.
func (l *Ledger) TileCount(clientID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, exists := l.clients[clientID]
	if !exists {
		return 0
	}
	return len(entry.tiles)
}

func (l *Ledger) expired(entry *clientEntry, now time.Time) bool {
	return now.Sub(entry.lastTouched) >= l.idleTTL
}
