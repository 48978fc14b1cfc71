// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/ornithographus/internal/models"
	"github.com/tomtom215/ornithographus/internal/tile"
)

// Entry is one cached tile: the observations that survived the merge
// pipeline plus creation and expiry timestamps. ExpiresAt is fixed at
// creation; refreshing a tile replaces the whole entry.
type Entry struct {
	Observations []models.CachedObservation
	CreatedAt    time.Time
	ExpiresAt    time.Time
	SizeBytes    int64
}

// tileNode wraps an Entry in the recency list. head.next is the most
// recently used node, tail.prev the least.
type tileNode struct {
	id    tile.ID
	entry Entry
	prev  *tileNode
	next  *tileNode
}

// StatsSnapshot is the tile cache's contribution to the administrative
// stats payload. ExpiredEntries counts entries already past expiry that
// no sweep or read has removed yet.
type StatsSnapshot struct {
	TotalEntries     int64
	ExpiredEntries   int64
	ApproximateBytes int64
	OldestAgeSeconds float64
}

// TileCache is a thread-safe tile id → observations store with TTL
// expiry and an optional LRU cap.
//
// Reads perform lazy expiration and update recency order, so all entry
// access goes through one mutex. The periodic sweep lives in the
// supervision tree, not here.
type TileCache struct {
	mu         sync.Mutex
	entries    map[tile.ID]*tileNode
	ttl        time.Duration
	maxEntries int

	// Recency list sentinels.
	head *tileNode
	tail *tileNode
}

// NewTileCache creates a tile cache whose entries expire ttl after
// creation. maxEntries > 0 additionally bounds the entry count with LRU
// eviction; 0 disables the cap.
func NewTileCache(ttl time.Duration, maxEntries int) *TileCache {
	c := &TileCache{
		entries:    make(map[tile.ID]*tileNode),
		ttl:        ttl,
		maxEntries: maxEntries,
		head:       &tileNode{},
		tail:       &tileNode{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the entry for a tile if present and not expired. A
// found-but-expired entry is removed and reported as a miss. Hits move
// the entry to the front of the recency order.
func (c *TileCache) Get(id tile.ID) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, exists := c.entries[id]
	if !exists {
		return Entry{}, false
	}
	if !time.Now().Before(node.entry.ExpiresAt) {
		c.removeNode(node)
		return Entry{}, false
	}

	c.moveToFront(node)
	return node.entry, true
}

// Put stores a fresh entry for the tile, replacing any existing one.
// The entry's expiry is createdAt+TTL and never changes afterwards. An
// empty observations slice is a valid entry meaning "upstream returned
// nothing" (including suppressed fetch failures).
func (c *TileCache) Put(id tile.ID, observations []models.CachedObservation) {
	now := time.Now()
	entry := Entry{
		Observations: observations,
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.ttl),
		SizeBytes:    approximateSize(observations),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.entries[id]; exists {
		node.entry = entry
		c.moveToFront(node)
		return
	}

	node := &tileNode{id: id, entry: entry}
	c.addToFront(node)
	c.entries[id] = node

	if c.maxEntries > 0 {
		for len(c.entries) > c.maxEntries {
			c.evictOldest()
		}
	}
}

// Missing returns, in input order, the subset of ids a Get would miss.
// Expired entries encountered along the way are removed, matching Get's
// lazy expiry; recency order is not touched.
func (c *TileCache) Missing(ids []tile.ID) []tile.ID {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	missing := make([]tile.ID, 0, len(ids))
	for _, id := range ids {
		node, exists := c.entries[id]
		if exists && now.Before(node.entry.ExpiresAt) {
			continue
		}
		if exists {
			c.removeNode(node)
		}
		missing = append(missing, id)
	}
	return missing
}

// Sweep removes every expired entry and returns the number removed.
func (c *TileCache) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if !now.Before(entry.entry.ExpiresAt) {
			c.removeNode(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// Len returns the current entry count, expired entries included.
func (c *TileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats snapshots the cache without mutating it: totals include entries
// past expiry that nothing has removed yet.
func (c *TileCache) Stats() StatsSnapshot {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := StatsSnapshot{TotalEntries: int64(len(c.entries))}
	var oldest time.Duration
	for _, node := range c.entries {
		if !now.Before(node.entry.ExpiresAt) {
			snapshot.ExpiredEntries++
		}
		snapshot.ApproximateBytes += node.entry.SizeBytes
		if age := now.Sub(node.entry.CreatedAt); age > oldest {
			oldest = age
		}
	}
	snapshot.OldestAgeSeconds = oldest.Seconds()
	return snapshot
}

// Internal list operations, called with the lock held.

func (c *TileCache) addToFront(node *tileNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *TileCache) moveToFront(node *tileNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
	c.addToFront(node)
}

func (c *TileCache) removeNode(node *tileNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
	delete(c.entries, node.id)
}

func (c *TileCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeNode(oldest)
}

// approximateSize estimates an entry's memory footprint from string
// lengths plus fixed per-record overhead. Good enough for the stats
// endpoint's growth trend, nothing more.
func approximateSize(observations []models.CachedObservation) int64 {
	const perObservation = 112 // struct, slice headers, map bookkeeping
	const perSubID = 16

	size := int64(0)
	for i := range observations {
		o := &observations[i]
		size += perObservation
		size += int64(len(o.SpeciesCode) + len(o.ComName) + len(o.SciName) + len(o.ObsDt))
		for _, subID := range o.SubIDs {
			size += perSubID + int64(len(subID))
		}
	}
	return size
}
