// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/ornithographus/internal/models"
	"github.com/tomtom215/ornithographus/internal/tile"
)

func sampleObservations(n int) []models.CachedObservation {
	out := make([]models.CachedObservation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.CachedObservation{
			SpeciesCode: fmt.Sprintf("spec%02d", i),
			ComName:     "Song Sparrow",
			SciName:     "Melospiza melodia",
			Lat:         36.97,
			Lng:         -122.03,
			ObsDt:       "2026-08-21 09:15",
			SubIDs:      []string{fmt.Sprintf("S%d", i)},
		})
	}
	return out
}

func TestTileCache_PutGet(t *testing.T) {
	t.Parallel()

	c := NewTileCache(time.Minute, 0)
	id := tile.ID{Y: 2051, X: -5412}

	c.Put(id, sampleObservations(3))

	entry, ok := c.Get(id)
	if !ok {
		t.Fatal("Get after Put should return the entry")
	}
	if len(entry.Observations) != 3 {
		t.Errorf("entry has %d observations, want 3", len(entry.Observations))
	}
	if entry.ExpiresAt.Before(entry.CreatedAt) {
		t.Error("ExpiresAt must not precede CreatedAt")
	}
	if entry.SizeBytes <= 0 {
		t.Errorf("SizeBytes = %d, want > 0", entry.SizeBytes)
	}
}

func TestTileCache_GetUnknown(t *testing.T) {
	t.Parallel()

	c := NewTileCache(time.Minute, 0)

	if _, ok := c.Get(tile.ID{Y: 1, X: 1}); ok {
		t.Error("Get on an unknown tile should miss")
	}
}

func TestTileCache_LazyExpiration(t *testing.T) {
	t.Parallel()

	c := NewTileCache(50*time.Millisecond, 0)
	id := tile.ID{Y: 1, X: 2}

	c.Put(id, sampleObservations(1))
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get(id); ok {
		t.Error("Get should miss after TTL")
	}
	if got := c.Len(); got != 0 {
		t.Errorf("Len after expired Get = %d, want 0 (lazy removal)", got)
	}
}

func TestTileCache_PutReplacesEntry(t *testing.T) {
	t.Parallel()

	c := NewTileCache(time.Minute, 0)
	id := tile.ID{Y: 1, X: 2}

	c.Put(id, sampleObservations(1))
	c.Put(id, sampleObservations(5))

	entry, ok := c.Get(id)
	if !ok {
		t.Fatal("Get after second Put should hit")
	}
	if len(entry.Observations) != 5 {
		t.Errorf("entry has %d observations, want the replacement's 5", len(entry.Observations))
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Len = %d, want 1 after replacing the same tile", got)
	}
}

func TestTileCache_EmptyEntryIsValid(t *testing.T) {
	t.Parallel()

	// A failed or empty upstream fetch is cached as an empty entry so
	// the tile is not refetched until the TTL lapses.
	c := NewTileCache(time.Minute, 0)
	id := tile.ID{Y: 1, X: 2}

	c.Put(id, nil)

	entry, ok := c.Get(id)
	if !ok {
		t.Fatal("an empty entry must be a cache hit")
	}
	if len(entry.Observations) != 0 {
		t.Errorf("entry has %d observations, want 0", len(entry.Observations))
	}
	if missing := c.Missing([]tile.ID{id}); len(missing) != 0 {
		t.Errorf("Missing = %v, want none for an empty cached tile", missing)
	}
}

func TestTileCache_MissingPreservesOrder(t *testing.T) {
	t.Parallel()

	c := NewTileCache(time.Minute, 0)
	a := tile.ID{Y: 1, X: 1}
	b := tile.ID{Y: 1, X: 2}
	d := tile.ID{Y: 1, X: 3}

	c.Put(b, sampleObservations(1))

	missing := c.Missing([]tile.ID{a, b, d})
	if len(missing) != 2 || missing[0] != a || missing[1] != d {
		t.Errorf("Missing = %v, want [%v %v] in input order", missing, a, d)
	}
}

func TestTileCache_MissingRemovesExpired(t *testing.T) {
	t.Parallel()

	c := NewTileCache(50*time.Millisecond, 0)
	id := tile.ID{Y: 1, X: 2}

	c.Put(id, sampleObservations(1))
	time.Sleep(100 * time.Millisecond)

	missing := c.Missing([]tile.ID{id})
	if len(missing) != 1 || missing[0] != id {
		t.Errorf("Missing = %v, want the expired tile", missing)
	}
	if got := c.Len(); got != 0 {
		t.Errorf("Len = %d, want 0 after Missing removed the expired entry", got)
	}
}

func TestTileCache_Sweep(t *testing.T) {
	t.Parallel()

	c := NewTileCache(50*time.Millisecond, 0)
	expired := tile.ID{Y: 1, X: 1}

	c.Put(expired, sampleObservations(1))
	time.Sleep(100 * time.Millisecond)
	fresh := tile.ID{Y: 1, X: 2}
	c.Put(fresh, sampleObservations(1))

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d entries, want 1", removed)
	}
	if _, ok := c.Get(fresh); !ok {
		t.Error("Sweep must keep unexpired entries")
	}
	if stats := c.Stats(); stats.ExpiredEntries != 0 {
		t.Errorf("ExpiredEntries after sweep = %d, want 0", stats.ExpiredEntries)
	}
}

func TestTileCache_StatsCountsExpiredWithoutRemoving(t *testing.T) {
	t.Parallel()

	c := NewTileCache(50*time.Millisecond, 0)
	id := tile.ID{Y: 1, X: 1}

	c.Put(id, sampleObservations(2))
	time.Sleep(100 * time.Millisecond)

	stats := c.Stats()
	if stats.TotalEntries != 1 {
		t.Errorf("TotalEntries = %d, want 1 (stats must not sweep)", stats.TotalEntries)
	}
	if stats.ExpiredEntries != 1 {
		t.Errorf("ExpiredEntries = %d, want 1", stats.ExpiredEntries)
	}
	if stats.ApproximateBytes <= 0 {
		t.Errorf("ApproximateBytes = %d, want > 0", stats.ApproximateBytes)
	}
	if stats.OldestAgeSeconds <= 0 {
		t.Errorf("OldestAgeSeconds = %v, want > 0", stats.OldestAgeSeconds)
	}
}

func TestTileCache_StatsEmpty(t *testing.T) {
	t.Parallel()

	stats := NewTileCache(time.Minute, 0).Stats()
	if stats.TotalEntries != 0 || stats.ExpiredEntries != 0 || stats.ApproximateBytes != 0 || stats.OldestAgeSeconds != 0 {
		t.Errorf("empty cache stats = %+v, want zeros", stats)
	}
}

func TestTileCache_MaxEntriesEvictsLRU(t *testing.T) {
	t.Parallel()

	c := NewTileCache(time.Minute, 2)
	a := tile.ID{Y: 1, X: 1}
	b := tile.ID{Y: 1, X: 2}
	d := tile.ID{Y: 1, X: 3}

	c.Put(a, sampleObservations(1))
	c.Put(b, sampleObservations(1))

	// Touch a so b becomes the least recently used.
	if _, ok := c.Get(a); !ok {
		t.Fatal("Get(a) should hit")
	}

	c.Put(d, sampleObservations(1))

	if _, ok := c.Get(b); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if _, ok := c.Get(a); !ok {
		t.Error("a should have survived eviction")
	}
	if _, ok := c.Get(d); !ok {
		t.Error("d should be present after insertion")
	}
}

func TestTileCache_RepeatedReadsReturnSameData(t *testing.T) {
	t.Parallel()

	c := NewTileCache(time.Minute, 0)
	id := tile.ID{Y: 2051, X: -5412}
	c.Put(id, sampleObservations(4))

	first, ok := c.Get(id)
	if !ok {
		t.Fatal("Get should hit")
	}
	for i := 0; i < 5; i++ {
		entry, ok := c.Get(id)
		if !ok {
			t.Fatal("repeated Get should hit within TTL")
		}
		if len(entry.Observations) != len(first.Observations) {
			t.Fatalf("read %d returned %d observations, want %d", i, len(entry.Observations), len(first.Observations))
		}
		if !entry.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("read %d CreatedAt changed: %v vs %v", i, entry.CreatedAt, first.CreatedAt)
		}
	}
}

func TestTileCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewTileCache(time.Minute, 100)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := tile.ID{Y: worker, X: i % 25}
				c.Put(id, sampleObservations(1))
				c.Get(id)
				c.Missing([]tile.ID{id, {Y: worker, X: -1}})
			}
		}(worker)
	}
	wg.Wait()

	if got := c.Len(); got == 0 || got > 100 {
		t.Errorf("Len = %d, want within (0, 100] after capped concurrent load", got)
	}
}

func BenchmarkTileCacheGet(b *testing.B) {
	c := NewTileCache(time.Minute, 0)
	id := tile.ID{Y: 2051, X: -5412}
	c.Put(id, sampleObservations(20))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(id)
	}
}
