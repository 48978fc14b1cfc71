// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package ebird

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ornithographus/internal/config"
	"github.com/tomtom215/ornithographus/internal/models"
	"github.com/tomtom215/ornithographus/internal/tile"
)

// newTileFetcher wires a fetcher against the given test server
func newTileFetcher(grid *tile.Grid, serverURL string) *TileFetcher {
	cfg := &config.EBirdConfig{
		BaseURL:      serverURL,
		APIKey:       "test-key",
		MaxBackDays:  14,
		RadiusBuffer: 1.1,
		MaxRetries:   0,
	}
	client := NewClient(cfg, NewPacer(5*time.Second))
	client.retryBaseDelay = 1 * time.Millisecond
	return NewTileFetcher(grid, client, cfg)
}

// feedServer answers the two feed endpoints with canned observation lists
func feedServer(t *testing.T, recent, notable []models.Observation) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		var err error
		switch r.URL.Path {
		case "/geo/recent":
			body, err = json.Marshal(recent)
		case "/geo/recent/notable":
			body, err = json.Marshal(notable)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			t.Fatalf("marshal canned feed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
}

// TestFetchTileMergesFeeds verifies the two feeds fuse into one
// deduplicated, notability-tagged, bounds-clipped list
func TestFetchTileMergesFeeds(t *testing.T) {
	grid := tile.NewGrid(2.0, 85.0, 0.1)
	id := grid.IDForPoint(36.97, -122.03)
	bounds := grid.BoundsOf(id)

	recent := []models.Observation{
		{SpeciesCode: "amecro", ComName: "American Crow", SciName: "Corvus brachyrhynchos",
			Lat: bounds.CenterLat, Lng: bounds.CenterLng, ObsDt: "2026-08-20 09:15", SubID: "S111"},
		{SpeciesCode: "rethaw", ComName: "Red-tailed Hawk", SciName: "Buteo jamaicensis",
			Lat: bounds.MinLat, Lng: bounds.MinLng, ObsDt: "2026-08-19 17:02", SubID: "S333"},
		// Inside the fetch disc but outside the tile: must be clipped
		{SpeciesCode: "bnowl", ComName: "Barn Owl", SciName: "Tyto alba",
			Lat: bounds.MaxLat + 0.01, Lng: bounds.CenterLng, ObsDt: "2026-08-18 21:40", SubID: "S444"},
	}
	notable := []models.Observation{
		{SpeciesCode: "amecro", ComName: "American Crow", SciName: "Corvus brachyrhynchos",
			Lat: bounds.CenterLat, Lng: bounds.CenterLng, ObsDt: "2026-08-20 09:15", SubID: "S222"},
	}

	server := feedServer(t, recent, notable)
	defer server.Close()

	fetcher := newTileFetcher(grid, server.URL)

	got, err := fetcher.FetchTile(context.Background(), id)
	if err != nil {
		t.Fatalf("FetchTile() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 (out-of-bounds record clipped)", len(got))
	}

	byCode := make(map[string]models.CachedObservation, len(got))
	for _, obs := range got {
		byCode[obs.SpeciesCode] = obs
	}

	crow, ok := byCode["amecro"]
	if !ok {
		t.Fatal("amecro missing from merged result")
	}
	if !crow.IsNotable {
		t.Error("amecro appears in the notable feed, IsNotable = false")
	}
	if len(crow.SubIDs) != 2 {
		t.Errorf("amecro SubIDs = %v, want both feeds' submission ids", crow.SubIDs)
	}

	hawk, ok := byCode["rethaw"]
	if !ok {
		t.Fatal("rethaw missing from merged result")
	}
	if hawk.IsNotable {
		t.Error("rethaw is recent-only, IsNotable = true")
	}

	if _, ok := byCode["bnowl"]; ok {
		t.Error("bnowl is outside the tile bounds, should be clipped")
	}
}

// TestFetchTileRequestParameters verifies both feeds are queried once with
// the tile-centered disc parameters
func TestFetchTileRequestParameters(t *testing.T) {
	grid := tile.NewGrid(2.0, 85.0, 0.1)
	id := grid.IDForPoint(52.52, 13.405)
	bounds := grid.BoundsOf(id)

	var mu sync.Mutex
	requests := make(map[string]map[string]string)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests[r.URL.Path] = map[string]string{
			"lat":  r.URL.Query().Get("lat"),
			"lng":  r.URL.Query().Get("lng"),
			"dist": r.URL.Query().Get("dist"),
			"back": r.URL.Query().Get("back"),
		}
		mu.Unlock()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	fetcher := newTileFetcher(grid, server.URL)

	if _, err := fetcher.FetchTile(context.Background(), id); err != nil {
		t.Fatalf("FetchTile() error = %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("requested %d endpoints, want 2 (recent + notable)", len(requests))
	}

	// Coordinates travel at the upstream's two-decimal precision.
	wantLat := strconv.FormatFloat(bounds.CenterLat, 'f', 2, 64)
	wantLng := strconv.FormatFloat(bounds.CenterLng, 'f', 2, 64)
	// 2km tiles, diagonal 2*sqrt(2) ~ 2.83km, buffered by 1.1 ~ 3.11km, rounded up
	wantDist := "4"

	for _, path := range []string{"/geo/recent", "/geo/recent/notable"} {
		query, ok := requests[path]
		if !ok {
			t.Errorf("endpoint %s was not queried", path)
			continue
		}
		if query["lat"] != wantLat || query["lng"] != wantLng {
			t.Errorf("%s center = (%s, %s), want (%s, %s)", path, query["lat"], query["lng"], wantLat, wantLng)
		}
		if query["dist"] != wantDist {
			t.Errorf("%s dist = %s, want %s", path, query["dist"], wantDist)
		}
		if query["back"] != "14" {
			t.Errorf("%s back = %s, want 14", path, query["back"])
		}
	}
}

// TestFetchTileFeedFailure verifies one failing feed fails the whole tile
func TestFetchTileFeedFailure(t *testing.T) {
	grid := tile.NewGrid(2.0, 85.0, 0.1)
	id := grid.IDForPoint(36.97, -122.03)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/geo/recent/notable" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("notable feed broke"))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	fetcher := newTileFetcher(grid, server.URL)

	got, err := fetcher.FetchTile(context.Background(), id)
	if err == nil {
		t.Fatal("Expected error when one feed fails")
	}
	if got != nil {
		t.Errorf("FetchTile() = %v, want nil on failure", got)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("errors.As(err, *StatusError) = false, err = %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusInternalServerError)
	}
}

// TestFetchTileRateLimited verifies exhausted 429s surface as ErrRateLimited
func TestFetchTileRateLimited(t *testing.T) {
	grid := tile.NewGrid(2.0, 85.0, 0.1)
	id := grid.IDForPoint(36.97, -122.03)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := newTileFetcher(grid, server.URL)

	_, err := fetcher.FetchTile(context.Background(), id)
	if err == nil {
		t.Fatal("Expected error when upstream rate limits")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("errors.Is(err, ErrRateLimited) = false, err = %v", err)
	}
}

// TestFetchTileEmptyDisc verifies two empty feeds produce an empty tile
// without error
func TestFetchTileEmptyDisc(t *testing.T) {
	grid := tile.NewGrid(2.0, 85.0, 0.1)
	id := grid.IDForPoint(0.01, 0.01)

	server := feedServer(t, []models.Observation{}, []models.Observation{})
	defer server.Close()

	fetcher := newTileFetcher(grid, server.URL)

	got, err := fetcher.FetchTile(context.Background(), id)
	if err != nil {
		t.Fatalf("FetchTile() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(got) = %d, want 0", len(got))
	}
}

// TestFetchDistKm verifies radius rounding and the 1km floor
func TestFetchDistKm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sideKm float64
		buffer float64
		want   int
	}{
		{"2km tiles with 1.1 buffer", 2.0, 1.1, 4},
		{"2km tiles unbuffered", 2.0, 1.0, 3},
		{"1km tiles unbuffered", 1.0, 1.0, 2},
		{"5km tiles with 2.0 buffer", 5.0, 2.0, 15},
		{"sub-km tiles floor to 1", 0.1, 1.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			grid := tile.NewGrid(tt.sideKm, 85.0, 0.1)
			if got := fetchDistKm(grid, tt.buffer); got != tt.want {
				t.Errorf("fetchDistKm(side=%v, buffer=%v) = %d, want %d", tt.sideKm, tt.buffer, got, tt.want)
			}
		})
	}
}
