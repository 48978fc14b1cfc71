// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ornithographus/internal/config"
	"github.com/tomtom215/ornithographus/internal/ebird"
	"github.com/tomtom215/ornithographus/internal/engine"
	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// mockEngine is a configurable ViewportEngine for handler tests.
type mockEngine struct {
	queryResult *models.QueryResult
	queryErr    error
	queryCalls  int
	lastClient  string

	debugResult *models.TileDebug
	debugErr    error

	stats      models.CacheStats
	sweep      models.SweepResult
	sweepCalls int

	resetResult models.LedgerResetResult
	resetClient string
}

func (m *mockEngine) Query(_ context.Context, _ models.Viewport, clientID string) (*models.QueryResult, error) {
	m.queryCalls++
	m.lastClient = clientID
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryResult, nil
}

func (m *mockEngine) DebugTiles(_ models.Viewport) (*models.TileDebug, error) {
	if m.debugErr != nil {
		return nil, m.debugErr
	}
	return m.debugResult, nil
}

func (m *mockEngine) Stats() models.CacheStats { return m.stats }

func (m *mockEngine) SweepNow() models.SweepResult {
	m.sweepCalls++
	return m.sweep
}

func (m *mockEngine) ResetClient(clientID string) models.LedgerResetResult {
	m.resetClient = clientID
	return m.resetResult
}

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
	}
}

// viewportQuery is a valid S1-ish viewport query string.
const viewportQuery = "minLat=36.9455&maxLat=37.0135&minLng=-122.0933&maxLng=-121.9845"

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response envelope: %v", err)
	}
	return resp
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	handler := NewHandler(&mockEngine{}, nil, testConfig())

	if handler == nil {
		t.Fatal("NewHandler returned nil")
	}
	if handler.engine == nil {
		t.Error("Expected engine to be set")
	}
	if handler.startTime.IsZero() {
		t.Error("Expected start time to be set")
	}
}

func TestBirdsSuccess(t *testing.T) {
	t.Parallel()

	eng := &mockEngine{
		queryResult: &models.QueryResult{
			Birds: []models.TaggedObservation{
				{
					CachedObservation: models.CachedObservation{
						SpeciesCode: "amecro",
						ComName:     "American Crow",
						Lat:         36.9721,
						Lng:         -122.0264,
						ObsDt:       "2026-08-21 09:15",
						SubIDs:      []string{"S123"},
					},
					TileID: "2047_-6824",
				},
			},
			Metadata: models.QueryMetadata{HasBackgroundLoading: false, PendingTileCount: 0},
		},
	}
	handler := NewHandler(eng, nil, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/birds?"+viewportQuery+"&clientId=C1", nil)
	rec := httptest.NewRecorder()
	handler.Birds(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if eng.lastClient != "C1" {
		t.Errorf("Engine called with clientID %q, want %q", eng.lastClient, "C1")
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store (delta responses are per-client)", got)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("Expected ETag header on JSON response")
	}

	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Errorf("Envelope status = %q, want success", resp.Status)
	}

	// Re-decode the data payload to check the wire shape.
	payload, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("Failed to re-marshal data: %v", err)
	}
	var result models.QueryResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("Failed to decode query result: %v", err)
	}
	if len(result.Birds) != 1 {
		t.Fatalf("Expected 1 bird, got %d", len(result.Birds))
	}
	if result.Birds[0].TileID != "2047_-6824" {
		t.Errorf("Bird _tileId = %q, want 2047_-6824", result.Birds[0].TileID)
	}
}

func TestBirdsParameterErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
	}{
		{"missing minLat", "maxLat=37.0&minLng=-122.1&maxLng=-122.0"},
		{"missing maxLng", "minLat=36.9&maxLat=37.0&minLng=-122.1"},
		{"non-numeric minLng", "minLat=36.9&maxLat=37.0&minLng=abc&maxLng=-122.0"},
		{"empty query", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			eng := &mockEngine{}
			handler := NewHandler(eng, nil, testConfig())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/birds?"+tt.query, nil)
			rec := httptest.NewRecorder()
			handler.Birds(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rec.Code)
			}
			resp := decodeEnvelope(t, rec)
			if resp.Error == nil || resp.Error.Code != "INVALID_VIEWPORT" {
				t.Errorf("Expected INVALID_VIEWPORT error, got %+v", resp.Error)
			}
			if eng.queryCalls != 0 {
				t.Error("Engine must not be called for unparseable viewports")
			}
		})
	}
}

func TestBirdsEngineErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid viewport from engine",
			err:        fmt.Errorf("%w: minLat above maxLat", engine.ErrInvalidViewport),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_VIEWPORT",
		},
		{
			name:       "all-cold rate limited",
			err:        fmt.Errorf("%w: %w", engine.ErrUpstreamUnavailable, ebird.ErrRateLimited),
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_RATE_LIMITED",
		},
		{
			name:       "all-cold upstream down",
			err:        fmt.Errorf("%w: connection refused", engine.ErrUpstreamUnavailable),
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_UNAVAILABLE",
		},
		{
			name:       "unexpected failure",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := NewHandler(&mockEngine{queryErr: tt.err}, nil, testConfig())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/birds?"+viewportQuery, nil)
			rec := httptest.NewRecorder()
			handler.Birds(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			resp := decodeEnvelope(t, rec)
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("Expected error code %q, got %+v", tt.wantCode, resp.Error)
			}
		})
	}
}

func TestBirdsAbandonedRequest(t *testing.T) {
	t.Parallel()

	handler := NewHandler(&mockEngine{queryErr: context.Canceled}, nil, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/birds?"+viewportQuery, nil)
	rec := httptest.NewRecorder()
	handler.Birds(rec, req)

	// No body is written for an abandoned request; the recorder keeps
	// its zero-value 200 because WriteHeader was never called.
	if rec.Body.Len() != 0 {
		t.Errorf("Expected no response body for abandoned request, got %q", rec.Body.String())
	}
}

func TestBirdsMethodNotAllowed(t *testing.T) {
	t.Parallel()

	handler := NewHandler(&mockEngine{}, nil, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/birds?"+viewportQuery, nil)
	rec := httptest.NewRecorder()
	handler.Birds(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestBirdsClientIDTooLong(t *testing.T) {
	t.Parallel()

	handler := NewHandler(&mockEngine{}, nil, testConfig())

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/birds?"+viewportQuery+"&clientId="+string(long), nil)
	rec := httptest.NewRecorder()
	handler.Birds(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for oversized clientId, got %d", rec.Code)
	}
}

func TestBirdTiles(t *testing.T) {
	t.Parallel()

	eng := &mockEngine{
		debugResult: &models.TileDebug{
			TileCount: 30,
			CacheHits: 12,
			Config:    models.TileDebugConfig{TileSizeKm: 2.0, EdgeBuffer: 0.1, RadiusBuffer: 1.1, MaxLatitude: 85},
			Corners: map[string]models.TileCorner{
				"northWest": {TileID: "2054_-6788"},
				"northEast": {TileID: "2054_-6782"},
				"southWest": {TileID: "2050_-6788"},
				"southEast": {TileID: "2050_-6782"},
			},
		},
	}
	handler := NewHandler(eng, nil, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/birds/tiles?"+viewportQuery, nil)
	rec := httptest.NewRecorder()
	handler.BirdTiles(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	payload, _ := json.Marshal(resp.Data)
	var debug models.TileDebug
	if err := json.Unmarshal(payload, &debug); err != nil {
		t.Fatalf("Failed to decode tile debug: %v", err)
	}
	if debug.TileCount != 30 {
		t.Errorf("TileCount = %d, want 30", debug.TileCount)
	}
	if len(debug.Corners) != 4 {
		t.Errorf("Expected 4 corners, got %d", len(debug.Corners))
	}
}

func TestBirdTilesInvalidViewport(t *testing.T) {
	t.Parallel()

	eng := &mockEngine{debugErr: fmt.Errorf("%w: inverted bounds", engine.ErrInvalidViewport)}
	handler := NewHandler(eng, nil, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/birds/tiles?"+viewportQuery, nil)
	rec := httptest.NewRecorder()
	handler.BirdTiles(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestCacheStats(t *testing.T) {
	t.Parallel()

	eng := &mockEngine{
		stats: models.CacheStats{
			TotalEntries:     42,
			ExpiredEntries:   3,
			ApproximateBytes: 8192,
			OldestAgeSeconds: 120.5,
			ClientCount:      2,
			Config:           models.CacheStatsConfig{TileSizeKm: 2.0, TTLMinutes: 240},
		},
	}
	handler := NewHandler(eng, nil, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	handler.CacheStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	payload, _ := json.Marshal(resp.Data)
	var stats models.CacheStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.TotalEntries != 42 || stats.ClientCount != 2 {
		t.Errorf("Unexpected stats payload: %+v", stats)
	}
}

func TestClearExpiredCache(t *testing.T) {
	t.Parallel()

	eng := &mockEngine{sweep: models.SweepResult{RemovedTiles: 5, RemovedClients: 1}}
	handler := NewHandler(eng, nil, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/clear-expired", nil)
	rec := httptest.NewRecorder()
	handler.ClearExpiredCache(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if eng.sweepCalls != 1 {
		t.Errorf("Expected 1 sweep call, got %d", eng.sweepCalls)
	}

	resp := decodeEnvelope(t, rec)
	payload, _ := json.Marshal(resp.Data)
	var result models.SweepResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("Failed to decode sweep result: %v", err)
	}
	if result.RemovedTiles != 5 || result.RemovedClients != 1 {
		t.Errorf("Sweep result = %+v, want {5 1}", result)
	}
}

func TestClearExpiredCacheRequiresPost(t *testing.T) {
	t.Parallel()

	eng := &mockEngine{}
	handler := NewHandler(eng, nil, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/clear-expired", nil)
	rec := httptest.NewRecorder()
	handler.ClearExpiredCache(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
	if eng.sweepCalls != 0 {
		t.Error("Sweep must not run on a rejected method")
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		corsOrigins    []string
		requestOrigin  string
		expectedResult bool
	}{
		{
			name:           "no origin header - must reject",
			corsOrigins:    []string{"http://localhost:4326"},
			requestOrigin:  "",
			expectedResult: false, // browser WebSockets always send Origin
		},
		{
			name:           "wildcard origin - allow any",
			corsOrigins:    []string{"*"},
			requestOrigin:  "http://example.com",
			expectedResult: true,
		},
		{
			name:           "exact match - allow",
			corsOrigins:    []string{"http://localhost:4326"},
			requestOrigin:  "http://localhost:4326",
			expectedResult: true,
		},
		{
			name:           "mismatch - reject",
			corsOrigins:    []string{"http://localhost:4326"},
			requestOrigin:  "http://evil.example.com",
			expectedResult: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			cfg.Security.CORSOrigins = tt.corsOrigins
			handler := NewHandler(&mockEngine{}, nil, cfg)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}

			if got := handler.checkWebSocketOrigin(req); got != tt.expectedResult {
				t.Errorf("checkWebSocketOrigin() = %v, want %v", got, tt.expectedResult)
			}
		})
	}
}

func TestResetClientHealthEnvelope(t *testing.T) {
	t.Parallel()

	handler := NewHandler(&mockEngine{}, nil, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	payload, _ := json.Marshal(resp.Data)
	var health models.HealthStatus
	if err := json.Unmarshal(payload, &health); err != nil {
		t.Fatalf("Failed to decode health status: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Health status = %q, want healthy", health.Status)
	}
	if health.Version == "" {
		t.Error("Expected version in health payload")
	}
}
