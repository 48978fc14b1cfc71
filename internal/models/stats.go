// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package models

// CacheStatsConfig echoes the cache-relevant configuration so operators can
// read the effective settings next to the numbers they produce.
type CacheStatsConfig struct {
	TileSizeKm           float64 `json:"tileSizeKm"`
	TTLMinutes           int     `json:"ttlMinutes"`
	SweepIntervalMinutes int     `json:"sweepIntervalMinutes"`
	LedgerTTLMinutes     int     `json:"ledgerTtlMinutes"`
	MaxEntries           int     `json:"maxEntries"`
	MaxBackDays          int     `json:"maxBackDays"`
}

// CacheStats is the payload of the cache-stats endpoint.
//
// Fields:
//   - TotalEntries: tiles currently held (expired-but-unswept included)
//   - ExpiredEntries: subset of TotalEntries already past expiry
//   - ApproximateBytes: estimated memory footprint of cached observations
//     (JSON-encoded size, excluding map overhead)
//   - OldestAgeSeconds: age of the oldest entry still present
//   - ClientCount: ledger entries currently tracked
//   - Config: effective cache configuration
type CacheStats struct {
	TotalEntries     int              `json:"totalEntries"`
	ExpiredEntries   int              `json:"expiredEntries"`
	ApproximateBytes int64            `json:"approximateBytes"`
	OldestAgeSeconds float64          `json:"oldestAgeSeconds"`
	ClientCount      int              `json:"clientCount"`
	Config           CacheStatsConfig `json:"config"`
}

// SweepResult is the payload of the clear-expired-cache endpoint.
type SweepResult struct {
	RemovedTiles   int `json:"removedTiles"`
	RemovedClients int `json:"removedClients"`
}

// TileCorner describes one corner tile of a viewport for the debug endpoint.
type TileCorner struct {
	TileID    string  `json:"tileId"`
	MinLat    float64 `json:"minLat"`
	MaxLat    float64 `json:"maxLat"`
	MinLng    float64 `json:"minLng"`
	MaxLng    float64 `json:"maxLng"`
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
	Cached    bool    `json:"cached"`
}

// TileDebugConfig echoes the grid configuration in the debug payload.
type TileDebugConfig struct {
	TileSizeKm   float64 `json:"tileSizeKm"`
	EdgeBuffer   float64 `json:"edgeBuffer"`
	RadiusBuffer float64 `json:"radiusBuffer"`
	MaxLatitude  float64 `json:"maxLatitude"`
}

// TileDebug is the payload of the tile-debug endpoint: the covering tile
// set for a viewport together with cache occupancy and the four corner
// tiles, for verifying grid alignment from the outside.
type TileDebug struct {
	TileCount int                   `json:"tileCount"`
	CacheHits int                   `json:"cacheHits"`
	Config    TileDebugConfig       `json:"config"`
	Corners   map[string]TileCorner `json:"corners"`
}

// LedgerResetResult is the payload of the client ledger reset endpoint.
type LedgerResetResult struct {
	ClientID string `json:"clientId"`
	Existed  bool   `json:"existed"`
}
