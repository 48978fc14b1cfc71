// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration management for all application components including
// the upstream eBird client, tile grid geometry, caching, fetch scheduling, server,
// security, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Upstream:
//     - EBird: API credential, base URL, fetch radius and back-window policy
//
//  2. Geometry & Caching:
//     - Tiles: Tile side length, covering margin, latitude clamp
//     - Cache: Tile TTL, ledger idle TTL, sweep cadence, optional LRU cap
//
//  3. Scheduling:
//     - Fetch: Batch width, foreground/background split, slow-response threshold
//
//  4. Serving:
//     - Server: HTTP server configuration (port, host, timeout)
//     - Security: Rate limiting and CORS
//     - Events: Optional NATS mirror of batch-completion events
//
//  5. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.EBird.APIKey, cfg.Tiles.SizeKm, etc. are now populated
//
// Validation:
// The Load() function validates all fields and returns an error if:
//   - The upstream credential is missing (EBIRD_API_KEY) - see ErrMissingAPIKey
//   - Values are malformed (invalid URL format, non-positive tile size)
//   - Durations or bounds are outside their documented ranges
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	EBird    EBirdConfig    `koanf:"ebird"`
	Tiles    TilesConfig    `koanf:"tiles"`
	Cache    CacheConfig    `koanf:"cache"`
	Fetch    FetchConfig    `koanf:"fetch"`
	Security SecurityConfig `koanf:"security"`
	Events   EventsConfig   `koanf:"events"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// The default port 4326 references EPSG:4326 (the WGS 84 lat/lng coordinate
// system), the reference frame every viewport and observation in the API uses.
type ServerConfig struct {
	Port    int           `koanf:"port"`    // PORT (default: 4326)
	Host    string        `koanf:"host"`    // HOST (default: 0.0.0.0)
	Timeout time.Duration `koanf:"timeout"` // HTTP_TIMEOUT (default: 30s)
}

// EBirdConfig holds upstream eBird API settings.
//
// The API key is the only required configuration value in the application;
// everything else has a workable default. Keys are issued per account at
// https://ebird.org/api/keygen and travel in the X-eBirdApiToken header.
type EBirdConfig struct {
	// APIKey authenticates against the eBird API 2.0. Required.
	APIKey string `koanf:"api_key"` // EBIRD_API_KEY

	// BaseURL is the observation endpoint root. The recent and notable
	// feed paths are appended to it.
	BaseURL string `koanf:"base_url"` // EBIRD_BASE_URL (default: https://api.ebird.org/v2/data/obs)

	// MaxBackDays is the observation look-back window sent upstream as the
	// back parameter. All tiles are fetched at this fixed window so cached
	// entries are interchangeable regardless of what a browser client
	// displays. Upstream accepts 1-30.
	MaxBackDays int `koanf:"max_back_days"` // MAX_BACK_DAYS (default: 14)

	// RadiusBuffer scales the tile circumradius for the dist parameter,
	// giving the upstream disc a safety margin over the tile diagonal.
	RadiusBuffer float64 `koanf:"radius_buffer"` // EBIRD_RADIUS_BUFFER (default: 1.1)

	// MaxRetries bounds retry attempts after HTTP 429 responses.
	MaxRetries int `koanf:"max_retries"` // EBIRD_MAX_RETRIES (default: 5)
}

// TilesConfig holds tile grid geometry settings.
type TilesConfig struct {
	// SizeKm is the tile side length in kilometres.
	SizeKm float64 `koanf:"size_km"` // TILE_SIZE_KM (default: 2.0)

	// EdgeBuffer is the covering margin fraction: viewports are padded on
	// each side before tile enumeration so edge panning hits warm cache.
	EdgeBuffer float64 `koanf:"edge_buffer"` // TILE_EDGE_BUFFER (default: 0.1)

	// MaxLatitude clamps tile rows; above it the equirectangular grid
	// degenerates. Points beyond the clamp fall into the boundary row.
	MaxLatitude float64 `koanf:"max_latitude"` // TILE_MAX_LATITUDE (default: 85)
}

// CacheConfig holds tile cache and client ledger retention settings.
type CacheConfig struct {
	// TTL is the tile entry lifetime. Expired entries are invisible to
	// reads immediately; the sweep reclaims their memory.
	TTL time.Duration `koanf:"ttl"` // CACHE_TTL_MINUTES (default: 240m)

	// SweepInterval is the cadence of the periodic expiry sweep.
	SweepInterval time.Duration `koanf:"sweep_interval"` // CACHE_SWEEP_MINUTES (default: 15m)

	// LedgerTTL is the idle lifetime of a client's delivered-tiles ledger.
	// A client silent for longer is forgotten and starts from scratch.
	LedgerTTL time.Duration `koanf:"ledger_ttl"` // LEDGER_TTL_MINUTES (default: 240m)

	// MaxEntries optionally caps the cache with LRU eviction on top of the
	// TTL sweep. Zero disables the cap.
	MaxEntries int `koanf:"max_entries"` // CACHE_MAX_ENTRIES (default: 0)
}

// FetchConfig holds upstream fetch scheduling settings.
type FetchConfig struct {
	// MaxParallelRequests is the batch width: how many tiles are fetched
	// concurrently. Intended to rise with available upstream budget.
	MaxParallelRequests int `koanf:"max_parallel_requests"` // MAX_PARALLEL_REQUESTS (default: 1)

	// MaxInitialBatches is the number of batches executed synchronously
	// before a query returns; the remainder continues in the background.
	// The large default collapses the split so all work is foreground.
	MaxInitialBatches int `koanf:"max_initial_batches"` // MAX_INITIAL_BATCHES (default: 1000000)

	// SlowThreshold is the upstream response duration beyond which the
	// pacer counts a response as slow.
	SlowThreshold time.Duration `koanf:"slow_threshold"` // FETCH_SLOW_THRESHOLD (default: 5s)
}

// SecurityConfig holds rate limiting and CORS settings.
//
// The API is an unauthenticated read-mostly proxy; per-IP rate limiting and
// CORS are its only request-level controls.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`     // RATE_LIMIT_REQUESTS (default: 100)
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`   // RATE_LIMIT_WINDOW (default: 1m)
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"` // DISABLE_RATE_LIMIT (default: false)
	CORSOrigins       []string      `koanf:"cors_origins"`        // CORS_ORIGINS (default: *)
}

// EventsConfig holds the optional NATS event mirror settings.
//
// When enabled (and the binary is built with -tags nats), every
// batch-completion event published to WebSocket subscribers is also
// mirrored to a NATS topic for external consumers.
type EventsConfig struct {
	Enabled bool   `koanf:"enabled"`  // NATS_ENABLED (default: false)
	NATSURL string `koanf:"nats_url"` // NATS_URL (default: nats://127.0.0.1:4222)
	Topic   string `koanf:"topic"`    // EVENTS_TOPIC (default: ornithographus.tiles)

	// Embedded runs an in-process NATS JetStream server instead of
	// connecting to NATSURL. Single-binary deployments get the mirror
	// without operating a broker.
	Embedded bool   `koanf:"embedded"`  // NATS_EMBEDDED (default: false)
	StoreDir string `koanf:"store_dir"` // NATS_STORE_DIR (default: ./data/nats)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // LOG_LEVEL (default: info)
	Format string `koanf:"format"` // LOG_FORMAT (default: json)
	Caller bool   `koanf:"caller"` // LOG_CALLER (default: false)
}

// Load reads configuration from environment variables and optional config file.
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Built-in defaults
//  2. Config file (config.yaml if exists, or path specified in CONFIG_PATH env var)
//  3. Environment variables
//
// This function uses Koanf v2 for flexible, layered configuration management.
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
