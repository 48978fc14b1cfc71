// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
Package config provides centralized configuration management for Ornithographus.

This package handles loading, validation, and parsing of environment variables
for all application components. It ensures consistent configuration across the
backend services and provides sensible defaults for optional settings.

# Configuration Sources

Configuration is loaded in layers with Koanf v2 (later layers win):

  - Built-in defaults (every optional setting)
  - YAML config file (config.yaml, or CONFIG_PATH)
  - Environment variables (primary source in Docker deployments)

# Configuration Structure

The package organizes configuration into logical groups:

  - ServerConfig: HTTP server settings (host, port, timeout)
  - EBirdConfig: Upstream eBird API credential and fetch policy
  - TilesConfig: Tile grid geometry (side length, covering margin)
  - CacheConfig: Tile cache and client ledger retention
  - FetchConfig: Batch width and foreground/background split
  - SecurityConfig: Per-IP rate limiting and CORS
  - EventsConfig: Optional NATS mirror of batch-completion events
  - LoggingConfig: Log level and output format

# Environment Variables

Upstream eBird API (EBirdConfig):
  - EBIRD_API_KEY: API key from https://ebird.org/api/keygen (required)
  - EBIRD_BASE_URL: Observation endpoint root (default: https://api.ebird.org/v2/data/obs)
  - MAX_BACK_DAYS: Look-back window in days, 1-30 (default: 14)
  - EBIRD_RADIUS_BUFFER: Fetch disc scale over tile circumradius (default: 1.1)
  - EBIRD_MAX_RETRIES: Retry attempts after HTTP 429 (default: 5)

Tile Grid (TilesConfig):
  - TILE_SIZE_KM: Tile side length in km (default: 2.0)
  - TILE_EDGE_BUFFER: Viewport padding fraction per side (default: 0.1)
  - TILE_MAX_LATITUDE: Latitude clamp for tile rows (default: 85)

Caching (CacheConfig):
  - CACHE_TTL_MINUTES: Tile entry lifetime in whole minutes (default: 240)
  - CACHE_SWEEP_MINUTES: Expiry sweep cadence in whole minutes (default: 15)
  - LEDGER_TTL_MINUTES: Client ledger idle lifetime in whole minutes (default: 240)
  - CACHE_MAX_ENTRIES: Optional LRU cap, 0 = unbounded (default: 0)

Fetch Scheduling (FetchConfig):
  - MAX_PARALLEL_REQUESTS: Tiles fetched concurrently per batch (default: 1)
  - MAX_INITIAL_BATCHES: Batches awaited before a query returns (default: 1000000)
  - FETCH_SLOW_THRESHOLD: Response duration counted as slow (default: 5s)

HTTP Server (ServerConfig):
  - HOST: Bind address (default: 0.0.0.0)
  - PORT: Listen port (default: 4326)
  - HTTP_TIMEOUT: Read/write timeout (default: 30s)

Security (SecurityConfig):
  - RATE_LIMIT_REQUESTS: Requests per window per IP (default: 100)
  - RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
  - DISABLE_RATE_LIMIT: Turn off request rate limiting (default: false)
  - CORS_ORIGINS: Comma-separated allowed origins (default: *)

Events (EventsConfig):
  - NATS_ENABLED: Mirror batch events to NATS (default: false)
  - NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
  - EVENTS_TOPIC: Mirror topic (default: ornithographus.tiles)

Logging (LoggingConfig):
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)
  - LOG_CALLER: Include caller file:line (default: false)

# Usage Example

Basic configuration loading:

	import "github.com/tomtom215/ornithographus/internal/config"

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
	    log.Fatalf("Failed to load config: %v", err)
	}

	// Access configuration values
	fmt.Printf("Starting server on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Tile side: %.1f km, TTL: %v\n", cfg.Tiles.SizeKm, cfg.Cache.TTL)

Testing with custom configuration:

	// Override environment variables for testing
	t.Setenv("EBIRD_API_KEY", "test-key")
	t.Setenv("TILE_SIZE_KM", "5")
	t.Setenv("CACHE_TTL_MINUTES", "60")

	cfg, err := config.Load()
	// Use cfg for testing

# Validation

The package performs comprehensive validation:

  - Required fields: EBIRD_API_KEY (startup fails without it, see ErrMissingAPIKey)
  - Numeric ranges: PORT (1-65535), MAX_BACK_DAYS (1-30), TILE_SIZE_KM (0.1-100)
  - Duration ranges: CACHE_TTL_MINUTES (1m-7d), RATE_LIMIT_WINDOW (1s-1h)
  - URL formats: EBIRD_BASE_URL must be an HTTP(S) URL, NATS_URL a nats:// URL

# Defaults

Sensible defaults are provided for all optional settings:

  - PORT: 4326 (matches EPSG:4326, the WGS 84 lat/lng system)
  - TILE_SIZE_KM: 2.0 (street-map zoom levels, a few hundred tiles per viewport)
  - CACHE_TTL_MINUTES: 240 (observations change slowly; 4h keeps a session warm)
  - MAX_PARALLEL_REQUESTS: 1 (serial fetching suits free-tier eBird keys)
  - MAX_INITIAL_BATCHES: 1000000 (all fetching foreground until tuned down)

# Docker Deployment

For Docker deployments, use environment variables or docker-compose.yml:

	services:
	  ornithographus:
	    image: ghcr.io/tomtom215/ornithographus:latest
	    environment:
	      EBIRD_API_KEY: ${EBIRD_API_KEY}
	      TILE_SIZE_KM: "2.0"
	      CACHE_TTL_MINUTES: "240"
	    ports:
	      - "4326:4326"

# Thread Safety

The Config struct is immutable after Load() returns, making it safe for concurrent
access from multiple goroutines without synchronization.

# Performance

Configuration loading is fast (<10ms) and only happens once at startup. Values
are parsed and validated during Load(), so runtime access is direct field reads
with zero overhead.

# See Also

  - README.md: User-facing configuration documentation
*/
package config
