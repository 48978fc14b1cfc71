// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingAPIKey is returned when no eBird API key is configured.
// The key is the only required configuration value; without it every
// upstream request would be rejected, so startup fails instead.
var ErrMissingAPIKey = errors.New("EBIRD_API_KEY is required (get one at https://ebird.org/api/keygen)")

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateEBird(); err != nil {
		return err
	}

	if err := c.validateTiles(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validateFetch(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	return c.validateLogging()
}

// eBird upstream constants
const (
	minBackDays     = 1  // Upstream back parameter lower bound
	maxBackDays     = 30 // Upstream back parameter upper bound
	minRadiusBuffer = 1.0
	maxRadiusBuffer = 5.0
	maxFetchRetries = 10
)

// validateEBird validates upstream eBird API configuration
func (c *Config) validateEBird() error {
	if err := c.validateEBirdAPIKey(); err != nil {
		return err
	}
	if err := c.validateEBirdBaseURL(); err != nil {
		return err
	}
	if err := c.validateEBirdBackDays(); err != nil {
		return err
	}
	if err := c.validateEBirdRadiusBuffer(); err != nil {
		return err
	}
	return c.validateEBirdRetries()
}

// validateEBirdAPIKey validates the eBird API key
func (c *Config) validateEBirdAPIKey() error {
	if c.EBird.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// validateEBirdBaseURL validates the eBird base URL
func (c *Config) validateEBirdBaseURL() error {
	if c.EBird.BaseURL == "" {
		return fmt.Errorf("EBIRD_BASE_URL is required")
	}
	if err := validateAPIBaseURL(c.EBird.BaseURL, "EBIRD_BASE_URL"); err != nil {
		return fmt.Errorf("EBIRD_BASE_URL is invalid: %w", err)
	}
	return nil
}

// validateEBirdBackDays validates the observation look-back window
func (c *Config) validateEBirdBackDays() error {
	if c.EBird.MaxBackDays < minBackDays || c.EBird.MaxBackDays > maxBackDays {
		return fmt.Errorf("MAX_BACK_DAYS must be between %d and %d", minBackDays, maxBackDays)
	}
	return nil
}

// validateEBirdRadiusBuffer validates the fetch radius buffer.
// Below 1.0 the fetch disc no longer covers the tile it is meant to fill.
func (c *Config) validateEBirdRadiusBuffer() error {
	if c.EBird.RadiusBuffer < minRadiusBuffer || c.EBird.RadiusBuffer > maxRadiusBuffer {
		return fmt.Errorf("EBIRD_RADIUS_BUFFER must be between %.1f and %.1f", minRadiusBuffer, maxRadiusBuffer)
	}
	return nil
}

// validateEBirdRetries validates the retry attempt cap
func (c *Config) validateEBirdRetries() error {
	if c.EBird.MaxRetries < 0 || c.EBird.MaxRetries > maxFetchRetries {
		return fmt.Errorf("EBIRD_MAX_RETRIES must be between 0 and %d", maxFetchRetries)
	}
	return nil
}

// Tile grid constants
const (
	minTileSizeKm  = 0.1
	maxTileSizeKm  = 100.0
	maxEdgeBuffer  = 1.0
	minMaxLatitude = 1.0
	maxMaxLatitude = 89.9 // Longitude scaling divides by cos(lat); 90 is singular
)

// validateTiles validates tile grid geometry configuration
func (c *Config) validateTiles() error {
	if err := c.validateTileSize(); err != nil {
		return err
	}
	if err := c.validateTileEdgeBuffer(); err != nil {
		return err
	}
	return c.validateTileMaxLatitude()
}

// validateTileSize validates the tile side length
func (c *Config) validateTileSize() error {
	if c.Tiles.SizeKm < minTileSizeKm || c.Tiles.SizeKm > maxTileSizeKm {
		return fmt.Errorf("TILE_SIZE_KM must be between %.1f and %.1f", minTileSizeKm, maxTileSizeKm)
	}
	return nil
}

// validateTileEdgeBuffer validates the covering margin fraction
func (c *Config) validateTileEdgeBuffer() error {
	if c.Tiles.EdgeBuffer < 0 || c.Tiles.EdgeBuffer > maxEdgeBuffer {
		return fmt.Errorf("TILE_EDGE_BUFFER must be between 0 and %.0f", maxEdgeBuffer)
	}
	return nil
}

// validateTileMaxLatitude validates the latitude clamp
func (c *Config) validateTileMaxLatitude() error {
	if c.Tiles.MaxLatitude < minMaxLatitude || c.Tiles.MaxLatitude > maxMaxLatitude {
		return fmt.Errorf("TILE_MAX_LATITUDE must be between %.0f and %.1f", minMaxLatitude, maxMaxLatitude)
	}
	return nil
}

// Cache retention constants
const (
	minCacheTTL       = time.Minute
	maxCacheTTL       = 7 * 24 * time.Hour
	minSweepInterval  = time.Minute
	maxSweepInterval  = 24 * time.Hour
	maxCacheEntriesUB = 10000000 // Sanity bound for CACHE_MAX_ENTRIES
)

// validateCache validates cache and ledger retention configuration
func (c *Config) validateCache() error {
	if c.Cache.TTL < minCacheTTL || c.Cache.TTL > maxCacheTTL {
		return fmt.Errorf("CACHE_TTL_MINUTES must be between %v and %v", minCacheTTL, maxCacheTTL)
	}
	if c.Cache.SweepInterval < minSweepInterval || c.Cache.SweepInterval > maxSweepInterval {
		return fmt.Errorf("CACHE_SWEEP_MINUTES must be between %v and %v", minSweepInterval, maxSweepInterval)
	}
	if c.Cache.LedgerTTL < minCacheTTL || c.Cache.LedgerTTL > maxCacheTTL {
		return fmt.Errorf("LEDGER_TTL_MINUTES must be between %v and %v", minCacheTTL, maxCacheTTL)
	}
	if c.Cache.MaxEntries < 0 || c.Cache.MaxEntries > maxCacheEntriesUB {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be between 0 and %d (0 disables the cap)", maxCacheEntriesUB)
	}
	return nil
}

// Fetch scheduling constants
const (
	maxParallelRequestsUB = 100
	minSlowThreshold      = 100 * time.Millisecond
	maxSlowThreshold      = time.Minute
)

// validateFetch validates fetch scheduling configuration
func (c *Config) validateFetch() error {
	if c.Fetch.MaxParallelRequests < 1 || c.Fetch.MaxParallelRequests > maxParallelRequestsUB {
		return fmt.Errorf("MAX_PARALLEL_REQUESTS must be between 1 and %d", maxParallelRequestsUB)
	}
	if c.Fetch.MaxInitialBatches < 0 {
		return fmt.Errorf("MAX_INITIAL_BATCHES must be non-negative (0 defers all fetching to the background)")
	}
	if c.Fetch.SlowThreshold < minSlowThreshold || c.Fetch.SlowThreshold > maxSlowThreshold {
		return fmt.Errorf("FETCH_SLOW_THRESHOLD must be between %v and %v", minSlowThreshold, maxSlowThreshold)
	}
	return nil
}

// Server constants
const (
	minServerTimeout = time.Second
	maxServerTimeout = 10 * time.Minute
)

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.Server.Timeout < minServerTimeout || c.Server.Timeout > maxServerTimeout {
		return fmt.Errorf("HTTP_TIMEOUT must be between %v and %v", minServerTimeout, maxServerTimeout)
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	return c.validateCORSOrigins()
}

// validateRateLimits validates rate limiting configuration bounds.
// Ensures rate limit values are within sensible ranges to prevent
// misconfiguration that could lead to DoS or ineffective protection.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if err := c.validateRateLimitRequests(); err != nil {
		return err
	}
	return c.validateRateLimitWindow()
}

// validateRateLimitRequests validates the rate limit requests value
func (c *Config) validateRateLimitRequests() error {
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	return nil
}

// validateRateLimitWindow validates the rate limit window value
func (c *Config) validateRateLimitWindow() error {
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateCORSOrigins rejects blank origin entries left by malformed
// comma-separated input
func (c *Config) validateCORSOrigins() error {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "" {
			return fmt.Errorf("CORS_ORIGINS must not contain empty entries")
		}
	}
	return nil
}

// validateEvents validates NATS event mirror configuration (only if enabled)
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}

	if c.Events.Embedded {
		if c.Events.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
		}
	} else if err := validateNATSURL(c.Events.NATSURL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}

	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC is required when NATS_ENABLED=true")
	}

	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if err := c.validateLogLevel(); err != nil {
		return err
	}
	return c.validateLogFormat()
}

// validateLogLevel validates the log level configuration
func (c *Config) validateLogLevel() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	return nil
}

// validateLogFormat validates the log format configuration
func (c *Config) validateLogFormat() error {
	if c.Logging.Format == "" {
		return nil
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
