// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ornithographus/config.yaml",
	"/etc/ornithographus/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    4326, // EPSG:4326, the lat/lng frame the whole API speaks
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		EBird: EBirdConfig{
			APIKey:       "", // Required - no default
			BaseURL:      "https://api.ebird.org/v2/data/obs",
			MaxBackDays:  14,
			RadiusBuffer: 1.1,
			MaxRetries:   5,
		},
		Tiles: TilesConfig{
			SizeKm:      2.0,
			EdgeBuffer:  0.1,
			MaxLatitude: 85.0, // Grid degenerates near the poles
		},
		Cache: CacheConfig{
			TTL:           240 * time.Minute,
			SweepInterval: 15 * time.Minute,
			LedgerTTL:     240 * time.Minute,
			MaxEntries:    0, // Unbounded - TTL sweep is the only reclaim
		},
		Fetch: FetchConfig{
			MaxParallelRequests: 1,       // Free-tier eBird keys tolerate one request at a time
			MaxInitialBatches:   1000000, // Effectively "all foreground"
			SlowThreshold:       5 * time.Second,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"}, // Unauthenticated read-only API
		},
		Events: EventsConfig{
			Enabled:  false,
			NATSURL:  "nats://127.0.0.1:4222",
			Topic:    "ornithographus.tiles",
			Embedded: false,
			StoreDir: "./data/nats",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using the Koanf v2 library with layered sources.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// EBIRD_API_KEY -> ebird.api_key
	// TILE_SIZE_KM -> tiles.size_km
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Post-process integer-minute fields into durations
	if err := processMinuteFields(k); err != nil {
		return nil, fmt.Errorf("failed to process minute fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// minuteConfigPaths maps intermediate integer-minute keys to their duration targets.
// Several retention knobs are documented as whole-minute env vars
// (CACHE_TTL_MINUTES=240) rather than Go duration strings; the env transform
// parks them under a *_minutes key and this step converts them.
var minuteConfigPaths = map[string]string{
	"cache.ttl_minutes":            "cache.ttl",
	"cache.sweep_interval_minutes": "cache.sweep_interval",
	"cache.ledger_ttl_minutes":     "cache.ledger_ttl",
}

// processMinuteFields converts integer-minute values to their time.Duration config keys.
func processMinuteFields(k *koanf.Koanf) error {
	for src, dst := range minuteConfigPaths {
		if !k.Exists(src) {
			continue
		}

		minutes := k.Int(src)
		if minutes <= 0 {
			return fmt.Errorf("%s must be a positive number of minutes, got %q", src, k.String(src))
		}

		duration := time.Duration(minutes) * time.Minute
		if err := k.Set(dst, duration.String()); err != nil {
			return fmt.Errorf("failed to set %s: %w", dst, err)
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// It handles the mapping from flat environment variable names to the nested
// configuration structure.
//
// Examples:
//   - EBIRD_API_KEY -> ebird.api_key
//   - PORT -> server.port
//   - TILE_SIZE_KM -> tiles.size_km
//   - CACHE_TTL_MINUTES -> cache.ttl_minutes (converted to cache.ttl)
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	// Map environment variable names to config sections
	envMappings := map[string]string{
		// Server mappings
		"port":         "server.port",
		"host":         "server.host",
		"http_timeout": "server.timeout",

		// eBird upstream mappings
		"ebird_api_key":       "ebird.api_key",
		"ebird_base_url":      "ebird.base_url",
		"max_back_days":       "ebird.max_back_days",
		"ebird_radius_buffer": "ebird.radius_buffer",
		"ebird_max_retries":   "ebird.max_retries",

		// Tile grid mappings
		"tile_size_km":      "tiles.size_km",
		"tile_edge_buffer":  "tiles.edge_buffer",
		"tile_max_latitude": "tiles.max_latitude",

		// Cache mappings (whole-minute values, converted after load)
		"cache_ttl_minutes":   "cache.ttl_minutes",
		"cache_sweep_minutes": "cache.sweep_interval_minutes",
		"ledger_ttl_minutes":  "cache.ledger_ttl_minutes",
		"cache_max_entries":   "cache.max_entries",

		// Fetch scheduling mappings
		"max_parallel_requests": "fetch.max_parallel_requests",
		"max_initial_batches":   "fetch.max_initial_batches",
		"fetch_slow_threshold":  "fetch.slow_threshold",

		// Security mappings
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// NATS event mirror mappings
		"nats_enabled":   "events.enabled",
		"nats_url":       "events.nats_url",
		"events_topic":   "events.topic",
		"nats_embedded":  "events.embedded",
		"nats_store_dir": "events.store_dir",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for:
//   - Hot-reload scenarios (with proper mutex protection)
//   - Custom configuration sources
//   - Testing with mock configurations
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
//
// Example usage:
//
//	var cfgMu sync.RWMutex
//	var cfg *Config
//
//	err := WatchConfigFile(configPath, func() {
//	    cfgMu.Lock()
//	    defer cfgMu.Unlock()
//	    newCfg, err := LoadWithKoanf()
//	    if err != nil {
//	        log.Printf("Config reload failed: %v", err)
//	        return
//	    }
//	    cfg = newCfg
//	    log.Println("Configuration reloaded successfully")
//	})
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	// Start watching the file for changes
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
