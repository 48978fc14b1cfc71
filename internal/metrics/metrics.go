// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides comprehensive instrumentation for:
// - Tile cache efficiency and sweeps
// - Upstream eBird API latency, retries, and pacing
// - Circuit breaker state
// - Viewport query throughput and background fetch progress
// - WebSocket notification delivery
// - API endpoint latency and throughput

var (
	// Tile Cache Metrics
	TileCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tile_cache_hits_total",
			Help: "Total number of tile cache hits",
		},
	)

	TileCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tile_cache_misses_total",
			Help: "Total number of tile cache misses",
		},
	)

	TileCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tile_cache_entries",
			Help: "Current number of cached tiles",
		},
	)

	TileCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_cache_evictions_total",
			Help: "Total number of tile cache evictions",
		},
		[]string{"reason"}, // "expired", "capacity"
	)

	TileCacheSweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tile_cache_sweep_removed_total",
			Help: "Total number of expired tiles removed by periodic sweeps",
		},
	)

	// Client Ledger Metrics
	LedgerClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_clients",
			Help: "Current number of clients tracked in the delivered-tiles ledger",
		},
	)

	LedgerSweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_sweep_removed_total",
			Help: "Total number of idle clients removed by periodic ledger sweeps",
		},
	)

	// Upstream eBird API Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of upstream eBird API requests",
		},
		[]string{"feed", "status_code"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream eBird API requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, // upstream can be slow under load
		},
		[]string{"feed"},
	)

	UpstreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_retries_total",
			Help: "Total number of retries after HTTP 429 responses",
		},
	)

	UpstreamRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_rate_limited_total",
			Help: "Total number of fetches abandoned after exhausting 429 retries",
		},
	)

	TileFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_fetches_total",
			Help: "Total number of single-tile fetches against upstream",
		},
		[]string{"result"}, // "ok", "error"
	)

	TileFetchObservations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tile_fetch_observations",
			Help:    "Number of merged observations produced per tile fetch",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Request Pacer Metrics
	PacerMinGap = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pacer_min_gap_seconds",
			Help: "Current minimum gap enforced between upstream request starts",
		},
	)

	PacerConsecutiveSlow = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pacer_consecutive_slow_responses",
			Help: "Current streak of slow upstream responses observed by the pacer",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Viewport Query Metrics
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewport_queries_total",
			Help: "Total number of viewport queries",
		},
		[]string{"result"}, // "ok", "invalid", "upstream_error"
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewport_query_duration_seconds",
			Help:    "Duration of viewport queries in seconds, foreground fetches included",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	QueryTiles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewport_query_tiles",
			Help:    "Number of covering tiles per viewport query",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 50, 100, 250},
		},
	)

	BackgroundBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "background_batches_total",
			Help: "Total number of background fetch batches completed",
		},
	)

	BackgroundTilesPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "background_tiles_pending",
			Help: "Tiles currently queued for background fetching",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of notifications dropped because a subscriber was slow",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Event Mirror Metrics (NATS, optional)
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of batch-completion events mirrored to the event bus",
		},
	)

	EventsPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_publish_errors_total",
			Help: "Total number of event bus publish failures",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, // Optimized for API latency
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordUpstreamRequest records a single upstream HTTP exchange
func RecordUpstreamRequest(feed, statusCode string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(feed, statusCode).Inc()
	UpstreamRequestDuration.WithLabelValues(feed).Observe(duration.Seconds())
}

// RecordTileFetch records the outcome of a single-tile fetch
func RecordTileFetch(err error, observations int) {
	if err != nil {
		TileFetchesTotal.WithLabelValues("error").Inc()
		return
	}
	TileFetchesTotal.WithLabelValues("ok").Inc()
	TileFetchObservations.Observe(float64(observations))
}

// RecordQuery records a completed viewport query
func RecordQuery(result string, duration time.Duration, tiles int) {
	QueriesTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		QueryDuration.Observe(duration.Seconds())
		QueryTiles.Observe(float64(tiles))
	}
}

// SetPacerGap updates the pacer gap gauge
func SetPacerGap(gap time.Duration) {
	PacerMinGap.Set(gap.Seconds())
}

// SetPacerSlowStreak updates the pacer slow-streak gauge
func SetPacerSlowStreak(streak int) {
	PacerConsecutiveSlow.Set(float64(streak))
}

// RecordCacheSweep records the result of a periodic cache/ledger sweep
func RecordCacheSweep(removedTiles, removedClients int) {
	TileCacheSweepRemoved.Add(float64(removedTiles))
	LedgerSweepRemoved.Add(float64(removedClients))
}
