// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring performance, errors, and system health.

# Overview

The package provides metrics for:
  - Tile cache hit/miss rates, entry counts, evictions, and sweeps
  - Delivered-tiles ledger client counts
  - Upstream eBird API latency, retries, and 429 abandonment
  - Request pacer state (minimum gap, slow-response streak)
  - Circuit breaker state transitions
  - Viewport query latency and tile counts
  - Background fetch batch progress
  - WebSocket notification delivery
  - HTTP request latency and throughput

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:4326/metrics

# Available Metrics

Tile Cache Metrics:
  - tile_cache_hits_total / tile_cache_misses_total: Cache efficiency (counters)
  - tile_cache_entries: Current cached tile count (gauge)
  - tile_cache_evictions_total: Evictions (counter)
    Labels: reason (expired, capacity)
  - tile_cache_sweep_removed_total: Expired tiles removed by sweeps (counter)

Upstream Metrics:
  - upstream_requests_total: Upstream requests (counter)
    Labels: feed (recent, notable), status_code
  - upstream_request_duration_seconds: Upstream latency (histogram)
    Labels: feed
  - upstream_retries_total: Retries after HTTP 429 (counter)
  - upstream_rate_limited_total: Fetches abandoned after exhausting retries (counter)
  - pacer_min_gap_seconds: Current pacing gap between request starts (gauge)
  - pacer_consecutive_slow_responses: Slow-response streak (gauge)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests by outcome (counter)
    Labels: name, result (success, failure, rejected)
  - circuit_breaker_state_transitions_total: Transitions (counter)
    Labels: name, from_state, to_state

Query Metrics:
  - viewport_queries_total: Queries by outcome (counter)
    Labels: result (ok, invalid, upstream_error)
  - viewport_query_duration_seconds: Query latency including foreground fetches (histogram)
  - viewport_query_tiles: Covering set size per query (histogram)
  - background_batches_total: Completed background batches (counter)
  - background_tiles_pending: Tiles queued for background fetching (gauge)

WebSocket Metrics:
  - websocket_connections: Active connections (gauge)
  - websocket_messages_sent_total: Notifications delivered (counter)
  - websocket_messages_dropped_total: Notifications dropped on slow subscribers (counter)

# Usage Example

Recording upstream metrics around a fetch:

	start := time.Now()
	resp, err := client.Do(req)
	metrics.RecordUpstreamRequest(feed.String(), strconv.Itoa(resp.StatusCode), time.Since(start))

Recording HTTP metrics happens in internal/middleware.PrometheusMetrics; handlers
do not record request metrics themselves.

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'ornithographus'
	    static_configs:
	      - targets: ['localhost:4326']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

Example PromQL queries:

	# Tile cache hit rate
	rate(tile_cache_hits_total[5m]) / (rate(tile_cache_hits_total[5m]) + rate(tile_cache_misses_total[5m]))

	# Upstream p95 latency
	histogram_quantile(0.95, rate(upstream_request_duration_seconds_bucket[5m]))

	# Query rate by outcome
	rate(viewport_queries_total[5m])

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.

# Cardinality Management

To prevent high cardinality issues:

  - Endpoint labels are normalized (no query parameters)
  - Feed labels come from a two-value sum type
  - Tile ids never appear as label values

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/ebird: Upstream client, pacer, and breaker metrics recording
  - internal/engine: Query and background batch metrics recording
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
*/
package metrics
