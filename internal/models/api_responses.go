// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package models

import (
	"time"
)

// APIResponse represents a standardized API response wrapper used by all HTTP endpoints.
// It provides consistent structure for both successful and error responses, with metadata
// for observability and caching information.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Fields:
//   - Status: Response status ("success" or "error")
//   - Data: Response payload (any JSON-serializable type)
//   - Metadata: Query execution metadata (timing, caching, timestamp)
//   - Error: Error details (populated only when Status is "error")
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"birds": [...], "metadata": {"hasBackgroundLoading": false, "pendingTileCount": 0}},
//	  "metadata": {
//	    "timestamp": "2026-08-22T12:00:00Z",
//	    "query_time_ms": 45
//	  }
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "INVALID_VIEWPORT",
//	    "message": "minLat must be less than maxLat",
//	    "details": {"minLat": 37.01, "maxLat": 36.94}
//	  },
//	  "metadata": {"timestamp": "2026-08-22T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability and performance tracking.
//
// Fields:
//   - Timestamp: Server time when response was generated (RFC3339 format)
//   - QueryTimeMS: Request processing time in milliseconds
//   - Cached: Whether the result was served entirely from warm cache entries
//     (no upstream calls issued; omitted if false)
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError represents an error response with structured error details.
// Provides consistent error format across all API endpoints for better client handling.
//
// Fields:
//   - Code: Machine-readable error code
//   - Message: Human-readable error message
//   - Details: Additional context (field names, offending values, etc.)
//
// Error codes used by this service:
//   - VALIDATION_ERROR: request parameters failed struct validation
//   - INVALID_VIEWPORT: viewport bounds missing, out of range, or inverted
//   - UPSTREAM_RATE_LIMITED: upstream returned 429 and nothing was cached
//   - UPSTREAM_UNAVAILABLE: upstream unreachable and nothing was cached
//   - NOT_FOUND: resource doesn't exist
//   - METHOD_NOT_ALLOWED: wrong HTTP method
//   - RATE_LIMIT_EXCEEDED: too many requests to this service
//   - INTERNAL_ERROR: unexpected server-side failure
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is the payload of the liveness endpoint.
type HealthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
