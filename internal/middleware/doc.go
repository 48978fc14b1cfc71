// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, request ID
tracking, and Prometheus metrics integration. CORS and rate limiting come from
the Chi ecosystem (go-chi/cors, go-chi/httprate) and are wired in internal/api;
the components here cover the concerns the router-level middleware does not.

Key Components:

  - Compression: Gzip compression for responses
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The typical middleware stack for an endpoint is:

	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(chiMW.RateLimit())                        // Layer 1: Rate limiting
	    r.Use(chiMiddleware(middleware.PrometheusMetrics)) // Layer 2: Metrics
	    r.Use(chiMiddleware(middleware.Compression))       // Layer 3: Gzip
	    r.Use(chiMiddleware(middleware.RequestID))         // Layer 4: Request tracking
	    r.Get("/birds", handler.GetBirds)                  // Layer 5: Business logic
	})

Usage Example - Compression:

	import "github.com/tomtom215/ornithographus/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/api/v1/birds",
	    middleware.Compression(handler),
	)

	// Accept-Encoding: gzip header is required

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/api/v1/birds",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    logging.Ctx(r.Context()).Info().Msg("Processing request")
	}

Performance Characteristics:

  - Compression: 70-90% size reduction for JSON responses
  - Compression overhead: ~1-2ms for typical responses
  - Metrics overhead: <0.1ms per request
  - Request ID overhead: <0.01ms (UUID generation)

Compression Details:

The compression middleware:
  - Supports gzip encoding (Accept-Encoding: gzip)
  - Skips WebSocket upgrade requests
  - Automatically sets Content-Encoding header
  - Pools gzip writers to reduce allocations

Thread Safety:

All middleware components are thread-safe:
  - Compression uses pooled per-request gzip writers
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/api: HTTP handlers and Chi router wiring
  - internal/metrics: Prometheus metrics definitions
  - internal/logging: Context-aware log helpers fed by RequestID
*/
package middleware
