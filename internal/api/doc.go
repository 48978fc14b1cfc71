// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
Package api provides the HTTP REST API layer for Ornithographus.

This package is the transport veneer over the viewport engine: it parses
and validates requests, maps engine errors onto HTTP status codes, and
formats every JSON response in the standard envelope. All caching,
fetching, and merging semantics live in the engine; handlers here stay
thin.

Key Components:

  - Router: Chi route configuration and middleware stack integration
  - Handler: Request handlers for the query, notification, and admin endpoints
  - ChiMiddleware: CORS and per-IP rate limiting factories (go-chi/cors, httprate)
  - Response formatting: Standardized JSON envelope with metadata and ETags
  - Error handling: Consistent error codes with appropriate HTTP status codes

Endpoints:

1. Viewport Queries (/api/v1/):
  - GET /birds: observation delta for a viewport, per-client via clientId
  - GET /birds/tiles: covering tile set and cache occupancy (grid debugging)

2. Notifications (/api/v1/notifications):
  - WebSocket stream of background batch completions, keyed by clientId

3. Administration (/api/v1/):
  - GET /cache/stats: tile cache and client ledger occupancy
  - POST /cache/clear-expired: immediate expiry sweep
  - POST /clients/{clientID}/reset: forget a client's delivered tiles

4. Observability:
  - GET /health: liveness, version, uptime
  - GET /metrics: Prometheus registry
  - GET /swagger/*: interactive API documentation

Usage Example:

	import (
	    "github.com/tomtom215/ornithographus/internal/api"
	    "github.com/tomtom215/ornithographus/internal/engine"
	)

	handler := api.NewHandler(eng, hub, cfg)
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(&cfg.Security))

	http.ListenAndServe(":4326", router.SetupChi())

Error Mapping:

  - engine.ErrInvalidViewport -> 400 INVALID_VIEWPORT
  - ebird.ErrRateLimited (all-cold query) -> 502 UPSTREAM_RATE_LIMITED
  - engine.ErrUpstreamUnavailable -> 502 UPSTREAM_UNAVAILABLE
  - context cancellation -> no response (client is gone)

Partial upstream failures never surface here: the engine caches failed
tiles empty and returns what it has, so a 200 with fewer observations
than expected is the intended degraded behavior.

Thread Safety:

All handlers are stateless over a shared engine and hub; both are
internally synchronized and designed for concurrent request handling.

See Also:

  - internal/engine: viewport orchestration and admin operations
  - internal/websocket: per-client notification hub
  - internal/models: request/response data structures
  - internal/middleware: HTTP middleware components
*/
package api
