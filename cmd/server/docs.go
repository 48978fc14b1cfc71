// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

// This file carries the swag general-info annotations. Regenerate the
// served document with: swag init -g cmd/server/docs.go
//
// @title Ornithographus API
// @version 1.0
// @description Caching geospatial proxy for eBird observation data
// @description
// @description ## Features
// @description
// @description - **Tile Cache**: Viewport queries decompose onto a fixed 2km tile grid with TTL caching
// @description - **Delta Responses**: Per-client delivered-tiles tracking so repeat queries return only new tiles
// @description - **Adaptive Pacing**: Upstream request spacing backs off when eBird slows or rate limits
// @description - **Background Loading**: Large viewports return cached tiles immediately and finish upstream fetches in the background
// @description - **Real-time Notifications**: WebSocket stream of background batch completions per client
// @description
// @description ## Rate Limiting
// @description
// @description Default rate limit: 100 requests per minute per IP address.
// @description Rate limit headers are included in responses: `X-RateLimit-Limit`, `X-RateLimit-Remaining`, `X-RateLimit-Reset`.
// @description
// @description ## Error Responses
// @description
// @description All error responses follow this format:
// @description ```json
// @description {
// @description   "status": "error",
// @description   "data": null,
// @description   "error": {
// @description     "code": "ERROR_CODE",
// @description     "message": "Human-readable error message",
// @description     "details": {}
// @description   },
// @description   "metadata": {
// @description     "timestamp": "2026-08-21T12:34:56Z"
// @description   }
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/ornithographus
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:4326
// @BasePath /api/v1
//
// @tag.name Birds
// @tag.description Viewport observation queries and tile grid inspection
// @tag.name Notifications
// @tag.description WebSocket background fetch notifications
// @tag.name Cache
// @tag.description Tile cache statistics and maintenance
// @tag.name Clients
// @tag.description Per-client delivery ledger administration
package main
