// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/ornithographus/internal/config"
	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/models"
	ws "github.com/tomtom215/ornithographus/internal/websocket"
)

// ViewportEngine is the engine surface the handlers depend on.
// Satisfied by *engine.Engine; tests substitute a mock.
type ViewportEngine interface {
	// Query executes the viewport pipeline and returns the client's
	// observation delta.
	Query(ctx context.Context, viewport models.Viewport, clientID string) (*models.QueryResult, error)

	// DebugTiles reports the covering tile set for a viewport.
	DebugTiles(viewport models.Viewport) (*models.TileDebug, error)

	// Stats reports cache and ledger occupancy.
	Stats() models.CacheStats

	// SweepNow removes expired tiles and idle clients immediately.
	SweepNow() models.SweepResult

	// ResetClient forgets a client's delivered-tiles ledger.
	ResetClient(clientID string) models.LedgerResetResult
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across multiple files:
//   - handlers.go: Handler struct, constructor, WebSocket origin checking (this file)
//   - handlers_helpers.go: Shared helper functions
//   - handlers_birds.go: Viewport query and tile-debug endpoints
//   - handlers_admin.go: Cache statistics and maintenance endpoints
//   - handlers_health.go: Liveness endpoint
//   - handlers_websocket.go: Notification stream upgrade
type Handler struct {
	engine    ViewportEngine
	hub       *ws.Hub
	config    *config.Config
	startTime time.Time
}

// NewHandler creates a new API handler with all required dependencies.
//
// Dependencies:
//   - eng: Viewport engine for queries, stats, and maintenance operations
//   - hub: WebSocket hub for per-client notification streams (may be nil;
//     the notifications endpoint then responds 503)
//   - cfg: Application configuration (CORS origins for WebSocket origin checks)
//
// Example:
//
//	handler := api.NewHandler(eng, hub, cfg)
//	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(&cfg.Security))
//	http.ListenAndServe(":4326", router.SetupChi())
func NewHandler(eng ViewportEngine, hub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		engine:    eng,
		hub:       hub,
		config:    cfg,
		startTime: time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with proper origin checking and timeouts.
// HandshakeTimeout protects against slow client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// If no origin header, REJECT - legitimate browser WebSockets ALWAYS include Origin
	// Only non-browser clients (curl, scripts, mobile apps) omit Origin header
	// Allowing empty Origin bypasses CORS entirely - security vulnerability
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// If config is nil, allow by default (fail open for tests/development)
	if h.config == nil {
		return true
	}

	// Check against allowed origins from config
	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	// Origin not in allowed list - sanitize origin to prevent log injection
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
