// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/ornithographus/internal/ebird"
	"github.com/tomtom215/ornithographus/internal/engine"
	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/models"
)

// This file contains the viewport query endpoints, the core of the API.
//
// Endpoints in this file:
//   - Birds: Observation delta for a viewport, assembled from cached tiles
//   - BirdTiles: Covering tile set and cache occupancy for grid debugging
//
// All handlers follow a consistent pattern:
//  1. Method validation (GET/POST)
//  2. Parameter parsing and validation
//  3. Engine call with request context
//  4. JSON response with metadata

// requireMethod validates HTTP method and returns true if valid, false if error was sent
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return false
	}
	return true
}

// Birds handles viewport observation queries
//
// @Summary Query bird observations for a viewport
// @Description Returns recent and notable observations covering the requested viewport, assembled from cached tiles and fetched from eBird where the cache is cold. With a clientId, tiles already delivered to that client within the ledger TTL are omitted, so repeat queries return deltas. Responses are per-client and marked no-store.
// @Tags Birds
// @Accept json
// @Produce json
// @Param minLat query number true "Viewport minimum latitude (-90 to 90)"
// @Param maxLat query number true "Viewport maximum latitude (-90 to 90)"
// @Param minLng query number true "Viewport minimum longitude (-180 to 180)"
// @Param maxLng query number true "Viewport maximum longitude (-180 to 180)"
// @Param clientId query string false "Client identifier for delta tracking. Omit to receive every covering tile."
// @Success 200 {object} models.APIResponse{data=models.QueryResult} "Observations retrieved successfully"
// @Failure 400 {object} models.APIResponse "Invalid viewport bounds"
// @Failure 502 {object} models.APIResponse "Upstream unavailable or rate limited with nothing cached"
// @Router /birds [get]
func (h *Handler) Birds(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	viewport, apiErr := parseViewport(r)
	if apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	req := BirdsRequest{ClientID: r.URL.Query().Get("clientId")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	start := time.Now()

	// Delta responses differ per client; shared caches must not hold them.
	w.Header().Set("Cache-Control", "no-store")

	result, err := h.engine.Query(r.Context(), viewport, req.ClientID)
	if err != nil {
		h.respondQueryError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   result,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondQueryError maps engine query failures onto the error envelope.
// Rate limiting is checked before the general upstream sentinel because
// an all-cold rate-limited query satisfies both.
func (h *Handler) respondQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Request abandoned; the client is no longer listening.
		logging.Debug().Str("path", r.URL.Path).Msg("Viewport query abandoned by client")
	case errors.Is(err, engine.ErrInvalidViewport):
		respondError(w, http.StatusBadRequest, "INVALID_VIEWPORT", err.Error(), nil)
	case errors.Is(err, ebird.ErrRateLimited):
		respondError(w, http.StatusBadGateway, "UPSTREAM_RATE_LIMITED", "Upstream rate limited and nothing cached for this viewport", err)
	case errors.Is(err, engine.ErrUpstreamUnavailable):
		respondError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Upstream unavailable and nothing cached for this viewport", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Viewport query failed", err)
	}
}

// BirdTiles reports the covering tile set for a viewport
//
// @Summary Inspect the tile grid for a viewport
// @Description Returns the covering tile count, current cache occupancy, the effective grid configuration, and the four corner tiles with their bounds and centers. Intended for verifying grid alignment from the outside; no upstream fetches are made.
// @Tags Birds
// @Accept json
// @Produce json
// @Param minLat query number true "Viewport minimum latitude (-90 to 90)"
// @Param maxLat query number true "Viewport maximum latitude (-90 to 90)"
// @Param minLng query number true "Viewport minimum longitude (-180 to 180)"
// @Param maxLng query number true "Viewport maximum longitude (-180 to 180)"
// @Success 200 {object} models.APIResponse{data=models.TileDebug} "Tile debug information retrieved"
// @Failure 400 {object} models.APIResponse "Invalid viewport bounds"
// @Router /birds/tiles [get]
func (h *Handler) BirdTiles(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	viewport, apiErr := parseViewport(r)
	if apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	start := time.Now()

	debug, err := h.engine.DebugTiles(viewport)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidViewport) {
			respondError(w, http.StatusBadRequest, "INVALID_VIEWPORT", err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Tile debug failed", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   debug,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
