// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/models"
)

// This file contains cache and ledger maintenance endpoints. They operate
// on in-process state only and never reach upstream.

// CacheStats returns tile cache and client ledger occupancy
//
// @Summary Get cache statistics
// @Description Returns tile counts, expired-but-unswept counts, the approximate memory footprint of cached observations, the age of the oldest entry, the number of tracked clients, and the effective cache configuration.
// @Tags Cache
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.CacheStats} "Statistics retrieved successfully"
// @Router /cache/stats [get]
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	start := time.Now()
	stats := h.engine.Stats()

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   stats,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// ClearExpiredCache runs an immediate expiry sweep
//
// @Summary Sweep expired cache entries
// @Description Removes expired tiles and idle client ledgers immediately instead of waiting for the periodic sweep. Returns the number of tiles and clients removed.
// @Tags Cache
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.SweepResult} "Sweep completed"
// @Router /cache/clear-expired [post]
func (h *Handler) ClearExpiredCache(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	start := time.Now()
	result := h.engine.SweepNow()

	logging.Info().
		Int("removed_tiles", result.RemovedTiles).
		Int("removed_clients", result.RemovedClients).
		Msg("Manual cache sweep requested")

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   result,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// ResetClient forgets a client's delivered-tiles ledger
//
// @Summary Reset a client's delivery ledger
// @Description Drops the delivered-tiles record for the named client. The client's next viewport query returns every covering tile again, as if it had never been seen. Resetting an unknown client succeeds with existed=false.
// @Tags Clients
// @Accept json
// @Produce json
// @Param clientID path string true "Client identifier to reset"
// @Success 200 {object} models.APIResponse{data=models.LedgerResetResult} "Ledger reset"
// @Failure 400 {object} models.APIResponse "Invalid client identifier"
// @Router /clients/{clientID}/reset [post]
func (h *Handler) ResetClient(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	clientID := chi.URLParam(r, "clientID")
	req := ClientResetRequest{ClientID: clientID}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	start := time.Now()
	result := h.engine.ResetClient(clientID)

	logging.Info().
		Str("client_id", sanitizeLogValue(clientID)).
		Bool("existed", result.Existed).
		Msg("Client ledger reset requested")

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   result,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
