// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/ornithographus/internal/models"
)

// version identifies the running release in health responses and the
// app_info metric. Overridable at build time via
// -ldflags "-X github.com/tomtom215/ornithographus/internal/api.version=...".
var version = "1.0.0"

// Health handles liveness check requests
//
// @Summary Get service health status
// @Description Returns liveness status, version, and uptime. The service holds no external persistent state, so a responding process is a healthy one; upstream reachability is visible through the metrics endpoint instead.
// @Tags Core
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.HealthStatus} "Health status retrieved successfully"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	health := models.HealthStatus{
		Status:        "healthy",
		Version:       version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   health,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
