// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package api

import (
	"net/http"

	"github.com/tomtom215/ornithographus/internal/logging"
	ws "github.com/tomtom215/ornithographus/internal/websocket"
)

// Notifications upgrades the connection to a per-client notification stream
//
// @Summary Subscribe to background fetch notifications
// @Description Upgrades to a WebSocket carrying notifications for the given clientId: a connected frame on subscribe, then one tileUpdate frame per completed background batch. A second connection for the same clientId replaces the first. The stream is server-to-client; inbound frames beyond pongs are ignored.
// @Tags Notifications
// @Param clientId query string true "Client identifier to receive notifications for"
// @Success 101 "Switching Protocols"
// @Failure 400 {object} models.APIResponse "Missing or invalid clientId"
// @Failure 503 {object} models.APIResponse "Notification hub not running"
// @Router /notifications [get]
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	// Check if notification hub is available
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Notification service unavailable", nil)
		return
	}

	clientID := r.URL.Query().Get("clientId")
	req := NotificationsRequest{ClientID: clientID}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	ws.NewClient(h.hub, conn, clientID).Start()
}
