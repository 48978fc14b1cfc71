// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

// Package api provides HTTP request validation structs with go-playground/validator tags.
// These structs are used to validate incoming API request parameters before processing.
//
// The validation tags follow the go-playground/validator v10 syntax:
//   - required: field must be present and non-zero
//   - min,max: numeric or string length bounds
//   - omitempty: skip validation if field is empty/zero
//
// Viewport bounds are not validated here: their range and ordering rules
// live in the engine so API and background callers share one check.
//
// Example usage:
//
//	req := BirdsRequest{ClientID: r.URL.Query().Get("clientId")}
//	if err := validateRequest(&req); err != nil {
//	    respondError(w, http.StatusBadRequest, err.Code, err.Message, nil)
//	    return
//	}
package api

// BirdsRequest represents the validated query parameters for the /birds endpoint
// beyond the viewport bounds.
//
// Fields:
//   - ClientID: Optional client identifier for delta tracking. When present
//     it must be a reasonable length; it keys the delivered-tiles ledger
//     and the notification stream.
type BirdsRequest struct {
	ClientID string `validate:"omitempty,min=1,max=128"`
}

// NotificationsRequest represents the validated query parameters for the
// /notifications WebSocket endpoint.
//
// Fields:
//   - ClientID: Required client identifier. Notifications are routed per
//     client, so an anonymous subscription would never receive anything.
type NotificationsRequest struct {
	ClientID string `validate:"required,min=1,max=128"`
}

// ClientResetRequest represents the validated path parameter for the
// /clients/{clientID}/reset endpoint.
//
// Fields:
//   - ClientID: Required client identifier whose ledger is dropped.
type ClientResetRequest struct {
	ClientID string `validate:"required,min=1,max=128"`
}
