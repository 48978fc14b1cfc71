// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/models"
	"github.com/tomtom215/ornithographus/internal/validation"
)

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
// This includes newlines, carriage returns, tabs, and other control characters that could
// allow attackers to forge log entries or corrupt log files.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		// Replace control characters (0x00-0x1F and 0x7F) with a safe representation
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers.
// A Cache-Control header set by the handler beforehand is preserved;
// otherwise a short public max-age applies. Viewport delta responses
// rely on this to opt out of shared caching with no-store.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "public, max-age=60")
	}
	w.Header().Set("Vary", "Accept-Encoding")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	etag := generateETag(data)
	w.Header().Set("ETag", etag)

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a hash
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		// Sanitize error output to prevent log injection attacks
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Data:   nil,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes, or a models.APIError if validation fails.
// The returned error uses the VALIDATION_ERROR code consistent with existing API errors.
//
// Example:
//
//	req := BirdsRequest{ClientID: r.URL.Query().Get("clientId")}
//	if apiErr := validateRequest(&req); apiErr != nil {
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	// Convert validation error to API error format
	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// parseViewport extracts the four viewport bounds from query parameters.
// All four are required; a missing or unparseable value is reported as
// INVALID_VIEWPORT naming the offending parameter. Range and ordering
// checks live in the engine so API and background callers share them.
func parseViewport(r *http.Request) (models.Viewport, *models.APIError) {
	var vp models.Viewport
	params := []struct {
		name string
		dst  *float64
	}{
		{"minLat", &vp.MinLat},
		{"maxLat", &vp.MaxLat},
		{"minLng", &vp.MinLng},
		{"maxLng", &vp.MaxLng},
	}

	for _, p := range params {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			return models.Viewport{}, &models.APIError{
				Code:    "INVALID_VIEWPORT",
				Message: fmt.Sprintf("missing required parameter %s", p.name),
				Details: map[string]interface{}{"parameter": p.name},
			}
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Viewport{}, &models.APIError{
				Code:    "INVALID_VIEWPORT",
				Message: fmt.Sprintf("parameter %s is not a number", p.name),
				Details: map[string]interface{}{"parameter": p.name, "value": raw},
			}
		}
		*p.dst = value
	}

	return vp, nil
}
