// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package models

// BatchCompletion announces that one background fetch batch finished for a
// viewport query. Delivered over the per-client notification stream and,
// when event mirroring is enabled, published to the NATS tile subject.
//
// CompletedTileIDs lists the tiles whose fetch returned without error in
// this batch (an empty upstream response counts; a failed fetch does not).
// BatchNumber is 1-based within the background tail; TotalBatches counts
// only background batches. RemainingTileIDs lists tiles still queued after
// this batch. IsComplete is true on the final batch even when every tile
// in it failed.
type BatchCompletion struct {
	CompletedTileIDs []string `json:"completedTileIds"`
	BatchNumber      int      `json:"batchNumber"`
	TotalBatches     int      `json:"totalBatches"`
	RemainingTileIDs []string `json:"remainingTileIds"`
	Viewport         Viewport `json:"viewport"`
	IsComplete       bool     `json:"isComplete"`
}

// Notification message types sent on the client event stream.
const (
	// NotificationTypeConnected is the first frame after a successful
	// subscription.
	NotificationTypeConnected = "connected"

	// NotificationTypeTileUpdate carries a BatchCompletion payload.
	NotificationTypeTileUpdate = "tileUpdate"
)

// Notification is a single frame on the client event stream.
//
// Example connect frame:
//
//	{"type": "connected", "message": "subscribed for client C1"}
//
// Example update frame:
//
//	{"type": "tileUpdate", "data": {"completedTileIds": ["2047_-6824"], ...}}
type Notification struct {
	Type    string           `json:"type"`
	Message string           `json:"message,omitempty"`
	Data    *BatchCompletion `json:"data,omitempty"`
}
