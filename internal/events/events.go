// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/ornithographus/internal/models"
)

// SchemaVersion is the current tile event schema version. Bump when the
// wire shape changes incompatibly so consumers can branch on it.
const SchemaVersion = 1

// TileEvent is the wire shape mirrored to the event bus for every
// background batch completion. External consumers (cache warmers,
// dashboards, other instances) replay the same payload the WebSocket
// stream delivers, plus provenance metadata.
type TileEvent struct {
	SchemaVersion int                    `json:"schema_version"`
	EventID       string                 `json:"event_id"`
	ClientID      string                 `json:"client_id,omitempty"`
	Completion    models.BatchCompletion `json:"completion"`
	PublishedAt   time.Time              `json:"published_at"`
}

// NewTileEvent builds an event for one batch completion. The client ID
// is empty for anonymous queries.
func NewTileEvent(clientID string, completion models.BatchCompletion) *TileEvent {
	return &TileEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		ClientID:      clientID,
		Completion:    completion,
		PublishedAt:   time.Now().UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *TileEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("tile event: event_id required")
	}
	if e.Completion.TotalBatches <= 0 {
		return fmt.Errorf("tile event: total_batches must be positive")
	}
	if e.Completion.BatchNumber < 1 || e.Completion.BatchNumber > e.Completion.TotalBatches {
		return fmt.Errorf("tile event: batch_number %d outside [1, %d]",
			e.Completion.BatchNumber, e.Completion.TotalBatches)
	}
	return nil
}

// SerializeEvent marshals a validated event to JSON bytes.
func SerializeEvent(event *TileEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return data, nil
}

// DeserializeEvent unmarshals JSON bytes into an event.
func DeserializeEvent(data []byte) (*TileEvent, error) {
	var event TileEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	return &event, nil
}

// Config holds event mirror connection settings.
type Config struct {
	URL             string
	Topic           string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
}

// DefaultConfig returns production defaults for the mirror connection.
func DefaultConfig(url, topic string) Config {
	return Config{
		URL:             url,
		Topic:           topic,
		MaxReconnects:   -1, // Unlimited
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024, // 8MB
	}
}
