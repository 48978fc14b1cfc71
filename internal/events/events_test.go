// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package events

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ornithographus/internal/models"
)

func testCompletion() models.BatchCompletion {
	return models.BatchCompletion{
		CompletedTileIDs: []string{"2052_-5412", "2052_-5411"},
		BatchNumber:      2,
		TotalBatches:     3,
		RemainingTileIDs: []string{"2053_-5412"},
		Viewport:         models.Viewport{MinLat: 36.9, MaxLat: 37.0, MinLng: -122.1, MaxLng: -122.0},
		IsComplete:       false,
	}
}

// failingPublisher counts publish attempts and always fails.
type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.calls++
	return errors.New("broker down")
}

func (p *failingPublisher) Close() error { return nil }

func TestNewTileEvent(t *testing.T) {
	event := NewTileEvent("C1", testCompletion())

	if event.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", event.SchemaVersion, SchemaVersion)
	}
	if event.EventID == "" {
		t.Error("EventID not generated")
	}
	if event.ClientID != "C1" {
		t.Errorf("ClientID = %q, want %q", event.ClientID, "C1")
	}
	if event.PublishedAt.IsZero() {
		t.Error("PublishedAt not set")
	}
	if event.PublishedAt.Location() != time.UTC {
		t.Errorf("PublishedAt location = %v, want UTC", event.PublishedAt.Location())
	}
}

func TestTileEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TileEvent)
		wantErr bool
	}{
		{"valid", func(e *TileEvent) {}, false},
		{"missing event id", func(e *TileEvent) { e.EventID = "" }, true},
		{"zero total batches", func(e *TileEvent) { e.Completion.TotalBatches = 0 }, true},
		{"batch number below range", func(e *TileEvent) { e.Completion.BatchNumber = 0 }, true},
		{"batch number above range", func(e *TileEvent) { e.Completion.BatchNumber = 4 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewTileEvent("C1", testCompletion())
			tt.mutate(event)

			err := event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	original := NewTileEvent("C7", testCompletion())

	data, err := SerializeEvent(original)
	if err != nil {
		t.Fatalf("SerializeEvent() error = %v", err)
	}

	decoded, err := DeserializeEvent(data)
	if err != nil {
		t.Fatalf("DeserializeEvent() error = %v", err)
	}

	if decoded.EventID != original.EventID {
		t.Errorf("EventID = %q, want %q", decoded.EventID, original.EventID)
	}
	if decoded.ClientID != "C7" {
		t.Errorf("ClientID = %q, want %q", decoded.ClientID, "C7")
	}
	if decoded.Completion.BatchNumber != 2 {
		t.Errorf("Completion.BatchNumber = %d, want 2", decoded.Completion.BatchNumber)
	}
	if len(decoded.Completion.CompletedTileIDs) != 2 {
		t.Errorf("len(CompletedTileIDs) = %d, want 2", len(decoded.Completion.CompletedTileIDs))
	}
	if decoded.Completion.Viewport != original.Completion.Viewport {
		t.Errorf("Viewport = %+v, want %+v", decoded.Completion.Viewport, original.Completion.Viewport)
	}
}

func TestSerializeRejectsInvalid(t *testing.T) {
	event := NewTileEvent("", testCompletion())
	event.Completion.TotalBatches = 0

	if _, err := SerializeEvent(event); err == nil {
		t.Error("SerializeEvent() = nil error for invalid event")
	}
}

func TestDeserializeMalformed(t *testing.T) {
	if _, err := DeserializeEvent([]byte("{not json")); err == nil {
		t.Error("DeserializeEvent() = nil error for malformed payload")
	}
}

func TestMirrorPublish(t *testing.T) {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 16},
		watermill.NewStdLogger(false, false),
	)
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := pubsub.Subscribe(ctx, "tiles.test")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	mirror := NewMirror(pubsub, "tiles.test")
	if err := mirror.PublishBatchCompletion(ctx, "C1", testCompletion()); err != nil {
		t.Fatalf("PublishBatchCompletion() error = %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()

		event, err := DeserializeEvent(msg.Payload)
		if err != nil {
			t.Fatalf("DeserializeEvent() error = %v", err)
		}
		if event.ClientID != "C1" {
			t.Errorf("event.ClientID = %q, want %q", event.ClientID, "C1")
		}
		if event.Completion.BatchNumber != 2 {
			t.Errorf("event.Completion.BatchNumber = %d, want 2", event.Completion.BatchNumber)
		}
		if msg.UUID != event.EventID {
			t.Errorf("msg.UUID = %q, want event ID %q", msg.UUID, event.EventID)
		}
		if got := msg.Metadata.Get("client_id"); got != "C1" {
			t.Errorf("metadata client_id = %q, want %q", got, "C1")
		}
		if got := msg.Metadata.Get("batch_number"); got != "2" {
			t.Errorf("metadata batch_number = %q, want %q", got, "2")
		}
		if got := msg.Metadata.Get("is_complete"); got != "false" {
			t.Errorf("metadata is_complete = %q, want %q", got, "false")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for mirrored event")
	}
}

func TestMirrorAnonymousOmitsClientMetadata(t *testing.T) {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 16},
		watermill.NewStdLogger(false, false),
	)
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := pubsub.Subscribe(ctx, "tiles.test")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	mirror := NewMirror(pubsub, "tiles.test")
	if err := mirror.PublishBatchCompletion(ctx, "", testCompletion()); err != nil {
		t.Fatalf("PublishBatchCompletion() error = %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()

		if got := msg.Metadata.Get("client_id"); got != "" {
			t.Errorf("metadata client_id = %q, want empty for anonymous query", got)
		}

		event, err := DeserializeEvent(msg.Payload)
		if err != nil {
			t.Fatalf("DeserializeEvent() error = %v", err)
		}
		if event.ClientID != "" {
			t.Errorf("event.ClientID = %q, want empty", event.ClientID)
		}
		if !strings.Contains(string(msg.Payload), "completion") {
			t.Error("payload missing completion field")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for mirrored event")
	}
}

func TestMirrorRejectsInvalidCompletion(t *testing.T) {
	publisher := &failingPublisher{}
	mirror := NewMirror(publisher, "tiles.test")

	bad := testCompletion()
	bad.TotalBatches = 0

	if err := mirror.PublishBatchCompletion(context.Background(), "C1", bad); err == nil {
		t.Error("PublishBatchCompletion() = nil error for invalid completion")
	}
	if publisher.calls != 0 {
		t.Errorf("publisher.calls = %d, want 0 when validation fails", publisher.calls)
	}
}

func TestMirrorClosed(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	mirror := NewMirror(pubsub, "tiles.test")
	if err := mirror.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := mirror.PublishBatchCompletion(context.Background(), "C1", testCompletion())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("PublishBatchCompletion() after Close = %v, want ErrClosed", err)
	}

	// Close is idempotent.
	if err := mirror.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMirrorBreakerOpens(t *testing.T) {
	publisher := &failingPublisher{}
	mirror := NewMirror(publisher, "tiles.test")
	mirror.SetCircuitBreaker(NewCircuitBreaker())

	ctx := context.Background()
	completion := testCompletion()

	// Five consecutive failures trip the breaker.
	for i := 0; i < 5; i++ {
		if err := mirror.PublishBatchCompletion(ctx, "C1", completion); err == nil {
			t.Fatalf("publish %d: expected error from failing broker", i+1)
		}
	}
	if publisher.calls != 5 {
		t.Fatalf("publisher.calls = %d, want 5 before breaker opens", publisher.calls)
	}

	// Open breaker short-circuits without touching the publisher.
	err := mirror.PublishBatchCompletion(ctx, "C1", completion)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("PublishBatchCompletion() with open breaker = %v, want ErrOpenState", err)
	}
	if publisher.calls != 5 {
		t.Errorf("publisher.calls = %d, want 5 after breaker opened", publisher.calls)
	}
}
