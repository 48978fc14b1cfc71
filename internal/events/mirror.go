// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ornithographus/internal/metrics"
	"github.com/tomtom215/ornithographus/internal/models"
)

// ErrClosed is returned by publish operations after Close.
var ErrClosed = errors.New("event mirror closed")

// Mirror publishes batch-completion events to a Watermill topic with
// optional circuit breaker protection. The transport behind the
// message.Publisher is the caller's choice: NATS JetStream in -tags=nats
// builds, gochannel in tests.
type Mirror struct {
	publisher message.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker[interface{}]
	mu        sync.RWMutex
	closed    bool
}

// NewMirror wraps a Watermill publisher for the given topic.
func NewMirror(publisher message.Publisher, topic string) *Mirror {
	return &Mirror{
		publisher: publisher,
		topic:     topic,
	}
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (m *Mirror) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	m.breaker = cb
}

// PublishBatchCompletion mirrors one batch completion to the event bus.
// The message UUID doubles as the broker deduplication ID.
func (m *Mirror) PublishBatchCompletion(ctx context.Context, clientID string, completion models.BatchCompletion) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	m.mu.RUnlock()

	event := NewTileEvent(clientID, completion)
	data, err := SerializeEvent(event)
	if err != nil {
		metrics.EventsPublishErrors.Inc()
		return fmt.Errorf("serialize tile event: %w", err)
	}

	msg := message.NewMessage(event.EventID, data)
	if clientID != "" {
		msg.Metadata.Set("client_id", clientID)
	}
	msg.Metadata.Set("batch_number", strconv.Itoa(completion.BatchNumber))
	msg.Metadata.Set("is_complete", strconv.FormatBool(completion.IsComplete))

	if m.breaker != nil {
		_, err = m.breaker.Execute(func() (interface{}, error) {
			return nil, m.publisher.Publish(m.topic, msg)
		})
	} else {
		err = m.publisher.Publish(m.topic, msg)
	}
	if err != nil {
		metrics.EventsPublishErrors.Inc()
		return fmt.Errorf("publish tile event: %w", err)
	}

	metrics.EventsPublished.Inc()
	return nil
}

// Close shuts down the underlying publisher. Idempotent.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	return m.publisher.Close()
}

// NewCircuitBreaker returns the breaker NewPublisher attaches by default:
// five consecutive failures open it, publishes resume after 30 seconds
// of half-open probing. A broker outage then costs one failed call per
// window instead of one per batch.
func NewCircuitBreaker() *gobreaker.CircuitBreaker[interface{}] {
	settings := gobreaker.Settings{
		Name:        "events-mirror",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return gobreaker.NewCircuitBreaker[interface{}](settings)
}
