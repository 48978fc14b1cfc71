// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/metrics"
	"github.com/tomtom215/ornithographus/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
// This enables clear observability in logs and metrics.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// subscriptionBuffer is the per-client notification backlog. Batch
// completions arrive at background-fetch cadence, so a subscriber this
// far behind is not consuming its stream; further notifications are
// dropped rather than letting one client stall the hub.
const subscriptionBuffer = 16

// Subscription is one client's notification stream. Obtain it from
// Hub.Subscribe and return it with Hub.Unsubscribe; the hub closes the
// stream when the subscription is replaced or the hub shuts down.
type Subscription struct {
	clientID string
	ch       chan models.Notification
}

// ClientID returns the client identifier this subscription serves.
func (s *Subscription) ClientID() string {
	return s.clientID
}

// Stream returns the receive side of the notification stream. The
// channel is closed when the subscription ends.
func (s *Subscription) Stream() <-chan models.Notification {
	return s.ch
}

// publishRequest routes one batch completion to its client's stream.
type publishRequest struct {
	clientID   string
	completion models.BatchCompletion
}

// Hub routes batch-completion notifications to per-client subscribers.
// Unlike a broadcast hub, delivery is keyed: a completion for client C1
// reaches only C1's stream. At most one subscription exists per client;
// a newer subscription for the same identifier replaces the older one.
//
// Delivery is at-most-once: no subscriber, or a subscriber with a full
// backlog, means the notification is dropped. Clients converge anyway
// because their next query returns the completed tiles from cache.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription

	register   chan *Subscription
	unregister chan *Subscription
	notify     chan publishRequest
}

// NewHub creates a new Hub. Call RunWithContext to start routing.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscription),
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		notify:      make(chan publishRequest, 256),
	}
}

// Subscribe registers a notification stream for the client. A second
// subscription for the same client replaces the first; the displaced
// stream is closed.
//
// The registration handshake is synchronous with the routing loop, so
// a Publish issued after Subscribe returns is routed to the new stream.
func (h *Hub) Subscribe(clientID string) *Subscription {
	sub := &Subscription{
		clientID: clientID,
		ch:       make(chan models.Notification, subscriptionBuffer),
	}
	h.register <- sub
	return sub
}

// Unsubscribe removes the subscription and closes its stream. Calling
// it for a subscription that was already replaced or closed is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.unregister <- sub
}

// Publish queues a batch completion for the client's subscriber.
// Non-blocking: if the hub's routing queue is full the notification is
// dropped. Safe to call from any goroutine.
func (h *Hub) Publish(clientID string, completion models.BatchCompletion) {
	select {
	case h.notify <- publishRequest{clientID: clientID, completion: completion}:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Str("client_id", clientID).Msg("notification queue full, dropping batch completion")
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// RunWithContext routes subscriptions and notifications until the
// context is canceled. Designed for use with suture supervision.
//
// When the context is canceled:
//  1. All subscription streams are closed in sorted client order
//  2. The method returns ctx.Err()
//
// This allows the hub to be restarted by a supervisor without leaving
// orphaned subscriptions.
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Subscription lifecycle events (register/unregister)
// - Priority 3: Notification routing
// This ensures subscription state is always consistent before routing.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// DETERMINISM: Priority-based selection prevents non-deterministic
		// ordering when multiple channels are ready simultaneously.
		// When Go's select has multiple ready channels, it picks randomly.

		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
			// Context not canceled, continue
		}

		// Priority 2: Handle subscription lifecycle events (non-blocking check)
		select {
		case sub := <-h.register:
			h.install(sub)
			continue
		case sub := <-h.unregister:
			h.remove(sub)
			continue
		default:
			// No lifecycle events pending
		}

		// Priority 3: Route notifications or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case sub := <-h.register:
			h.install(sub)

		case sub := <-h.unregister:
			h.remove(sub)

		case req := <-h.notify:
			h.deliver(req)
		}
	}
}

// install adds a subscription, displacing any existing one for the same
// client. The displaced stream is closed so its pump winds down.
func (h *Hub) install(sub *Subscription) {
	h.mu.Lock()
	if old, ok := h.subscribers[sub.clientID]; ok {
		close(old.ch)
	}
	h.subscribers[sub.clientID] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(count))
	logging.Info().Str("client_id", sub.clientID).Int("subscribers", count).Msg("notification client subscribed")
}

// remove deletes the subscription and closes its stream. The identity
// check keeps a stale unsubscribe (from a replaced subscription) from
// tearing down the replacement.
func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	current, ok := h.subscribers[sub.clientID]
	removed := ok && current == sub
	if removed {
		delete(h.subscribers, sub.clientID)
		close(sub.ch)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if removed {
		metrics.WSConnections.Set(float64(count))
		logging.Info().Str("client_id", sub.clientID).Int("subscribers", count).Msg("notification client unsubscribed")
	}
}

// deliver routes one completion to its client's stream. Absent
// subscribers are normal (the client queried without opening the
// notification endpoint); a full stream means the subscriber stopped
// consuming, and the notification is dropped rather than blocking
// the hub.
func (h *Hub) deliver(req publishRequest) {
	h.mu.RLock()
	sub, ok := h.subscribers[req.clientID]
	h.mu.RUnlock()

	if !ok {
		metrics.WSMessagesDropped.Inc()
		logging.Debug().Str("client_id", req.clientID).Msg("no subscriber for batch completion")
		return
	}

	completion := req.completion
	notification := models.Notification{
		Type: models.NotificationTypeTileUpdate,
		Data: &completion,
	}

	select {
	case sub.ch <- notification:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().
			Str("client_id", req.clientID).
			Int("batch", req.completion.BatchNumber).
			Msg("subscriber stream full, dropping batch completion")
	}
}

// logGracefulShutdown closes all subscriptions and logs structured
// shutdown information.
//
// Note: ctx.Err() is NOT logged as an error because context cancellation
// is expected behavior during graceful shutdown. Logging it as .Err() would
// confuse operators monitoring error logs.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.closeAllSubscriptions()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("subscriptions_closed", closed).
		Msg("notification hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		// Fallback for any future context error types
		return ShutdownReasonContextCanceled
	}
}

// closeAllSubscriptions closes every stream during shutdown.
// DETERMINISM: Closes subscriptions in sorted client order so shutdown
// behavior is reproducible.
func (h *Hub) closeAllSubscriptions() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientIDs := make([]string, 0, len(h.subscribers))
	for clientID := range h.subscribers {
		clientIDs = append(clientIDs, clientID)
	}
	sort.Strings(clientIDs)

	for _, clientID := range clientIDs {
		close(h.subscribers[clientID].ch)
		delete(h.subscribers, clientID)
	}

	metrics.WSConnections.Set(0)
	return len(clientIDs)
}
