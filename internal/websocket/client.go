// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package websocket

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/ornithographus/internal/logging"
	"github.com/tomtom215/ornithographus/internal/metrics"
	"github.com/tomtom215/ornithographus/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// The stream is one-way: clients send nothing but pong frames, so
	// anything larger than a control payload is a protocol violation.
	maxMessageSize = 512
)

// Client pumps one notification subscription over a WebSocket
// connection. The stream is server-to-client: an initial connected
// frame, then one tileUpdate frame per background batch completion.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	clientID string
	sub      *Subscription
}

// NewClient wraps an upgraded connection for the given client. Call
// Start to subscribe and begin pumping.
func NewClient(hub *Hub, conn *websocket.Conn, clientID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		clientID: clientID,
	}
}

// Start subscribes to the hub and launches the read and write pumps.
// The pumps own the connection from here: either side failing closes
// it and releases the subscription.
func (c *Client) Start() {
	c.sub = c.hub.Subscribe(c.clientID)
	go c.writePump()
	go c.readPump()
}

// readPump consumes the inbound side until the peer goes away. Clients
// send nothing meaningful; the pump exists to notice disconnects and to
// keep the pong handler serviced.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Err(err).Str("client_id", c.clientID).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Warn().Err(err).Str("client_id", c.clientID).Msg("unexpected websocket close")
			}
			return
		}
	}
}

// writePump sends the connected frame, then relays notifications from
// the subscription stream and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	connected := models.Notification{
		Type:    models.NotificationTypeConnected,
		Message: fmt.Sprintf("subscribed for client %s", c.clientID),
	}
	if err := c.writeNotification(connected); err != nil {
		return
	}

	for {
		select {
		case notification, ok := <-c.sub.Stream():
			if !ok {
				// The hub closed the stream: replaced by a newer
				// subscription or shutting down.
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Str("client_id", c.clientID).Msg("failed to write close message")
				}
				return
			}
			if err := c.writeNotification(notification); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeNotification(notification models.Notification) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		logging.Err(err).Str("client_id", c.clientID).Msg("failed to set write deadline")
		return err
	}
	if err := c.conn.WriteJSON(notification); err != nil {
		metrics.WSErrors.WithLabelValues("write_failed").Inc()
		logging.Warn().Err(err).Str("client_id", c.clientID).Str("type", notification.Type).Msg("failed to write notification")
		return err
	}
	metrics.WSMessagesSent.Inc()
	return nil
}
