// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
Package websocket delivers per-client tile notifications over WebSocket connections.

This package pushes background fetch progress to the browsing session that
requested the tiles. Unlike a broadcast hub, the Hub routes each notification
to exactly one subscriber keyed by client ID: a batch completion only matters
to the viewport that triggered it.

Key Components:

  - Hub: Routes notifications to per-client subscriptions
  - Subscription: A client's buffered notification stream
  - Client: One WebSocket connection with read/write goroutines

Architecture:

The hub routes by client ID rather than fanning out:

	                ┌──────────┐
	 Publish(C2) ─→ │   Hub    │
	                └────┬─────┘
	                     │ routed, not broadcast
	     ┌───────────────┼───────────────┐
	     │               │               │
	  Sub "C1"        Sub "C2" ←──    Sub "C3"
	     │               │               │
	  Client1         Client2         Client3

Each client has two goroutines:
  - readPump: Drains inbound frames, handles pongs, detects disconnects
  - writePump: Sends the connected frame, relays notifications, sends pings

Frame Types:

Frames are JSON notifications with a type discriminator:

  - connected: Sent once after subscribing, confirms the client ID
  - tileUpdate: A background batch finished (completedTileIds, batchNumber,
    totalBatches, remainingTileIds, viewport, isComplete)

Connection Lifecycle:

 1. Client connects via HTTP upgrade with its client ID
 2. Client.Start subscribes to the hub; the handshake is synchronous, so
    notifications published after Start returns are routed to this connection
 3. writePump sends the connected frame, then relays tile updates
 4. A second connection for the same client ID displaces the first; the
    displaced connection receives a close frame
 5. On disconnect the subscription is removed; an already-displaced
    subscription is left alone (identity check, not key check)

Delivery Semantics:

Notifications are best-effort, at-most-once. A client with no active
subscription or a full stream buffer drops the notification and increments
the drop counter; the routing loop never blocks on a slow consumer. Clients
reconcile missed updates by re-querying the viewport.

Usage Example - Server:

	hub := websocket.NewHub()
	go func() { _ = hub.RunWithContext(ctx) }()

	// After the API layer upgrades the connection:
	client := websocket.NewClient(hub, conn, clientID)
	client.Start()

	// Engine side, when a background batch completes:
	hub.Publish(clientID, completion)

Usage Example - Client (JavaScript):

	const ws = new WebSocket('ws://localhost:4326/api/v1/notifications?clientId=C1');

	ws.onmessage = (event) => {
	    const msg = JSON.parse(event.data);

	    if (msg.type === 'tileUpdate') {
	        renderTiles(msg.data.completedTileIds);
	        if (msg.data.isComplete) {
	            hideProgress();
	        }
	    }
	};

Thread Safety:

The package is fully thread-safe:
  - The routing loop owns the subscription map; no shared mutable state
  - Registration, removal, and publishes flow through channels
  - Each connection has separate read/write goroutines

Configuration:

WebSocket settings:
  - writeWait: 10 seconds (time allowed to write a frame)
  - pongWait: 60 seconds (time allowed to read a pong)
  - pingPeriod: 54 seconds (ping interval, must be < pongWait)
  - maxMessageSize: 512 bytes (inbound frames are control-only)

See Also:

  - github.com/gorilla/websocket: Underlying WebSocket library
  - internal/api: WebSocket endpoint handler
  - internal/engine: Publishes batch completions
*/
package websocket
