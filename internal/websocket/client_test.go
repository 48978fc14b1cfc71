// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/ornithographus/internal/models"
)

// Test helpers to reduce cyclomatic complexity

// setupWebSocketServer creates a test WebSocket server with a custom handler
func setupWebSocketServer(t *testing.T, handler func(t *testing.T, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()
		handler(t, conn)
	}))
}

// dialWebSocket establishes a WebSocket connection to the test server
func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	return conn
}

// waitForChannel waits for a channel signal with timeout
func waitForChannel(t *testing.T, ch <-chan bool, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
		// Success
	case <-time.After(timeout):
		t.Errorf("%s: timeout after %v", msg, timeout)
	}
}

// verifyConstant checks if a duration constant matches expected value
func verifyConstant(t *testing.T, got, want time.Duration, name string) {
	t.Helper()
	if got != want {
		t.Errorf("Expected %s %v, got %v", name, want, got)
	}
}

func TestNewClient(t *testing.T) {
	hub := NewHub()

	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	conn := dialWebSocket(t, server)
	defer conn.Close()

	client := NewClient(hub, conn, "C1")

	if client == nil {
		t.Fatal("NewClient returned nil")
	}
	if client.hub != hub {
		t.Error("Client hub not set correctly")
	}
	if client.conn != conn {
		t.Error("Client connection not set correctly")
	}
	if client.clientID != "C1" {
		t.Errorf("Client clientID = %q, want %q", client.clientID, "C1")
	}
	if client.sub != nil {
		t.Error("Client subscription should be nil before Start")
	}
}

func TestClientConstants(t *testing.T) {
	verifyConstant(t, writeWait, 10*time.Second, "writeWait")
	verifyConstant(t, pongWait, 60*time.Second, "pongWait")
	verifyConstant(t, pingPeriod, (pongWait*9)/10, "pingPeriod")

	if maxMessageSize != 512 {
		t.Errorf("Expected maxMessageSize 512, got %d", maxMessageSize)
	}
}

func TestClientConnectedFrame(t *testing.T) {
	hub := setupHub(t)

	frameChecked := make(chan bool, 1)
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		var frame models.Notification
		if err := conn.ReadJSON(&frame); err != nil {
			t.Errorf("Failed to read connected frame: %v", err)
			return
		}
		if frame.Type != models.NotificationTypeConnected {
			t.Errorf("frame.Type = %q, want %q", frame.Type, models.NotificationTypeConnected)
		}
		if frame.Message != "subscribed for client C1" {
			t.Errorf("frame.Message = %q, want %q", frame.Message, "subscribed for client C1")
		}
		if frame.Data != nil {
			t.Errorf("connected frame carries data: %+v", frame.Data)
		}
		frameChecked <- true
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	conn := dialWebSocket(t, server)
	defer conn.Close()

	NewClient(hub, conn, "C1").Start()

	waitForChannel(t, frameChecked, time.Second, "Connected frame not received")
}

func TestClientRelaysTileUpdates(t *testing.T) {
	hub := setupHub(t)

	frames := make(chan models.Notification, 4)
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		for {
			var frame models.Notification
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	})
	defer server.Close()

	conn := dialWebSocket(t, server)
	defer conn.Close()

	NewClient(hub, conn, "C4").Start()

	select {
	case frame := <-frames:
		if frame.Type != models.NotificationTypeConnected {
			t.Fatalf("first frame type = %q, want %q", frame.Type, models.NotificationTypeConnected)
		}
	case <-time.After(time.Second):
		t.Fatal("connected frame not received")
	}

	hub.Publish("C4", testCompletion(2))

	select {
	case frame := <-frames:
		if frame.Type != models.NotificationTypeTileUpdate {
			t.Errorf("frame.Type = %q, want %q", frame.Type, models.NotificationTypeTileUpdate)
		}
		if frame.Data == nil {
			t.Fatal("tileUpdate frame has no batch completion data")
		}
		if frame.Data.BatchNumber != 2 {
			t.Errorf("Data.BatchNumber = %d, want 2", frame.Data.BatchNumber)
		}
		if len(frame.Data.CompletedTileIDs) != 2 {
			t.Errorf("len(Data.CompletedTileIDs) = %d, want 2", len(frame.Data.CompletedTileIDs))
		}
	case <-time.After(time.Second):
		t.Fatal("tileUpdate frame not received")
	}

	// A completion for another client must not leak onto this stream.
	hub.Publish("C-other", testCompletion(3))

	select {
	case frame := <-frames:
		t.Errorf("received frame %+v addressed to another client", frame)
	case <-time.After(150 * time.Millisecond):
		// Success
	}
}

func TestClientPeerDisconnectUnsubscribes(t *testing.T) {
	hub := setupHub(t)

	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		var frame models.Notification
		if err := conn.ReadJSON(&frame); err != nil {
			t.Errorf("Failed to read connected frame: %v", err)
			return
		}
		_ = conn.Close()
	})
	defer server.Close()

	conn := dialWebSocket(t, server)

	NewClient(hub, conn, "C5").Start()

	// Poll for the read pump to notice the close and release the
	// subscription (more reliable in CI under load).
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := hub.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() = %d after peer disconnect, want 0", got)
	}
}

func TestClientReplacedConnectionGetsClose(t *testing.T) {
	hub := setupHub(t)

	closeObserved := make(chan bool, 1)
	frames := make(chan models.Notification, 4)
	var conns int32
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		n := atomic.AddInt32(&conns, 1)
		for {
			var frame models.Notification
			if err := conn.ReadJSON(&frame); err != nil {
				if n == 1 {
					if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
						t.Errorf("first connection ended with %v, want close frame", err)
					}
					closeObserved <- true
				}
				return
			}
			if n == 2 {
				frames <- frame
			}
		}
	})
	defer server.Close()

	conn1 := dialWebSocket(t, server)
	defer conn1.Close()
	NewClient(hub, conn1, "C9").Start()

	conn2 := dialWebSocket(t, server)
	defer conn2.Close()
	NewClient(hub, conn2, "C9").Start()

	// The displaced connection is told to go away.
	waitForChannel(t, closeObserved, time.Second, "Displaced connection not closed")

	select {
	case frame := <-frames:
		if frame.Type != models.NotificationTypeConnected {
			t.Fatalf("first frame type = %q, want %q", frame.Type, models.NotificationTypeConnected)
		}
	case <-time.After(time.Second):
		t.Fatal("connected frame not received on replacement connection")
	}

	// The stale unsubscribe from the displaced pumps must not tear
	// down the replacement subscription.
	hub.Publish("C9", testCompletion(1))

	select {
	case frame := <-frames:
		if frame.Type != models.NotificationTypeTileUpdate {
			t.Errorf("frame.Type = %q, want %q", frame.Type, models.NotificationTypeTileUpdate)
		}
	case <-time.After(time.Second):
		t.Error("tileUpdate frame not received on replacement connection")
	}
}

func TestClientHubShutdownClosesConnection(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- hub.RunWithContext(ctx)
	}()
	t.Cleanup(cancel)
	time.Sleep(10 * time.Millisecond)

	ready := make(chan bool, 1)
	closed := make(chan bool, 1)
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		for {
			var frame models.Notification
			if err := conn.ReadJSON(&frame); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
					t.Errorf("connection ended with %v, want close frame", err)
				}
				closed <- true
				return
			}
			if frame.Type == models.NotificationTypeConnected {
				ready <- true
			}
		}
	})
	defer server.Close()

	conn := dialWebSocket(t, server)
	defer conn.Close()

	NewClient(hub, conn, "C2").Start()
	waitForChannel(t, ready, time.Second, "Connected frame not received")

	cancel()

	waitForChannel(t, closed, time.Second, "Connection not closed on hub shutdown")

	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Error("RunWithContext did not return after cancellation")
	}
}

func TestClientOversizedInboundFrameDisconnects(t *testing.T) {
	hub := setupHub(t)

	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		var frame models.Notification
		if err := conn.ReadJSON(&frame); err != nil {
			t.Errorf("Failed to read connected frame: %v", err)
			return
		}

		// The stream is one-way; anything beyond control-payload size
		// from the peer trips the read limit.
		oversized := make([]byte, maxMessageSize+1)
		if err := conn.WriteMessage(websocket.TextMessage, oversized); err != nil {
			t.Errorf("Failed to write oversized frame: %v", err)
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	conn := dialWebSocket(t, server)

	NewClient(hub, conn, "C6").Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := hub.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() = %d after oversized frame, want 0", got)
	}
}

func BenchmarkHubPublish(b *testing.B) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = hub.RunWithContext(ctx)
	}()
	time.Sleep(10 * time.Millisecond)

	sub := hub.Subscribe("bench")
	go func() {
		for range sub.Stream() {
		}
	}()

	completion := testCompletion(1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Publish("bench", completion)
	}
}
