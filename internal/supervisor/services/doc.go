// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
Package services provides suture.Service wrappers for Ornithographus components.

This package adapts application components to the suture v4 supervision
model, translating their native lifecycle patterns (ListenAndServe,
RunWithContext, on-demand method calls) into suture's context-aware
Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation to the Serve pattern
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

WebSocket Hub (WebSocketHubService):
  - Wraps websocket.Hub with context support
  - Routes tile notifications to their target clients
  - Handles client connection cleanup on shutdown

Tile Sweeper (SweeperService):
  - Drives the engine's SweepNow on a fixed interval
  - Jitters the first sweep into [interval/2, interval)
  - Evicts expired tiles and idle client ledgers

# Usage Example

Creating and registering services:

	import (
	    "net/http"
	    "time"

	    "github.com/tomtom215/ornithographus/internal/supervisor"
	    "github.com/tomtom215/ornithographus/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server, hub *websocket.Hub, eng *engine.Engine) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    // HTTP server with 30s shutdown timeout
	    httpSvc := services.NewHTTPServerService(server, 30*time.Second)
	    tree.AddAPIService(httpSvc)

	    // WebSocket hub
	    wsSvc := services.NewWebSocketHubService(hub)
	    tree.AddMessagingService(wsSvc)

	    // Periodic cache sweeper
	    sweepSvc := services.NewSweeperService(eng, cfg.Cache.SweepInterval)
	    tree.AddMaintenanceService(sweepSvc)

	    // Start supervision
	    tree.Serve(ctx)
	}

# Lifecycle Patterns

The package handles three lifecycle patterns:

ListenAndServe Pattern (HTTPServerService):

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

RunWithContext Pattern (WebSocketHubService):

	type ContextHub interface {
	    RunWithContext(ctx context.Context) error
	}

	// The component already speaks suture's dialect; the wrapper
	// delegates and contributes only a name:
	func (s *Service) Serve(ctx context.Context) error {
	    return s.hub.RunWithContext(ctx)
	}

Timer Loop Pattern (SweeperService):

	type TileSweeper interface {
	    SweepNow() models.SweepResult
	}

	// The component exposes an on-demand operation; the wrapper
	// owns the schedule:
	func (s *Service) Serve(ctx context.Context) error {
	    timer := time.NewTimer(jitteredDelay)
	    for {
	        select {
	        case <-ctx.Done(): return ctx.Err()
	        case <-timer.C:
	            s.sweeper.SweepNow()
	            timer.Reset(s.interval)
	        }
	    }
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

Example error handling:

	func (h *HTTPServerService) Serve(ctx context.Context) error {
	    errCh := make(chan error, 1)
	    go func() { errCh <- h.server.ListenAndServe() }()

	    select {
	    case err := <-errCh:
	        // Bind failure or crash - supervisor should restart
	        return fmt.Errorf("http server failed: %w", err)
	    case <-ctx.Done():
	        // Shutdown requested, normal termination
	        h.server.Shutdown(shutdownCtx)
	        return ctx.Err()
	    }
	}

# Service Identification

All services implement fmt.Stringer for logging:

	func (h *HTTPServerService) String() string {
	    return "http-server"
	}

Suture uses this for log messages:

	INFO http-server: starting
	INFO http-server: stopped
	ERROR http-server: restarting after failure

# Testing

Services can be tested with mock components:

	type MockServer struct {
	    started  bool
	    shutdown bool
	}

	func (m *MockServer) ListenAndServe() error {
	    m.started = true
	    <-time.After(time.Hour) // Block until shutdown
	    return nil
	}

	func (m *MockServer) Shutdown(ctx context.Context) error {
	    m.shutdown = true
	    return nil
	}

	func TestHTTPService(t *testing.T) {
	    mock := &MockServer{}
	    svc := services.NewHTTPServerService(mock, time.Second)

	    ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	    defer cancel()

	    svc.Serve(ctx)

	    if !mock.started { t.Error("server not started") }
	    if !mock.shutdown { t.Error("server not shutdown") }
	}

# Thread Safety

All service wrappers are safe for concurrent use:
  - Wrappers hold no mutable state of their own
  - Context cancellation is handled atomically
  - Multiple Serve calls are not supported (undefined behavior)

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/websocket: WebSocket hub implementation
  - internal/engine: Engine with the SweepNow operation
*/
package services
