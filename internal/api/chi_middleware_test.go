// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/ornithographus/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestDefaultChiMiddlewareConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultChiMiddlewareConfig()

	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Error("Default CORS origins must be empty, requiring explicit configuration")
	}
	if cfg.RateLimitRequests != 100 {
		t.Errorf("RateLimitRequests = %d, want 100", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Errorf("RateLimitWindow = %v, want 1m", cfg.RateLimitWindow)
	}
	if cfg.RateLimitDisabled {
		t.Error("Rate limiting must be enabled by default")
	}
	if cfg.CORSAllowCredentials {
		t.Error("Credentials must be disallowed by default")
	}
}

func TestNewChiMiddlewareNilConfig(t *testing.T) {
	t.Parallel()

	m := NewChiMiddleware(nil)
	if m == nil {
		t.Fatal("NewChiMiddleware(nil) returned nil")
	}
	if m.config == nil {
		t.Error("Expected defaults to be applied for nil config")
	}
}

func TestNewChiMiddlewareFromConfig(t *testing.T) {
	t.Parallel()

	sec := &config.SecurityConfig{
		CORSOrigins:     []string{"http://localhost:4326"},
		RateLimitReqs:   42,
		RateLimitWindow: 30 * time.Second,
	}
	m := NewChiMiddlewareFromConfig(sec)

	if m.config.RateLimitRequests != 42 {
		t.Errorf("RateLimitRequests = %d, want 42", m.config.RateLimitRequests)
	}
	if len(m.config.CORSAllowedOrigins) != 1 || m.config.CORSAllowedOrigins[0] != "http://localhost:4326" {
		t.Errorf("CORSAllowedOrigins = %v", m.config.CORSAllowedOrigins)
	}
}

func TestRateLimitEnforced(t *testing.T) {
	t.Parallel()

	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})
	handler := m.RateLimit()(okHandler())

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/birds", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("First two requests = %v, want both 200", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("Third request = %d, want 429", statuses[2])
	}
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()

	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
		RateLimitDisabled: true,
	})
	handler := m.RateLimit()(okHandler())
	custom := m.RateLimitWrite()(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/birds", nil)
		req.RemoteAddr = "192.0.2.11:1234"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d = %d with rate limiting disabled, want 200", i, rec.Code)
		}

		rec = httptest.NewRecorder()
		custom.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Custom-tier request %d = %d with rate limiting disabled, want 200", i, rec.Code)
		}
	}
}

func TestAPISecurityHeaders(t *testing.T) {
	t.Parallel()

	handler := APISecurityHeaders()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for header, value := range want {
		if got := rec.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be set for plain HTTP requests")
	}
}

func TestAPISecurityHeadersHSTSBehindProxy(t *testing.T) {
	t.Parallel()

	handler := APISecurityHeaders()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Strict-Transport-Security"); got == "" {
		t.Error("Expected HSTS header when X-Forwarded-Proto is https")
	}
}

func TestRequestIDWithLogging(t *testing.T) {
	t.Parallel()

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	})
	handler := RequestIDWithLogging()(inner)

	// Generated when absent.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/birds", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen == "" {
		t.Error("Expected a generated X-Request-ID on the request")
	}

	// Preserved when supplied.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/birds", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "req-abc-123" {
		t.Errorf("X-Request-ID = %q, want the supplied req-abc-123", seen)
	}
}

func TestStatusResponseWriter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	ww := &statusResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	ww.WriteHeader(http.StatusBadGateway)
	if ww.statusCode != http.StatusBadGateway {
		t.Errorf("Captured status = %d, want 502", ww.statusCode)
	}

	// httptest.ResponseRecorder does not support hijacking; the wrapper
	// must surface that rather than panic.
	if _, _, err := ww.Hijack(); err == nil {
		t.Error("Expected Hijack error for non-hijackable writer")
	}
}
