// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

/*
client.go - Core eBird API Client

This file provides the core Client struct and HTTP communication layer
for the eBird API 2.0 observation endpoints.

Client Features:
  - HTTP client with configurable timeout
  - X-eBirdApiToken header authentication
  - Shared request pacer (minimum gap between any two request starts)
  - Automatic HTTP 429 rate limit handling with exponential backoff
  - Rate-limit header feedback into the pacer
  - Context support for cancellation and timeouts

Resilience Mechanisms:
  - Pacing: adaptive minimum gap, widened by slow responses and low
    advertised budget (see pacer.go)
  - Rate Limiting: Exponential backoff (1s, 2s, 4s, 8s, 16s) on HTTP 429,
    honoring Retry-After when present
  - Retries: configurable attempt cap for rate-limited requests
  - Circuit Breaker: wraps the client at the fetcher level (see
    circuit_breaker.go)

Related Files:
  - feed.go: recent/notable endpoint selection
  - errors.go: sentinel errors and StatusError
  - fetcher.go: tile-level two-feed fetch and merge
*/

//nolint:staticcheck // File documentation, not package doc
package ebird

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ornithographus/internal/config"
	"github.com/tomtom215/ornithographus/internal/metrics"
	"github.com/tomtom215/ornithographus/internal/models"
)

// maxErrorBodySize limits the maximum amount of response body read for error reporting
// This prevents unbounded memory allocation when reading large error responses
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB)
// Returns the body content or a placeholder message if reading fails
// Uses io.LimitReader to prevent unbounded memory allocation
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	// If we hit the limit, indicate truncation
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// ObservationFetcher is the upstream surface the tile fetcher depends on.
// Implemented by Client for production use and by mock implementations
// for testing, plus CircuitBreakerClient which wraps either.
type ObservationFetcher interface {
	FetchObservations(ctx context.Context, feed Feed, lat, lng float64, distKm, backDays int) ([]models.Observation, error)
}

// Client handles communication with the eBird observation API.
//
// Each call fetches one feed (recent or notable) for a disc around a
// point. Requests are paced through the shared Pacer so the minimum gap
// holds across tiles, feeds, and callers, and HTTP 429 responses are
// retried with exponential backoff.
//
// Thread Safety: Safe for concurrent use. Each request creates its own
// HTTP request; pacing state is internally synchronized.
//
// Example:
//
//	pacer := ebird.NewPacer(cfg.Fetch.SlowThreshold)
//	client := ebird.NewClient(&cfg.EBird, pacer)
//	obs, err := client.FetchObservations(ctx, ebird.FeedRecent, 36.97, -122.03, 2, 14)
type Client struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	pacer          *Pacer
	maxRetries     int           // Maximum retries for rate limiting
	retryBaseDelay time.Duration // Base delay for exponential backoff
}

// NewClient creates a new eBird API client with the provided configuration.
//
// The client is configured with:
//   - 30-second HTTP timeout
//   - cfg.MaxRetries maximum retries for rate limiting
//   - 1-second base delay for exponential backoff
//
// The pacer must be shared by every client talking to the same upstream
// key; pass the same instance to all of them.
func NewClient(cfg *config.EBirdConfig, pacer *Pacer) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		pacer:          pacer,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: 1 * time.Second, // Doubles each retry
	}
}

// FetchObservations fetches one feed for a disc of distKm kilometres
// around (lat, lng), looking back backDays days.
//
// Returns the decoded observation list (possibly empty - an empty disc is
// a normal result, not an error). Error cases:
//   - ErrRateLimited: HTTP 429 through every retry attempt
//   - ErrMalformed: 2xx response whose body is not an observation array
//   - *StatusError: any other non-2xx status
//   - transport/context errors pass through wrapped
func (c *Client) FetchObservations(ctx context.Context, feed Feed, lat, lng float64, distKm, backDays int) ([]models.Observation, error) {
	// The upstream dist-based endpoints take coordinates to two decimal
	// places; the fetcher's buffered radius absorbs the rounding.
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 2, 64))
	params.Set("lng", strconv.FormatFloat(lng, 'f', 2, 64))
	params.Set("dist", strconv.Itoa(distKm))
	params.Set("back", strconv.Itoa(backDays))

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, feed.path(), params.Encode())

	resp, err := c.doRequestWithRateLimit(ctx, reqURL, feed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s feed: %w", feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Snippet: string(body)}
	}

	var observations []models.Observation
	if err := json.NewDecoder(resp.Body).Decode(&observations); err != nil {
		return nil, fmt.Errorf("%w: %s feed: %v", ErrMalformed, feed, err)
	}

	return observations, nil
}

// doRequestWithRateLimit performs an HTTP request with pacing and automatic
// rate limit handling. Implements exponential backoff for HTTP 429 responses
// (1s, 2s, 4s, 8s, 16s), honoring Retry-After when upstream provides it.
// The context is used for cancellation during pacing and backoff waits.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string, feed Feed) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Check context before attempting request
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Honor the shared minimum gap between request starts
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		if attempt > 0 {
			metrics.UpstreamRetries.Inc()
		}

		// Create request with context
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-eBirdApiToken", c.apiKey)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		elapsed := time.Since(start)

		// Feed response timing and advertised budget back into the pacer
		remaining, limit := parseRateLimitHeaders(resp)
		c.pacer.Observe(elapsed, remaining, limit)
		metrics.RecordUpstreamRequest(feed.String(), strconv.Itoa(resp.StatusCode), elapsed)

		// Success - return response
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited (HTTP 429) - close body and retry with backoff
		metrics.UpstreamRateLimited.Inc()
		_ = resp.Body.Close() // Explicitly ignore error - will retry anyway

		// Last attempt - widen the gap for everyone and return error
		if attempt == c.maxRetries {
			c.pacer.Penalize()
			lastErr = fmt.Errorf("%w (HTTP 429 after %d retries)", ErrRateLimited, c.maxRetries)
			break
		}

		// Calculate exponential backoff delay: 1s, 2s, 4s, 8s, 16s
		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		// Check for Retry-After header (RFC 6585)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			// Try parsing as seconds (integer)
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		// Use cancellable wait instead of time.Sleep
		select {
		case <-time.After(delay):
			// Continue to next attempt
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// parseRateLimitHeaders extracts the advertised rate budget from a
// response. Returns limit 0 when the headers are absent or unparseable;
// the pacer ignores the pair in that case.
func parseRateLimitHeaders(resp *http.Response) (remaining, limit int) {
	limitHeader := resp.Header.Get("X-RateLimit-Limit")
	remainingHeader := resp.Header.Get("X-RateLimit-Remaining")
	if limitHeader == "" || remainingHeader == "" {
		return 0, 0
	}

	parsedLimit, err := strconv.Atoi(limitHeader)
	if err != nil || parsedLimit <= 0 {
		return 0, 0
	}
	parsedRemaining, err := strconv.Atoi(remainingHeader)
	if err != nil || parsedRemaining < 0 {
		return 0, 0
	}

	return parsedRemaining, parsedLimit
}
