// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package ebird

import (
	"errors"
	"fmt"
)

// ErrRateLimited marks an HTTP 429 from upstream that survived every
// retry attempt. The fetch fails for the current request, but callers
// treat it as retryable: the pacer widens the request gap and the tile
// stays uncached until a later viewport covers it again. Test with
// errors.Is.
var ErrRateLimited = errors.New("upstream rate limited")

// ErrMalformed marks a 2xx upstream response whose body did not decode
// as an observation array. The wrapped error carries the decoder
// detail; test with errors.Is.
var ErrMalformed = errors.New("malformed upstream response")

// StatusError is a non-2xx, non-429 upstream response. It carries a
// truncated body snippet for diagnostics.
type StatusError struct {
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Snippet)
}
