// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package ebird

// Feed selects one of the two upstream observation endpoints. Exactly
// these two variants reach the upstream API; species-level filtering is
// the caller's business against the full response.
type Feed int

const (
	// FeedRecent is the all-observations endpoint.
	FeedRecent Feed = iota
	// FeedNotable is the rare-sightings endpoint.
	FeedNotable
)

// path returns the endpoint path relative to the API base URL. The /geo
// variants take a lat/lng/dist disc rather than a region code.
func (f Feed) path() string {
	if f == FeedNotable {
		return "/geo/recent/notable"
	}
	return "/geo/recent"
}

// String names the feed for logs and metric labels.
func (f Feed) String() string {
	if f == FeedNotable {
		return "notable"
	}
	return "recent"
}
