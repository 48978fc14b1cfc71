// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package models

// Observation is a single sighting record as returned by the upstream
// observation API. Field names mirror the upstream JSON exactly.
//
// Fields:
//   - SpeciesCode: opaque upstream species identifier (e.g. "amecro")
//   - ComName: common name ("American Crow")
//   - SciName: scientific name ("Corvus brachyrhynchos")
//   - Lat, Lng: observation coordinates in degrees
//   - ObsDt: observation date-time as reported upstream ("2026-08-21 09:15")
//   - SubID: checklist submission identifier (singular; aggregated during merge)
//
// Example upstream record:
//
//	{
//	  "speciesCode": "amecro",
//	  "comName": "American Crow",
//	  "sciName": "Corvus brachyrhynchos",
//	  "lat": 36.9721,
//	  "lng": -122.0264,
//	  "obsDt": "2026-08-21 09:15",
//	  "subId": "S123456789"
//	}
type Observation struct {
	SpeciesCode string  `json:"speciesCode"`
	ComName     string  `json:"comName"`
	SciName     string  `json:"sciName"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	ObsDt       string  `json:"obsDt"`
	SubID       string  `json:"subId,omitempty"`
}

// CachedObservation is the merged, cache-resident form of an observation.
// The merge pipeline collapses same-species+same-location reports into one
// record: the retained record is the most recent (upstream orders newest
// first), SubIDs carries the union of contributing submission identifiers,
// and IsNotable is the logical OR across the recent and notable feeds.
//
// Within a single tile cache entry no two records share
// (SpeciesCode, Lat, Lng); every record satisfies the tile's half-open
// bounds. Records are immutable once stored.
type CachedObservation struct {
	SpeciesCode string   `json:"speciesCode"`
	ComName     string   `json:"comName"`
	SciName     string   `json:"sciName"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	ObsDt       string   `json:"obsDt"`
	SubIDs      []string `json:"subIds"`
	IsNotable   bool     `json:"isNotable"`
}

// Key returns the merge identity of the observation. Two records with the
// same key describe the same species at the same point and are collapsed by
// the merge pipeline.
func (o *CachedObservation) Key() ObservationKey {
	return ObservationKey{SpeciesCode: o.SpeciesCode, Lat: o.Lat, Lng: o.Lng}
}

// ObservationKey identifies an observation for deduplication purposes.
// Coordinates are compared exactly as received; the upstream reports fixed
// hotspot coordinates, so equal locations are byte-equal on the wire.
type ObservationKey struct {
	SpeciesCode string
	Lat         float64
	Lng         float64
}

// TaggedObservation is the client wire form: a cached observation plus the
// identifier of the tile it was served from. The tile identifier lets
// clients drop a tile's observations wholesale when their ledger resets.
type TaggedObservation struct {
	CachedObservation
	TileID string `json:"_tileId"`
}

// Viewport is an axis-aligned lat/lng rectangle describing the caller's
// area of interest. Bounds are inclusive at the minimum edge; the tile
// grid's half-open convention governs per-observation membership.
//
// Validation: coordinates must lie in [-90,90] / [-180,180] and the
// maximums must exceed the minimums. Viewports straddling the antimeridian
// are not supported.
type Viewport struct {
	MinLat float64 `json:"minLat" koanf:"min_lat" validate:"min=-90,max=90"`
	MaxLat float64 `json:"maxLat" koanf:"max_lat" validate:"min=-90,max=90,gtfield=MinLat"`
	MinLng float64 `json:"minLng" koanf:"min_lng" validate:"min=-180,max=180"`
	MaxLng float64 `json:"maxLng" koanf:"max_lng" validate:"min=-180,max=180,gtfield=MinLng"`
}

// CenterLat returns the latitude of the viewport center.
func (v Viewport) CenterLat() float64 { return (v.MinLat + v.MaxLat) / 2 }

// CenterLng returns the longitude of the viewport center.
func (v Viewport) CenterLng() float64 { return (v.MinLng + v.MaxLng) / 2 }

// QueryMetadata reports the background-loading state of a viewport query.
//
// Fields:
//   - HasBackgroundLoading: true when missing tiles remain queued for
//     background fetching after the foreground batches completed
//   - PendingTileCount: number of covering tiles not yet present in the
//     cache when the response was assembled
type QueryMetadata struct {
	HasBackgroundLoading bool `json:"hasBackgroundLoading"`
	PendingTileCount     int  `json:"pendingTileCount"`
}

// QueryResult is the payload of a successful viewport query.
//
// Birds carries only the delta for the requesting client: tiles already
// delivered to the same clientId within the ledger TTL are omitted. Without
// a clientId every covering tile is included.
//
// Example:
//
//	{
//	  "birds": [
//	    {
//	      "speciesCode": "rufhum",
//	      "comName": "Rufous Hummingbird",
//	      "sciName": "Selasphorus rufus",
//	      "lat": 36.9705,
//	      "lng": -122.0310,
//	      "obsDt": "2026-08-22 07:40",
//	      "subIds": ["S123", "S456"],
//	      "isNotable": true,
//	      "_tileId": "2047_-6824"
//	    }
//	  ],
//	  "metadata": {"hasBackgroundLoading": false, "pendingTileCount": 0}
//	}
type QueryResult struct {
	Birds    []TaggedObservation `json:"birds"`
	Metadata QueryMetadata       `json:"metadata"`
}
