// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

// Package tile implements the deterministic mapping between geographic
// coordinates and fixed-size cache tiles, plus the merge pipeline that
// fuses the recent and notable upstream feeds into a tile's cache entry.
//
// Tiles live on a simple equirectangular grid aligned to (0°,0°). A tile's
// latitude edge is sideKm/111; its longitude edge applies the
// cosine-of-latitude correction evaluated at the row's midline latitude,
// so IDForPoint and BoundsOf are exact mutual inverses up to the grid's
// half-open convention. Tile membership is half-open on both axes:
// [minLat, maxLat) x [minLng, maxLng). Every point belongs to exactly one
// tile.
//
// Latitude is clamped to the configured maximum (default ±85°) before
// indexing. Viewports straddling the antimeridian are not supported.
package tile

import (
	"fmt"
	"math"

	"github.com/tomtom215/ornithographus/internal/models"
)

// kmPerDegreeLat is the approximate surface distance of one degree of
// latitude. The constant 111 km also scales longitude degrees after the
// cosine correction.
const kmPerDegreeLat = 111.0

// ID identifies a tile by its integer grid coordinates. Y indexes latitude
// rows (floor(lat/latEdge)); X indexes longitude columns within the row.
type ID struct {
	Y int
	X int
}

// String renders the identifier in the "Y_X" wire form used by the
// _tileId response field and the notification payloads.
func (id ID) String() string {
	return fmt.Sprintf("%d_%d", id.Y, id.X)
}

// Less orders identifiers lexicographically by their wire form. Used to
// break distance ties deterministically when ranking fetch work.
func (id ID) Less(other ID) bool {
	return id.String() < other.String()
}

// Bounds is a tile's exact bounding box and center. Membership is
// half-open: a point belongs to the tile iff
// minLat <= lat < maxLat and minLng <= lng < maxLng.
type Bounds struct {
	MinLat    float64
	MaxLat    float64
	MinLng    float64
	MaxLng    float64
	CenterLat float64
	CenterLng float64
}

// Contains reports whether the point falls inside the half-open bounds.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat < b.MaxLat && lng >= b.MinLng && lng < b.MaxLng
}

// Grid converts between coordinates and tile identifiers for one configured
// tile size. A Grid is immutable and safe for concurrent use.
type Grid struct {
	sideKm     float64
	maxLat     float64
	edgeBuffer float64
	latEdge    float64
}

// NewGrid returns a grid of sideKm tiles. maxLat bounds the usable latitude
// range (tiles beyond it absorb clamped coordinates); edgeBuffer sets the
// margin added around a viewport before enumerating covering tiles, as a
// fraction of each dimension capped at one tile edge.
func NewGrid(sideKm, maxLat, edgeBuffer float64) *Grid {
	return &Grid{
		sideKm:     sideKm,
		maxLat:     maxLat,
		edgeBuffer: edgeBuffer,
		latEdge:    sideKm / kmPerDegreeLat,
	}
}

// SideKm returns the configured tile side length.
func (g *Grid) SideKm() float64 { return g.sideKm }

// MaxLat returns the latitude clamp bound.
func (g *Grid) MaxLat() float64 { return g.maxLat }

// EdgeBuffer returns the viewport expansion fraction.
func (g *Grid) EdgeBuffer() float64 { return g.edgeBuffer }

// LatEdge returns the latitude extent of one tile in degrees.
func (g *Grid) LatEdge() float64 { return g.latEdge }

// Diagonal returns the tile diagonal in km, the base radius for
// circumscribing upstream fetches.
func (g *Grid) Diagonal() float64 {
	return g.sideKm * math.Sqrt2
}

// clampLat restricts a latitude to the configured bound so polar
// coordinates index into the outermost usable rows.
func (g *Grid) clampLat(lat float64) float64 {
	if lat > g.maxLat {
		return g.maxLat
	}
	if lat < -g.maxLat {
		return -g.maxLat
	}
	return lat
}

// rowForLat returns the latitude row containing the clamped latitude.
func (g *Grid) rowForLat(lat float64) int {
	return int(math.Floor(g.clampLat(lat) / g.latEdge))
}

// lngEdgeForRow returns the longitude extent of tiles in the given row,
// using the cosine correction at the row's midline latitude. Evaluating at
// the midline rather than the query point keeps the column partition
// identical for every point in the row, which makes tile identity a pure
// function of position.
func (g *Grid) lngEdgeForRow(row int) float64 {
	midLat := (float64(row) + 0.5) * g.latEdge
	return g.sideKm / (kmPerDegreeLat * math.Cos(midLat*math.Pi/180))
}

// IDForPoint maps a coordinate to its tile. Latitude is clamped to
// ±MaxLat before indexing; the same point always maps to the same tile
// regardless of call site.
func (g *Grid) IDForPoint(lat, lng float64) ID {
	row := g.rowForLat(lat)
	return ID{
		Y: row,
		X: int(math.Floor(lng / g.lngEdgeForRow(row))),
	}
}

// BoundsOf returns the exact bounding box and center of a tile. For any
// point p with |lat| <= MaxLat, BoundsOf(IDForPoint(p)).Contains(p) holds.
func (g *Grid) BoundsOf(id ID) Bounds {
	minLat := float64(id.Y) * g.latEdge
	lngEdge := g.lngEdgeForRow(id.Y)
	minLng := float64(id.X) * lngEdge
	return Bounds{
		MinLat:    minLat,
		MaxLat:    minLat + g.latEdge,
		MinLng:    minLng,
		MaxLng:    minLng + lngEdge,
		CenterLat: minLat + g.latEdge/2,
		CenterLng: minLng + lngEdge/2,
	}
}

// Covering enumerates the tiles needed to serve a viewport, expanded by
// the configured edge buffer and clamped to ±MaxLat. Enumeration is
// row-major; within each row the column range is computed from that row's
// own longitude edge, so the result covers every point of the expanded
// viewport even when it spans the equator (where column widths reach
// their minimum between the corner rows).
//
// The buffer margin is a fraction of each dimension capped at one tile
// edge. The cap keeps continental viewports from prefetching a
// proportional ring of off-screen tiles, and a zero-area viewport yields
// the single tile containing its point.
func (g *Grid) Covering(vp models.Viewport) []ID {
	latPad := g.edgeBuffer * math.Min(vp.MaxLat-vp.MinLat, g.latEdge)
	lngPad := g.edgeBuffer * math.Min(vp.MaxLng-vp.MinLng, g.latEdge)

	minLat := g.clampLat(vp.MinLat - latPad)
	maxLat := g.clampLat(vp.MaxLat + latPad)
	minLng := vp.MinLng - lngPad
	maxLng := vp.MaxLng + lngPad

	minRow := g.rowForLat(minLat)
	maxRow := g.rowForLat(maxLat)

	ids := make([]ID, 0, (maxRow-minRow+1)*2)
	for row := minRow; row <= maxRow; row++ {
		lngEdge := g.lngEdgeForRow(row)
		minCol := int(math.Floor(minLng / lngEdge))
		maxCol := int(math.Floor(maxLng / lngEdge))
		for col := minCol; col <= maxCol; col++ {
			ids = append(ids, ID{Y: row, X: col})
		}
	}
	return ids
}

// FetchRadiusKm returns the upstream search radius for one tile: the tile
// diagonal scaled by the configured buffer factor, so the circumscribing
// circle catches observations near the corners with margin for upstream
// coordinate rounding.
func (g *Grid) FetchRadiusKm(buffer float64) float64 {
	return g.Diagonal() * buffer
}
