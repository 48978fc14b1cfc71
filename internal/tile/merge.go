// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package tile

import (
	"slices"

	"github.com/tomtom215/ornithographus/internal/models"
)

// MergeClip fuses the recent and notable feeds fetched for one tile into
// the deduplicated list stored in the tile's cache entry. Both inputs are
// expected newest-first, which is how the upstream orders responses.
//
// The pipeline runs four passes, each with a single invariant:
//
//  1. compress each feed so no two records share (speciesCode, lat, lng),
//  2. mark recent records whose key also appears in the notable feed,
//  3. union the two feeds, folding colliding keys into one record,
//  4. clip to the tile's half-open bounds.
//
// After clipping, every surviving record satisfies bounds.Contains and the
// output carries at most one record per key. Records keep the recent
// feed's order; notable-only records follow.
func MergeClip(recent, notable []models.Observation, bounds Bounds) []models.CachedObservation {
	compressedRecent := compress(recent, false)
	compressedNotable := compress(notable, true)

	markNotable(compressedRecent, compressedNotable)

	merged := unionByKey(compressedRecent, compressedNotable)

	return clip(merged, bounds)
}

// compress collapses a feed to one record per (speciesCode, lat, lng).
// The first occurrence supplies the scalar fields, which is the most
// recent report given the feed's newest-first order; later occurrences
// only contribute their submission ids. The singular SubID field is
// absorbed into the aggregated SubIDs list.
func compress(feed []models.Observation, notable bool) []models.CachedObservation {
	out := make([]models.CachedObservation, 0, len(feed))
	index := make(map[models.ObservationKey]int, len(feed))

	for _, obs := range feed {
		key := models.ObservationKey{SpeciesCode: obs.SpeciesCode, Lat: obs.Lat, Lng: obs.Lng}
		if i, ok := index[key]; ok {
			out[i].SubIDs = appendSubID(out[i].SubIDs, obs.SubID)
			continue
		}
		index[key] = len(out)
		cached := models.CachedObservation{
			SpeciesCode: obs.SpeciesCode,
			ComName:     obs.ComName,
			SciName:     obs.SciName,
			Lat:         obs.Lat,
			Lng:         obs.Lng,
			ObsDt:       obs.ObsDt,
			SubIDs:      appendSubID(nil, obs.SubID),
			IsNotable:   notable,
		}
		out = append(out, cached)
	}
	return out
}

// markNotable flips IsNotable on every recent record whose key appears in
// the compressed notable feed. After this pass a recent record is notable
// iff the upstream notable endpoint reported its exact species and
// location.
func markNotable(recent, notable []models.CachedObservation) {
	if len(recent) == 0 || len(notable) == 0 {
		return
	}
	keys := make(map[models.ObservationKey]struct{}, len(notable))
	for _, obs := range notable {
		keys[obs.Key()] = struct{}{}
	}
	for i := range recent {
		if _, ok := keys[recent[i].Key()]; ok {
			recent[i].IsNotable = true
		}
	}
}

// unionByKey concatenates the two compressed feeds and folds records that
// share a key into one. A collision ORs the notable flags, unions the
// submission id lists, and lets the newer observation date supply the
// scalar fields, so the retained record always reflects the most recent
// report. ISO date-times compare correctly as strings.
func unionByKey(recent, notable []models.CachedObservation) []models.CachedObservation {
	out := make([]models.CachedObservation, 0, len(recent)+len(notable))
	index := make(map[models.ObservationKey]int, len(recent)+len(notable))

	for _, obs := range slices.Concat(recent, notable) {
		key := obs.Key()
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, obs)
			continue
		}
		existing := &out[i]
		existing.IsNotable = existing.IsNotable || obs.IsNotable
		for _, subID := range obs.SubIDs {
			existing.SubIDs = appendSubID(existing.SubIDs, subID)
		}
		if obs.ObsDt > existing.ObsDt {
			existing.ComName = obs.ComName
			existing.SciName = obs.SciName
			existing.ObsDt = obs.ObsDt
		}
	}
	return out
}

// clip drops records outside the tile's half-open bounds. The upstream
// search radius circumscribes the tile, so out-of-bounds records are
// expected; the half-open convention guarantees each record survives in
// exactly one tile.
func clip(merged []models.CachedObservation, bounds Bounds) []models.CachedObservation {
	out := make([]models.CachedObservation, 0, len(merged))
	for _, obs := range merged {
		if bounds.Contains(obs.Lat, obs.Lng) {
			out = append(out, obs)
		}
	}
	return out
}

// appendSubID adds a submission id to the list unless it is empty or
// already present, preserving first-seen order.
func appendSubID(subIDs []string, subID string) []string {
	if subID == "" || slices.Contains(subIDs, subID) {
		return subIDs
	}
	return append(subIDs, subID)
}
