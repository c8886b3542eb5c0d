/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sequence decides which slot rotation applies to a block and maps
// slot sources to concrete stations and their pools.
package sequence

import (
	"sort"
	"strings"
	"time"

	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/audiosolutions/gradefm/internal/pool"
)

// ResolvedBy identifies which matcher bound a slot source to a station.
type ResolvedBy string

const (
	ResolvedLegacy          ResolvedBy = "legacy"
	ResolvedUUID            ResolvedBy = "uuid"
	ResolvedExact           ResolvedBy = "exact"
	ResolvedCaseInsensitive ResolvedBy = "case_insensitive"
	ResolvedFuzzy           ResolvedBy = "fuzzy"
	ResolvedNone            ResolvedBy = "none"
)

// legacyStationNames maps historical short IDs kept in old sequence configs
// to current display names.
var legacyStationNames = map[string]string{
	"bh":    "BH FM",
	"ita":   "Itatiaia",
	"clube": "Clube FM",
	"98":    "98 FM",
	"ext":   "Extra FM",
	"lib":   "Liberdade FM",
}

// ActiveSequence returns the rotation in effect at the given time and
// weekday: the winning enabled scheduled sequence, else the default.
//
// Precedence among matching sequences: highest priority first; equal priority
// is broken by the narrower time window, then by lexicographic ID, so the
// outcome never depends on insertion order.
func ActiveSequence(scheduled []models.ScheduledSequence, defaultSeq models.SequenceList, at models.HourMinute, day time.Weekday) models.SequenceList {
	var matches []models.ScheduledSequence
	for _, s := range scheduled {
		if !s.Enabled || !s.MatchesWeekday(day) {
			continue
		}
		if containsTime(s, at) {
			matches = append(matches, s)
		}
	}
	if len(matches) == 0 {
		return defaultSeq
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		if wi, wj := matches[i].WindowMinutes(), matches[j].WindowMinutes(); wi != wj {
			return wi < wj
		}
		return matches[i].ID < matches[j].ID
	})
	return matches[0].Sequence
}

// containsTime implements overnight-safe [start, end) containment.
func containsTime(s models.ScheduledSequence, at models.HourMinute) bool {
	start := s.StartHour*60 + s.StartMinute
	end := s.EndHour*60 + s.EndMinute
	now := at.MinuteOfDay()

	if end <= start {
		// Wraps past midnight.
		return now >= start || now < end
	}
	return now >= start && now < end
}

// Resolution is the outcome of binding one slot source to a station pool.
type Resolution struct {
	StationName string
	Songs       []models.SongEntry
	ResolvedBy  ResolvedBy
}

type matcher func(source string, pools pool.StationPools, stations []models.Station) (Resolution, bool)

var matchers = []matcher{
	matchLegacy,
	matchUUID,
	matchExact,
	matchCaseInsensitive,
	matchFuzzy,
}

// ResolveStation binds a slot's radio source to a station name and pool. An
// unmatched source resolves to none with an empty pool; an empty pool is an
// expected transient condition, not an error.
func ResolveStation(source string, pools pool.StationPools, stations []models.Station) Resolution {
	source = strings.TrimSpace(source)
	for _, match := range matchers {
		if resolution, ok := match(source, pools, stations); ok {
			return resolution
		}
	}
	return Resolution{StationName: source, ResolvedBy: ResolvedNone}
}

func matchLegacy(source string, pools pool.StationPools, _ []models.Station) (Resolution, bool) {
	name, ok := legacyStationNames[strings.ToLower(source)]
	if !ok {
		return Resolution{}, false
	}
	return Resolution{StationName: name, Songs: pools.ByStation(name), ResolvedBy: ResolvedLegacy}, true
}

func matchUUID(source string, pools pool.StationPools, stations []models.Station) (Resolution, bool) {
	for _, st := range stations {
		if strings.EqualFold(st.ID, source) {
			return Resolution{StationName: st.Name, Songs: pools.ByStation(st.Name), ResolvedBy: ResolvedUUID}, true
		}
	}
	return Resolution{}, false
}

func matchExact(source string, pools pool.StationPools, _ []models.Station) (Resolution, bool) {
	if songs, ok := pools[source]; ok {
		return Resolution{StationName: source, Songs: songs, ResolvedBy: ResolvedExact}, true
	}
	return Resolution{}, false
}

func matchCaseInsensitive(source string, pools pool.StationPools, _ []models.Station) (Resolution, bool) {
	for name, songs := range pools {
		if strings.EqualFold(name, source) {
			return Resolution{StationName: name, Songs: songs, ResolvedBy: ResolvedCaseInsensitive}, true
		}
	}
	return Resolution{}, false
}

func matchFuzzy(source string, pools pool.StationPools, _ []models.Station) (Resolution, bool) {
	normalized := normalizeName(source)
	if normalized == "" {
		return Resolution{}, false
	}

	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		candidate := normalizeName(name)
		if strings.Contains(candidate, normalized) || strings.Contains(normalized, candidate) {
			return Resolution{StationName: name, Songs: pools[name], ResolvedBy: ResolvedFuzzy}, true
		}
	}
	return Resolution{}, false
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " fm", "")
	return strings.Join(strings.Fields(name), " ")
}
