/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package pool turns raw observed-song rows into the per-station candidate
// pools the selection engine draws from.
package pool

import (
	"sort"
	"strings"
	"time"

	"github.com/audiosolutions/gradefm/internal/models"
)

const (
	// PerStationCap bounds each station pool.
	PerStationCap = 150

	// FreshnessWindow is the "playing right now elsewhere" horizon.
	FreshnessWindow = 30 * time.Minute
)

// StationPools maps station display name to its deduplicated candidate list,
// most recently observed first.
type StationPools map[string][]models.SongEntry

// Build constructs station pools from observed rows. Rows are expected newest
// first; duplicates by (title, artist) within a station keep the newest
// observation. Style is taken from the station's configuration when known.
func Build(songs []models.ScrapedSong, stations []models.Station) StationPools {
	styleByStation := make(map[string]string, len(stations))
	for _, st := range stations {
		styleByStation[strings.ToLower(st.Name)] = st.Style()
	}

	pools := make(StationPools)
	seen := make(map[string]map[string]struct{})

	for _, row := range songs {
		name := strings.TrimSpace(row.StationName)
		if name == "" || strings.TrimSpace(row.Title) == "" {
			continue
		}
		if len(pools[name]) >= PerStationCap {
			continue
		}

		key := models.SongKey(row.Title, row.Artist)
		if seen[name] == nil {
			seen[name] = make(map[string]struct{})
		}
		if _, dup := seen[name][key]; dup {
			continue
		}
		seen[name][key] = struct{}{}

		pools[name] = append(pools[name], models.SongEntry{
			Title:      strings.TrimSpace(row.Title),
			Artist:     strings.TrimSpace(row.Artist),
			Station:    name,
			Style:      styleByStation[strings.ToLower(name)],
			ObservedAt: row.CreatedAt,
		})
	}

	for name := range pools {
		entries := pools[name]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].ObservedAt.After(entries[j].ObservedAt)
		})
	}
	return pools
}

// ByStation returns the pool for a station name, exact key.
func (p StationPools) ByStation(name string) []models.SongEntry {
	return p[name]
}

// All flattens every station pool, freshest first.
func (p StationPools) All() []models.SongEntry {
	var all []models.SongEntry
	for _, entries := range p {
		all = append(all, entries...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ObservedAt.After(all[j].ObservedAt)
	})
	return all
}

// Fresh returns songs from any station observed within the freshness window
// ending at now, freshest first.
func (p StationPools) Fresh(now time.Time) []models.SongEntry {
	cutoff := now.Add(-FreshnessWindow)
	var fresh []models.SongEntry
	for _, entry := range p.All() {
		if entry.ObservedAt.After(cutoff) {
			fresh = append(fresh, entry)
		}
	}
	return fresh
}

// SameStyle returns songs from stations other than exclude that share the
// given style tag. Entries are grouped station by station so the caller tries
// one same-style station fully before the next.
func (p StationPools) SameStyle(style, exclude string) []models.SongEntry {
	if style == "" {
		return nil
	}
	style = strings.ToLower(style)
	exclude = strings.ToLower(exclude)

	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []models.SongEntry
	for _, name := range names {
		if strings.ToLower(name) == exclude {
			continue
		}
		for _, entry := range p[name] {
			if strings.ToLower(entry.Style) == style {
				out = append(out, entry)
			}
		}
	}
	return out
}
