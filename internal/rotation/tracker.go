/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rotation holds the per-day mutable selection state: the
// anti-repetition tracker and the carry-over queue. Both are single-writer
// structures owned by the build orchestrator; the "one build in flight"
// invariant makes them safe without locking.
package rotation

import (
	"strings"

	"github.com/audiosolutions/gradefm/internal/models"
)

const (
	trackerCap = 100

	// Window applied during full-day generation; shorter than the
	// configured incremental window so 48 back-to-back blocks keep variety.
	fullDayWindowMinutes = 30

	minutesPerDay = 24 * 60
)

// UsedSong is one mark in the repetition ring.
type UsedSong struct {
	Title  string
	Artist string
	UsedAt models.HourMinute
}

// Tracker answers "was this title or artist used recently" over wall-clock
// block times, with midnight wraparound.
type Tracker struct {
	entries       []UsedSong
	windowMinutes int
}

// NewTracker creates a tracker with the configured incremental window.
func NewTracker(windowMinutes int) *Tracker {
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	return &Tracker{windowMinutes: windowMinutes}
}

// MarkUsed appends a song mark, trimming to the last 100 entries.
func (t *Tracker) MarkUsed(title, artist string, blockTime models.HourMinute) {
	t.entries = append(t.entries, UsedSong{
		Title:  strings.TrimSpace(title),
		Artist: strings.TrimSpace(artist),
		UsedAt: blockTime,
	})
	if len(t.entries) > trackerCap {
		t.entries = t.entries[len(t.entries)-trackerCap:]
	}
}

// IsRecentlyUsed reports whether the title or the artist was marked within the
// repetition window ending at blockTime. Matching is case-insensitive and
// trimmed; either field matching alone is enough.
func (t *Tracker) IsRecentlyUsed(title, artist string, blockTime models.HourMinute, fullDay bool) bool {
	window := t.windowMinutes
	if fullDay {
		window = fullDayWindowMinutes
	}

	title = normalize(title)
	artist = normalize(artist)
	now := blockTime.MinuteOfDay()

	for _, used := range t.entries {
		diff := now - used.UsedAt.MinuteOfDay()
		if diff < 0 {
			diff += minutesPerDay
		}
		if diff > window {
			continue
		}
		if title != "" && normalize(used.Title) == title {
			return true
		}
		if artist != "" && normalize(used.Artist) == artist {
			return true
		}
	}
	return false
}

// Len returns the number of retained marks.
func (t *Tracker) Len() int {
	return len(t.entries)
}

// Clear resets the tracker on day rollover.
func (t *Tracker) Clear() {
	t.entries = nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
