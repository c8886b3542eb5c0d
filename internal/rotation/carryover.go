/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"time"

	"github.com/audiosolutions/gradefm/internal/models"
)

const (
	carryOverCap = 50

	// MinCarryOverAge is the minimum queue residence before an entry is
	// promoted — the time a background download is expected to need. It is
	// not a guarantee the file exists; callers must still verify via the
	// library resolver.
	MinCarryOverAge = 60 * time.Second
)

// CarryOverSong is a song that was missing locally at selection time and was
// queued for a background download.
type CarryOverSong struct {
	Title   string
	Artist  string
	Station string
	Style   string
	AddedAt time.Time
}

// Key returns the entry's identity key.
func (c CarryOverSong) Key() string {
	return models.SongKey(c.Title, c.Artist)
}

// CarryOverQueue holds missing songs until they have had time to download.
type CarryOverQueue struct {
	entries []CarryOverSong
}

// NewCarryOverQueue creates an empty queue.
func NewCarryOverQueue() *CarryOverQueue {
	return &CarryOverQueue{}
}

// Add enqueues a song. Idempotent by (title, artist); the queue is capped at
// 50 with the oldest entry evicted.
func (q *CarryOverQueue) Add(song CarryOverSong) {
	key := song.Key()
	for _, existing := range q.entries {
		if existing.Key() == key {
			return
		}
	}
	if song.AddedAt.IsZero() {
		song.AddedAt = time.Now()
	}
	q.entries = append(q.entries, song)
	if len(q.entries) > carryOverCap {
		q.entries = q.entries[len(q.entries)-carryOverCap:]
	}
}

// Take returns entries whose age has reached MinCarryOverAge and removes them
// from the queue. Younger entries stay queued for a later call.
func (q *CarryOverQueue) Take(now time.Time) []CarryOverSong {
	var ready []CarryOverSong
	var remaining []CarryOverSong
	for _, entry := range q.entries {
		if now.Sub(entry.AddedAt) >= MinCarryOverAge {
			ready = append(ready, entry)
		} else {
			remaining = append(remaining, entry)
		}
	}
	q.entries = remaining
	return ready
}

// Len returns the number of queued entries.
func (q *CarryOverQueue) Len() int {
	return len(q.entries)
}

// Clear resets the queue on day rollover.
func (q *CarryOverQueue) Clear() {
	q.entries = nil
}
