/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package library answers "does a local audio file exist for this song". The
// Resolver wraps a Checker with title/artist normalization and bounded
// batch dispatch; LocalChecker is the folder-scanning implementation.
package library

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/audiosolutions/gradefm/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const batchLimit = 5

// Result is one existence answer.
type Result struct {
	Exists   bool
	Filename string
}

// Query is one (artist, title) lookup.
type Query struct {
	Artist string
	Title  string
}

// Key returns the batch map key for the query.
func (q Query) Key() string {
	return strings.ToLower(strings.TrimSpace(q.Artist)) + "|" + strings.ToLower(strings.TrimSpace(q.Title))
}

// Checker is the underlying lookup. Implementations must tolerate unknown
// folders and answer exists=false instead of failing.
type Checker interface {
	CheckOne(ctx context.Context, artist, title string) (Result, error)
}

// Resolver adapts a Checker with normalization and batching.
type Resolver struct {
	checker Checker
	logger  zerolog.Logger
}

// NewResolver creates a resolver over the checker.
func NewResolver(checker Checker, logger zerolog.Logger) *Resolver {
	return &Resolver{
		checker: checker,
		logger:  logger.With().Str("component", "library").Logger(),
	}
}

var qualifierPattern = regexp.MustCompile(`(?i)[(\[][^)\]]*(live|ao vivo|remix|remaster|radio edit|explicit|clean|feat\.?|ft\.?|part\.?)[^)\]]*[)\]]`)

var featMarkers = []string{" feat.", " feat ", " ft.", " ft ", " featuring ", " part.", " part ", " participação "}

// NormalizeTitle strips parenthetical and bracketed qualifiers (live, remix,
// remaster, radio edit, explicit/clean, featuring clauses).
func NormalizeTitle(title string) string {
	cleaned := qualifierPattern.ReplaceAllString(title, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.TrimSpace(cleaned)
}

// NormalizeArtist truncates the artist at the first featuring-clause marker.
func NormalizeArtist(artist string) string {
	lower := strings.ToLower(artist)
	cut := len(artist)
	for _, marker := range featMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return strings.TrimSpace(artist[:cut])
}

// Exists checks one song, trying the normalized pair first and falling back
// to the raw strings. Checker errors are logged and answered as missing.
func (r *Resolver) Exists(ctx context.Context, artist, title string) Result {
	normArtist := NormalizeArtist(artist)
	normTitle := NormalizeTitle(title)

	result, err := r.checker.CheckOne(ctx, normArtist, normTitle)
	if err != nil {
		r.logger.Warn().Err(err).Str("artist", artist).Str("title", title).Msg("library check failed")
		telemetry.LibraryChecksTotal.WithLabelValues("error").Inc()
		return Result{}
	}
	if !result.Exists && (normArtist != artist || normTitle != title) {
		result, err = r.checker.CheckOne(ctx, artist, title)
		if err != nil {
			r.logger.Warn().Err(err).Str("artist", artist).Str("title", title).Msg("library check failed")
			telemetry.LibraryChecksTotal.WithLabelValues("error").Inc()
			return Result{}
		}
	}

	if result.Exists {
		telemetry.LibraryChecksTotal.WithLabelValues("found").Inc()
	} else {
		telemetry.LibraryChecksTotal.WithLabelValues("missing").Inc()
	}
	return result
}

// ExistsBatch checks many songs with bounded parallelism. Input is
// deduplicated by key; the per-entry contract on checker error is fail open
// (exists=true) so a flaky collaborator cannot stall block assembly.
func (r *Resolver) ExistsBatch(ctx context.Context, queries []Query) map[string]Result {
	results := make(map[string]Result, len(queries))
	deduped := make([]Query, 0, len(queries))
	for _, q := range queries {
		key := q.Key()
		if _, seen := results[key]; seen {
			continue
		}
		results[key] = Result{}
		deduped = append(deduped, q)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchLimit)

	for _, q := range deduped {
		g.Go(func() error {
			result, err := r.checker.CheckOne(ctx, NormalizeArtist(q.Artist), NormalizeTitle(q.Title))
			if err != nil {
				r.logger.Warn().Err(err).Str("artist", q.Artist).Str("title", q.Title).
					Msg("batch library check failed, assuming present")
				telemetry.LibraryChecksTotal.WithLabelValues("error").Inc()
				result = Result{Exists: true}
			}
			mu.Lock()
			results[q.Key()] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}
