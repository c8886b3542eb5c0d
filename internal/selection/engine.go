/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package selection resolves one sequence slot to one output token by
// walking a fixed priority chain of candidate sources. The chain always
// terminates: the last level is the configured wildcard code.
package selection

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/audiosolutions/gradefm/internal/catalog"
	"github.com/audiosolutions/gradefm/internal/library"
	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/audiosolutions/gradefm/internal/pool"
	"github.com/audiosolutions/gradefm/internal/rotation"
	"github.com/audiosolutions/gradefm/internal/sequence"
	"github.com/audiosolutions/gradefm/internal/telemetry"
	"github.com/rs/zerolog"
)

// Priority level names, in chain order.
const (
	LevelStationPool     = "station_pool"
	LevelCarryOver       = "carry_over"
	LevelFreshness       = "freshness"
	LevelTopRanked       = "top_ranked"
	LevelSecondaryRanked = "secondary_ranked"
	LevelStyleAffinity   = "style_affinity"
	LevelGeneralPool     = "general_pool"
	LevelRandomRanking   = "random_ranking"
	LevelWildcard        = "wildcard"
)

const (
	topRankedCount = 25

	jitTimeoutFullDay     = 30 * time.Second
	jitTimeoutIncremental = 12 * time.Minute
)

// PlannedSong is one resolved slot.
type PlannedSong struct {
	Title    string
	Artist   string
	Station  string
	Style    string
	Filename string
	Level    string
	Wildcard bool
}

// State is the per-day and per-block mutable selection context, owned by the
// build orchestrator and shared by every slot of one block.
type State struct {
	Tracker   *rotation.Tracker
	CarryOver *rotation.CarryOverQueue
	BlockTime models.HourMinute
	Now       time.Time
	FullDay   bool

	usedKeys    map[string]struct{}
	usedArtists map[string]struct{}
	Logs        []models.BlockLogEntry
}

// NewBlockState starts a fresh block over the shared day-level structures.
func NewBlockState(tracker *rotation.Tracker, carryOver *rotation.CarryOverQueue, blockTime models.HourMinute, now time.Time, fullDay bool) *State {
	return &State{
		Tracker:     tracker,
		CarryOver:   carryOver,
		BlockTime:   blockTime,
		Now:         now,
		FullDay:     fullDay,
		usedKeys:    make(map[string]struct{}),
		usedArtists: make(map[string]struct{}),
	}
}

// MarkUsed records a selection in the block's dedup sets and the day tracker.
func (s *State) MarkUsed(title, artist string) {
	s.usedKeys[models.SongKey(title, artist)] = struct{}{}
	s.usedArtists[strings.ToLower(strings.TrimSpace(artist))] = struct{}{}
	if s.Tracker != nil {
		s.Tracker.MarkUsed(title, artist, s.BlockTime)
	}
}

// Eligible applies the hard constraints: not already in this block (by key or
// by artist) and not inside the repetition window.
func (s *State) Eligible(title, artist string) bool {
	if _, dup := s.usedKeys[models.SongKey(title, artist)]; dup {
		return false
	}
	if _, dup := s.usedArtists[strings.ToLower(strings.TrimSpace(artist))]; dup {
		return false
	}
	if s.Tracker != nil && s.Tracker.IsRecentlyUsed(title, artist, s.BlockTime, s.FullDay) {
		return false
	}
	return true
}

func (s *State) log(entry models.BlockLogEntry) {
	entry.BlockTime = s.BlockTime.Label()
	entry.CreatedAt = time.Now()
	s.Logs = append(s.Logs, entry)
}

// Engine walks the priority chain for a slot.
type Engine struct {
	resolver   *library.Resolver
	downloader catalog.Downloader
	pools      pool.StationPools
	stations   []models.Station
	ranking    []models.RankingSong
	settings   models.Settings

	downloadFolder  string
	quality         string
	jitPerCandidate bool

	rng    *rand.Rand
	logger zerolog.Logger
}

// Deps wires an engine.
type Deps struct {
	Resolver   *library.Resolver
	Downloader catalog.Downloader
	Pools      pool.StationPools
	Stations   []models.Station
	Ranking    []models.RankingSong // sorted by plays descending
	Settings   models.Settings

	DownloadFolder  string
	Quality         string
	JITPerCandidate bool

	Rand   *rand.Rand
	Logger zerolog.Logger
}

// NewEngine creates an engine. A nil Rand falls back to a time-seeded source;
// tests inject a fixed seed for determinism.
func NewEngine(deps Deps) *Engine {
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	downloader := deps.Downloader
	if downloader == nil {
		downloader = catalog.Noop{}
	}
	return &Engine{
		resolver:        deps.Resolver,
		downloader:      downloader,
		pools:           deps.Pools,
		stations:        deps.Stations,
		ranking:         deps.Ranking,
		settings:        deps.Settings.Normalized(),
		downloadFolder:  deps.DownloadFolder,
		quality:         deps.Quality,
		jitPerCandidate: deps.JITPerCandidate,
		rng:             rng,
		logger:          deps.Logger.With().Str("component", "selection").Logger(),
	}
}

// slotContext carries one slot's resolution through the chain.
type slotContext struct {
	slot        models.SequenceSlot
	resolution  sequence.Resolution
	state       *State
	jitAttempts int
}

type strategy struct {
	level string
	pick  func(ctx context.Context, sc *slotContext) *PlannedSong
}

// SelectSongForSlot resolves a slot to a planned song. It never fails: the
// wildcard level is the terminal fallback.
func (e *Engine) SelectSongForSlot(ctx context.Context, slot models.SequenceSlot, state *State) PlannedSong {
	// Fixed custom files bypass the chain.
	if slot.CustomFileName != "" {
		state.log(models.BlockLogEntry{
			Type:  models.BlockLogFixed,
			Title: slot.CustomFileName,
		})
		return PlannedSong{Filename: slot.CustomFileName, Level: "fixed"}
	}

	sc := &slotContext{
		slot:       slot,
		resolution: sequence.ResolveStation(slot.RadioSource, e.pools, e.stations),
		state:      state,
	}

	for _, st := range e.chainFor(slot.RadioSource) {
		sc.jitAttempts = 0
		if song := st.pick(ctx, sc); song != nil {
			song.Level = st.level
			telemetry.SlotsResolvedTotal.WithLabelValues(st.level).Inc()
			if song.Wildcard {
				state.log(models.BlockLogEntry{
					Type:    models.BlockLogSkipped,
					Station: sc.resolution.StationName,
					Reason:  "no candidate at any level, wildcard emitted",
				})
				return *song
			}
			state.MarkUsed(song.Title, song.Artist)
			logType := models.BlockLogUsed
			if st.level != LevelStationPool {
				logType = models.BlockLogSubstituted
			}
			state.log(models.BlockLogEntry{
				Type:    logType,
				Title:   song.Title,
				Artist:  song.Artist,
				Station: song.Station,
				Style:   song.Style,
				Reason:  st.level,
			})
			return *song
		}
	}

	// Unreachable: the wildcard strategy always produces.
	return PlannedSong{Filename: e.settings.WildcardCode, Level: LevelWildcard, Wildcard: true}
}

// chainFor returns the strategy order for a slot source. Reserved tokens
// enter the chain at their natural level instead of the station pool.
func (e *Engine) chainFor(radioSource string) []strategy {
	full := []strategy{
		{LevelStationPool, e.pickStationPool},
		{LevelCarryOver, e.pickCarryOver},
		{LevelFreshness, e.pickFreshness},
		{LevelTopRanked, e.pickTopRanked},
		{LevelSecondaryRanked, e.pickSecondaryRanked},
		{LevelStyleAffinity, e.pickStyleAffinity},
		{LevelGeneralPool, e.pickGeneralPool},
		{LevelRandomRanking, e.pickRandomRanking},
		{LevelWildcard, e.pickWildcard},
	}
	switch strings.ToLower(strings.TrimSpace(radioSource)) {
	case models.SourceRankingBlock:
		return full[3:]
	case models.SourceRandomPool:
		return full[6:]
	default:
		return full
	}
}

// verify answers whether a candidate exists locally, resolving its on-disk
// filename. A JIT download is attempted when the level's budget allows.
func (e *Engine) verify(ctx context.Context, sc *slotContext, entry models.SongEntry, allowJIT bool) (string, bool) {
	result := e.resolver.Exists(ctx, entry.Artist, entry.Title)
	if result.Exists {
		return e.filenameFor(entry, result), true
	}

	if allowJIT && e.downloader.Enabled() && (e.jitPerCandidate || sc.jitAttempts == 0) {
		sc.jitAttempts++
		if e.downloadAndRecheck(ctx, sc, entry) {
			result = e.resolver.Exists(ctx, entry.Artist, entry.Title)
			if result.Exists {
				return e.filenameFor(entry, result), true
			}
		}
	}
	return "", false
}

// downloadAndRecheck races a catalog fetch against the mode's deadline. A
// stuck download is abandoned at the deadline, never waited out.
func (e *Engine) downloadAndRecheck(ctx context.Context, sc *slotContext, entry models.SongEntry) bool {
	timeout := jitTimeoutIncremental
	if sc.state.FullDay {
		timeout = jitTimeoutFullDay
	}
	dlCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := e.downloader.Fetch(dlCtx, entry.Artist, entry.Title, e.downloadFolder, e.quality)
	switch {
	case err != nil && dlCtx.Err() != nil:
		telemetry.JITDownloadsTotal.WithLabelValues("timeout").Inc()
		e.logger.Warn().Str("title", entry.Title).Str("artist", entry.Artist).Msg("jit download timed out")
		return false
	case err != nil:
		telemetry.JITDownloadsTotal.WithLabelValues("error").Inc()
		e.logger.Warn().Err(err).Str("title", entry.Title).Msg("jit download failed")
		return false
	case !result.Success:
		telemetry.JITDownloadsTotal.WithLabelValues("miss").Inc()
		return false
	}
	telemetry.JITDownloadsTotal.WithLabelValues("hit").Inc()
	return true
}

func (e *Engine) filenameFor(entry models.SongEntry, result library.Result) string {
	if result.Filename != "" {
		return result.Filename
	}
	return fmt.Sprintf("%s - %s.mp3", entry.Artist, entry.Title)
}

func (e *Engine) planned(entry models.SongEntry, filename string) *PlannedSong {
	return &PlannedSong{
		Title:    entry.Title,
		Artist:   entry.Artist,
		Station:  entry.Station,
		Style:    entry.Style,
		Filename: filename,
	}
}

// Level 1: the slot's own station pool, freshest first. The first local miss
// gets the JIT attempt; later misses are queued to carry-over.
func (e *Engine) pickStationPool(ctx context.Context, sc *slotContext) *PlannedSong {
	for _, entry := range sc.resolution.Songs {
		if !sc.state.Eligible(entry.Title, entry.Artist) {
			continue
		}
		if filename, ok := e.verify(ctx, sc, entry, true); ok {
			return e.planned(entry, filename)
		}
		sc.state.CarryOver.Add(rotation.CarryOverSong{
			Title:   entry.Title,
			Artist:  entry.Artist,
			Station: entry.Station,
			Style:   entry.Style,
			AddedAt: sc.state.Now,
		})
		sc.state.log(models.BlockLogEntry{
			Type:    models.BlockLogMissing,
			Title:   entry.Title,
			Artist:  entry.Artist,
			Station: entry.Station,
			Style:   entry.Style,
			Reason:  "not in library, queued for download",
		})
	}
	return nil
}

// Level 2: carry-over entries past the minimum age. Same-station entries are
// tried first; untried entries go back to the queue with their age kept.
func (e *Engine) pickCarryOver(ctx context.Context, sc *slotContext) *PlannedSong {
	taken := sc.state.CarryOver.Take(sc.state.Now)
	if len(taken) == 0 {
		return nil
	}

	ordered := make([]rotation.CarryOverSong, 0, len(taken))
	var others []rotation.CarryOverSong
	for _, c := range taken {
		if strings.EqualFold(c.Station, sc.resolution.StationName) {
			ordered = append(ordered, c)
		} else {
			others = append(others, c)
		}
	}
	ordered = append(ordered, others...)

	for i, c := range ordered {
		entry := models.SongEntry{Title: c.Title, Artist: c.Artist, Station: c.Station, Style: c.Style}
		if !sc.state.Eligible(entry.Title, entry.Artist) {
			continue
		}
		if filename, ok := e.verify(ctx, sc, entry, false); ok {
			for _, rest := range ordered[i+1:] {
				sc.state.CarryOver.Add(rest)
			}
			return e.planned(entry, filename)
		}
	}
	return nil
}

// Level 3: any station's songs observed in the last 30 minutes.
func (e *Engine) pickFreshness(ctx context.Context, sc *slotContext) *PlannedSong {
	for _, entry := range e.pools.Fresh(sc.state.Now) {
		if !sc.state.Eligible(entry.Title, entry.Artist) {
			continue
		}
		if filename, ok := e.verify(ctx, sc, entry, false); ok {
			return e.planned(entry, filename)
		}
	}
	return nil
}

func (e *Engine) pickFromRanking(ctx context.Context, sc *slotContext, ranking []models.RankingSong) *PlannedSong {
	for _, r := range ranking {
		if !sc.state.Eligible(r.Title, r.Artist) {
			continue
		}
		entry := models.SongEntry{Title: r.Title, Artist: r.Artist, Style: r.Style}
		if filename, ok := e.verify(ctx, sc, entry, false); ok {
			return e.planned(entry, filename)
		}
	}
	return nil
}

// Level 4: ranking positions 1-25.
func (e *Engine) pickTopRanked(ctx context.Context, sc *slotContext) *PlannedSong {
	top := e.ranking
	if len(top) > topRankedCount {
		top = top[:topRankedCount]
	}
	return e.pickFromRanking(ctx, sc, top)
}

// Level 5: ranking positions 26 and beyond.
func (e *Engine) pickSecondaryRanked(ctx context.Context, sc *slotContext) *PlannedSong {
	if len(e.ranking) <= topRankedCount {
		return nil
	}
	return e.pickFromRanking(ctx, sc, e.ranking[topRankedCount:])
}

// Level 6: other stations sharing the slot station's style.
func (e *Engine) pickStyleAffinity(ctx context.Context, sc *slotContext) *PlannedSong {
	style := e.styleOf(sc.resolution.StationName)
	for _, entry := range e.pools.SameStyle(style, sc.resolution.StationName) {
		if !sc.state.Eligible(entry.Title, entry.Artist) {
			continue
		}
		if filename, ok := e.verify(ctx, sc, entry, true); ok {
			return e.planned(entry, filename)
		}
	}
	return nil
}

// Level 7: any unused song from any station, freshest first.
func (e *Engine) pickGeneralPool(ctx context.Context, sc *slotContext) *PlannedSong {
	for _, entry := range e.pools.All() {
		if !sc.state.Eligible(entry.Title, entry.Artist) {
			continue
		}
		if filename, ok := e.verify(ctx, sc, entry, true); ok {
			return e.planned(entry, filename)
		}
	}
	return nil
}

// Level 8: a shuffled ranking pick.
func (e *Engine) pickRandomRanking(ctx context.Context, sc *slotContext) *PlannedSong {
	if len(e.ranking) == 0 {
		return nil
	}
	shuffled := make([]models.RankingSong, len(e.ranking))
	copy(shuffled, e.ranking)
	e.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return e.pickFromRanking(ctx, sc, shuffled)
}

// Level 9: the terminal wildcard.
func (e *Engine) pickWildcard(_ context.Context, _ *slotContext) *PlannedSong {
	return &PlannedSong{Filename: e.settings.WildcardCode, Wildcard: true}
}

func (e *Engine) styleOf(stationName string) string {
	for _, st := range e.stations {
		if strings.EqualFold(st.Name, stationName) {
			return st.Style()
		}
	}
	return ""
}

// Wildcard returns the configured primary wildcard code.
func (e *Engine) Wildcard() string {
	return e.settings.WildcardCode
}

// AltWildcard returns the secondary wildcard code used by the alternating
// two-station program.
func (e *Engine) AltWildcard() string {
	return e.settings.AltWildcardCode
}

// Pools exposes the engine's station pools to the program generators.
func (e *Engine) Pools() pool.StationPools {
	return e.pools
}

// Ranking exposes the ranking snapshot to the program generators.
func (e *Engine) Ranking() []models.RankingSong {
	return e.ranking
}

// Resolver exposes the library resolver to the program generators.
func (e *Engine) Resolver() *library.Resolver {
	return e.resolver
}

// Rand exposes the engine's random source so generators shuffle
// deterministically under an injected seed.
func (e *Engine) Rand() *rand.Rand {
	return e.rng
}
