/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package programs generates whole blocks for the fixed time windows that
// bypass normal slot-by-slot selection: the mandatory civic broadcast, the
// ranking segments, the overnight mix, the alternating morning show, the
// folder-sourced segments and the nightly edition program.
package programs

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/audiosolutions/gradefm/internal/blockfile"
	"github.com/audiosolutions/gradefm/internal/library"
	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/audiosolutions/gradefm/internal/pool"
	"github.com/audiosolutions/gradefm/internal/selection"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Result is a fully generated block, same shape the general engine produces.
type Result struct {
	ProgramName string
	Tokens      []blockfile.Token
	Logs        []models.BlockLogEntry
}

// Registry holds the generator dependencies and routes block times to the
// program that owns them.
type Registry struct {
	fs       afero.Fs
	resolver *library.Resolver
	pools    pool.StationPools
	ranking  []models.RankingSong

	wildcard    string
	altWildcard string
	filterChars string

	morningStations  []string
	happyHourFolders []string
	lateNightFolders []string
	editionFolder    string

	rng    *rand.Rand
	logger zerolog.Logger
}

// Deps wires a registry.
type Deps struct {
	FS       afero.Fs
	Resolver *library.Resolver
	Pools    pool.StationPools
	Ranking  []models.RankingSong
	Settings models.Settings

	MorningStations  []string
	HappyHourFolders []string
	LateNightFolders []string
	EditionFolder    string

	Rand   *rand.Rand
	Logger zerolog.Logger
}

// NewRegistry creates the program registry.
func NewRegistry(deps Deps) *Registry {
	settings := deps.Settings.Normalized()
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Registry{
		fs:               deps.FS,
		resolver:         deps.Resolver,
		pools:            deps.Pools,
		ranking:          deps.Ranking,
		wildcard:         settings.WildcardCode,
		altWildcard:      settings.AltWildcardCode,
		filterChars:      settings.FilterChars,
		morningStations:  deps.MorningStations,
		happyHourFolders: deps.HappyHourFolders,
		lateNightFolders: deps.LateNightFolders,
		editionFolder:    deps.EditionFolder,
		rng:              rng,
		logger:           deps.Logger.With().Str("component", "programs").Logger(),
	}
}

const blockSongCount = 5

// Generate returns the special program block for the given time, or false
// when the block follows normal selection.
func (r *Registry) Generate(ctx context.Context, at models.HourMinute, day time.Weekday, date time.Time, state *selection.State) (Result, bool) {
	minute := at.MinuteOfDay()
	switch {
	case minute <= 4*60+30:
		return r.overnightMix(ctx, state), true
	case minute >= 5*60 && minute <= 7*60+30:
		return r.alternatingMorning(ctx, state), true
	case minute == 17*60 || minute == 17*60+30:
		return r.folderSourced("Happy Hour", r.happyHourFolders, state), true
	case minute == 18*60:
		return r.rankingSegment(ctx, day, state, []int{2, 5}), true
	case minute == 18*60+30:
		return r.rankingSegment(ctx, day, state, []int{8, 9}), true
	case minute == 20*60:
		return r.topRankedBlock(ctx, 0, state), true
	case minute == 20*60+30:
		return r.topRankedBlock(ctx, 1, state), true
	case minute == 21*60 && day >= time.Monday && day <= time.Friday:
		return r.civicBlock(state), true
	case minute == 22*60 || minute == 22*60+30:
		return r.editionProgram(day, date, minute == 22*60, state), true
	case minute == 23*60 || minute == 23*60+30:
		return r.folderSourced("Toque Romântico", r.lateNightFolders, state), true
	}
	return Result{}, false
}

func (r *Registry) sanitized(filename string) string {
	return blockfile.EnsureExtension(blockfile.Sanitize(filename, r.filterChars))
}

func (r *Registry) fileToken(filename string) blockfile.Token {
	return blockfile.FileToken(r.sanitized(filename))
}

func (r *Registry) logFixed(state *selection.State, result *Result, title string) {
	result.Logs = append(result.Logs, models.BlockLogEntry{
		BlockTime: state.BlockTime.Label(),
		Type:      models.BlockLogFixed,
		Title:     title,
		CreatedAt: time.Now(),
	})
}

// civicBlock emits the mandatory federal broadcast. The filename is emitted
// verbatim: this block is exempt from sanitizing.
func (r *Registry) civicBlock(state *selection.State) Result {
	result := Result{
		ProgramName: "A Voz do Brasil",
		Tokens:      []blockfile.Token{blockfile.FileToken("A Voz do Brasil.mp3")},
	}
	r.logFixed(state, &result, "A Voz do Brasil.mp3")
	return result
}

// rankingSegment interleaves the day's two filler files with fixed ranking
// positions (1-based).
func (r *Registry) rankingSegment(ctx context.Context, day time.Weekday, state *selection.State, positions []int) Result {
	dayCode := blockfile.DayCode(day)
	result := Result{ProgramName: "Ranking do Dia"}

	fillers := []string{
		fmt.Sprintf("ABERTURA RANKING %s.MP3", dayCode),
		fmt.Sprintf("ENCERRAMENTO RANKING %s.MP3", dayCode),
	}
	for i, position := range positions {
		result.Tokens = append(result.Tokens, r.fileToken(fillers[i]))
		r.logFixed(state, &result, fillers[i])
		result.Tokens = append(result.Tokens, r.rankingToken(ctx, state, &result, position-1))
	}
	return result
}

// rankingToken resolves one ranking index to a token, wildcard on any miss.
func (r *Registry) rankingToken(ctx context.Context, state *selection.State, result *Result, index int) blockfile.Token {
	if index < 0 || index >= len(r.ranking) {
		return blockfile.WildcardToken(r.wildcard)
	}
	entry := r.ranking[index]
	check := r.resolver.Exists(ctx, entry.Artist, entry.Title)
	if !check.Exists {
		result.Logs = append(result.Logs, models.BlockLogEntry{
			BlockTime: state.BlockTime.Label(),
			Type:      models.BlockLogMissing,
			Title:     entry.Title,
			Artist:    entry.Artist,
			Reason:    "ranking entry not in library",
			CreatedAt: time.Now(),
		})
		return blockfile.WildcardToken(r.wildcard)
	}
	state.MarkUsed(entry.Title, entry.Artist)
	r.logUsed(state, result, entry.Title, entry.Artist, "", entry.Style)
	return r.fileToken(r.filenameOf(check, entry.Artist, entry.Title))
}

// topRankedBlock emits blockSongCount ranking entries starting at
// slotIndex*10, skipping recently used ones.
func (r *Registry) topRankedBlock(ctx context.Context, slotIndex int, state *selection.State) Result {
	result := Result{ProgramName: "As Mais Tocadas"}
	offset := slotIndex * 10

	picked := 0
	for i := offset; i < len(r.ranking) && picked < blockSongCount; i++ {
		entry := r.ranking[i]
		if !state.Eligible(entry.Title, entry.Artist) {
			continue
		}
		check := r.resolver.Exists(ctx, entry.Artist, entry.Title)
		if !check.Exists {
			continue
		}
		state.MarkUsed(entry.Title, entry.Artist)
		r.logUsed(state, &result, entry.Title, entry.Artist, "", entry.Style)
		result.Tokens = append(result.Tokens, r.fileToken(r.filenameOf(check, entry.Artist, entry.Title)))
		picked++
	}
	for picked < blockSongCount {
		result.Tokens = append(result.Tokens, blockfile.WildcardToken(r.wildcard))
		picked++
	}
	return result
}

// overnightMix pulls 10 shuffled songs from every station, verified in one
// batched library call.
func (r *Registry) overnightMix(ctx context.Context, state *selection.State) Result {
	const overnightCount = 10
	result := Result{ProgramName: "Madrugada Total"}

	candidates := r.pools.All()
	r.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	queries := make([]library.Query, 0, len(candidates))
	for _, c := range candidates {
		queries = append(queries, library.Query{Artist: c.Artist, Title: c.Title})
	}
	existence := r.resolver.ExistsBatch(ctx, queries)

	picked := 0
	for _, c := range candidates {
		if picked >= overnightCount {
			break
		}
		if !state.Eligible(c.Title, c.Artist) {
			continue
		}
		check := existence[library.Query{Artist: c.Artist, Title: c.Title}.Key()]
		if !check.Exists {
			continue
		}
		state.MarkUsed(c.Title, c.Artist)
		r.logUsed(state, &result, c.Title, c.Artist, c.Station, c.Style)
		result.Tokens = append(result.Tokens, r.fileToken(r.filenameOf(check, c.Artist, c.Title)))
		picked++
	}
	for picked < overnightCount {
		result.Tokens = append(result.Tokens, blockfile.WildcardToken(r.wildcard))
		picked++
	}
	return result
}

// alternatingMorning strictly alternates between the two configured morning
// stations, each with its own round-robin cursor and its own wildcard code.
func (r *Registry) alternatingMorning(ctx context.Context, state *selection.State) Result {
	result := Result{ProgramName: "Manhã Dupla"}
	stations := r.morningStations
	if len(stations) < 2 {
		for i := 0; i < blockSongCount*2; i++ {
			result.Tokens = append(result.Tokens, blockfile.WildcardToken(r.wildcard))
		}
		return result
	}

	wildcards := [2]string{r.wildcard, r.altWildcard}
	cursors := [2]int{}
	pools := [2][]models.SongEntry{
		r.pools.ByStation(stations[0]),
		r.pools.ByStation(stations[1]),
	}

	for position := 0; position < blockSongCount*2; position++ {
		side := position % 2
		token := blockfile.WildcardToken(wildcards[side])

		for cursors[side] < len(pools[side]) {
			entry := pools[side][cursors[side]]
			cursors[side]++
			if !state.Eligible(entry.Title, entry.Artist) {
				continue
			}
			check := r.resolver.Exists(ctx, entry.Artist, entry.Title)
			if !check.Exists {
				continue
			}
			state.MarkUsed(entry.Title, entry.Artist)
			r.logUsed(state, &result, entry.Title, entry.Artist, entry.Station, entry.Style)
			token = r.fileToken(r.filenameOf(check, entry.Artist, entry.Title))
			break
		}
		result.Tokens = append(result.Tokens, token)
	}
	return result
}

// folderSourced lists files from the configured folders, shuffles each
// folder's listing and interleaves folders round-robin. Artist and title come
// from splitting the filename on " - ".
func (r *Registry) folderSourced(programName string, folders []string, state *selection.State) Result {
	result := Result{ProgramName: programName}

	listings := make([][]string, 0, len(folders))
	for _, folder := range folders {
		files := library.ListAudioFiles(r.fs, folder)
		r.rng.Shuffle(len(files), func(i, j int) {
			files[i], files[j] = files[j], files[i]
		})
		if len(files) > 0 {
			listings = append(listings, files)
		}
	}

	picked := 0
	for round := 0; picked < blockSongCount; round++ {
		progressed := false
		for _, files := range listings {
			if picked >= blockSongCount {
				break
			}
			if round >= len(files) {
				continue
			}
			progressed = true
			filename := files[round]
			artist, title := splitFilename(filename)
			if !state.Eligible(title, artist) {
				continue
			}
			state.MarkUsed(title, artist)
			r.logUsed(state, &result, title, artist, "", "")
			result.Tokens = append(result.Tokens, r.fileToken(filename))
			picked++
		}
		if !progressed {
			break
		}
	}
	for picked < blockSongCount {
		result.Tokens = append(result.Tokens, blockfile.WildcardToken(r.wildcard))
		picked++
	}
	return result
}

// editionProgram plays the nightly edition: a lead-in whose name carries the
// rotating edition number (1-5) and the weekday, followed by folder songs.
// Only the first half-hour carries the lead-in.
func (r *Registry) editionProgram(day time.Weekday, date time.Time, leadIn bool, state *selection.State) Result {
	if !leadIn {
		result := r.folderSourced("Edição Especial", []string{r.editionFolder}, state)
		result.ProgramName = "Edição Especial"
		return result
	}

	edition := EditionNumber(date)
	leadFile := fmt.Sprintf("ED%d %s.MP3", edition, blockfile.DayCode(day))

	result := Result{ProgramName: "Edição Especial"}
	result.Tokens = append(result.Tokens, r.fileToken(leadFile))
	r.logFixed(state, &result, leadFile)

	songs := r.folderSourced("Edição Especial", []string{r.editionFolder}, state)
	result.Tokens = append(result.Tokens, songs.Tokens[:blockSongCount-1]...)
	result.Logs = append(result.Logs, songs.Logs...)
	return result
}

// EditionNumber derives the rotating 1-5 edition index from the date.
func EditionNumber(date time.Time) int {
	return (date.YearDay() % 5) + 1
}

func (r *Registry) logUsed(state *selection.State, result *Result, title, artist, station, style string) {
	result.Logs = append(result.Logs, models.BlockLogEntry{
		BlockTime: state.BlockTime.Label(),
		Type:      models.BlockLogUsed,
		Title:     title,
		Artist:    artist,
		Station:   station,
		Style:     style,
		CreatedAt: time.Now(),
	})
}

func (r *Registry) filenameOf(check library.Result, artist, title string) string {
	if check.Filename != "" {
		return check.Filename
	}
	return fmt.Sprintf("%s - %s.mp3", artist, title)
}

func splitFilename(filename string) (artist, title string) {
	base := filename
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	parts := strings.SplitN(base, " - ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "", strings.TrimSpace(base)
}
