/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package builder drives grade generation: full-day and incremental builds,
// the recurring auto-build check, and day rollover. It owns the per-day
// mutable selection state; the single in-flight build invariant makes that
// state safe without further locking.
package builder

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiosolutions/gradefm/internal/blockfile"
	"github.com/audiosolutions/gradefm/internal/catalog"
	"github.com/audiosolutions/gradefm/internal/config"
	"github.com/audiosolutions/gradefm/internal/events"
	"github.com/audiosolutions/gradefm/internal/library"
	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/audiosolutions/gradefm/internal/pool"
	"github.com/audiosolutions/gradefm/internal/programs"
	"github.com/audiosolutions/gradefm/internal/rotation"
	"github.com/audiosolutions/gradefm/internal/selection"
	"github.com/audiosolutions/gradefm/internal/sequence"
	"github.com/audiosolutions/gradefm/internal/store"
	"github.com/audiosolutions/gradefm/internal/telemetry"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrBuildInFlight is returned when a build is triggered while one runs.
var ErrBuildInFlight = errors.New("builder: a build is already in flight")

const (
	blocksPerDay     = 48
	saveEvery        = 4
	interBlockPause  = 2 * time.Second
	forceBuildAfter  = 5 * time.Minute
	blockMinutes     = 30
	fallbackSlotSize = 5
)

// Mode labels a build for metrics and history.
type Mode string

const (
	ModeFullDay     Mode = "full_day"
	ModeIncremental Mode = "incremental"
)

// Deps wires an orchestrator.
type Deps struct {
	Config     *config.Config
	Store      *store.Store
	FS         afero.Fs
	Downloader catalog.Downloader
	Bus        *events.Bus
	Logger     zerolog.Logger

	// IsLeader gates the auto-build loop in multi-instance deployments.
	// Nil means always leader.
	IsLeader func() bool

	// Test hooks.
	Now   func() time.Time
	Pause time.Duration
	Rand  *rand.Rand
}

// Orchestrator is the build state machine.
type Orchestrator struct {
	cfg        *config.Config
	store      *store.Store
	fs         afero.Fs
	files      *blockfile.Files
	downloader catalog.Downloader
	resolver   *library.Resolver
	bus        *events.Bus
	logger     zerolog.Logger
	isLeader   func() bool
	now        func() time.Time
	pause      time.Duration
	rng        *rand.Rand

	mu        sync.Mutex
	building  bool
	lastBuild time.Time
	lastError string
	dayKey    string
	tracker   *rotation.Tracker
	carryOver *rotation.CarryOverQueue
	built     map[string]struct{}

	cron *cron.Cron
}

// New creates an orchestrator.
func New(deps Deps) *Orchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	pause := deps.Pause
	if pause == 0 {
		pause = interBlockPause
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	downloader := deps.Downloader
	if downloader == nil {
		downloader = catalog.Noop{}
	}
	isLeader := deps.IsLeader
	if isLeader == nil {
		isLeader = func() bool { return true }
	}

	logger := deps.Logger.With().Str("component", "builder").Logger()
	return &Orchestrator{
		cfg:        deps.Config,
		store:      deps.Store,
		fs:         deps.FS,
		files:      blockfile.NewFiles(deps.FS, deps.Config.OutputFolder),
		downloader: downloader,
		resolver:   library.NewResolver(library.NewLocalChecker(deps.FS, deps.Config.LibraryFolders), logger),
		bus:        deps.Bus,
		logger:     logger,
		isLeader:   isLeader,
		now:        now,
		pause:      pause,
		rng:        rng,
		tracker:    rotation.NewTracker(deps.Config.RepetitionMinutes),
		carryOver:  rotation.NewCarryOverQueue(),
		built:      make(map[string]struct{}),
	}
}

// Status is the orchestrator snapshot for the API.
type Status struct {
	Building     bool      `json:"building"`
	LastBuild    time.Time `json:"last_build"`
	LastError    string    `json:"last_error,omitempty"`
	NextBoundary string    `json:"next_boundary"`
	BuiltBlocks  int       `json:"built_blocks_today"`
	CarryOverLen int       `json:"carry_over_len"`
}

// Status reports the current orchestrator state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Building:     o.building,
		LastBuild:    o.lastBuild,
		LastError:    o.lastError,
		NextBoundary: nextBoundary(o.now()).Format("15:04"),
		BuiltBlocks:  len(o.built),
		CarryOverLen: o.carryOver.Len(),
	}
}

// acquire flips the building flag; a second trigger is refused, not queued.
func (o *Orchestrator) acquire() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.building {
		return ErrBuildInFlight
	}
	o.building = true
	o.rolloverIfNeededLocked()
	return nil
}

func (o *Orchestrator) release(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.building = false
	o.lastBuild = o.now()
	if err != nil {
		o.lastError = err.Error()
	} else {
		o.lastError = ""
	}
}

func dayKeyOf(t time.Time) string {
	return t.Format("2006-01-02")
}

func (o *Orchestrator) rolloverIfNeededLocked() {
	key := dayKeyOf(o.now())
	if o.dayKey == key {
		return
	}
	if o.dayKey != "" {
		o.logger.Info().Str("day", key).Msg("day rollover, clearing selection state")
		o.bus.Publish(events.EventDayRollover, events.Payload{"day": key})
	}
	o.dayKey = key
	o.tracker.Clear()
	o.carryOver.Clear()
	o.built = make(map[string]struct{})
}

// snapshot is one build's frozen view of configuration and song data.
type snapshot struct {
	settings  models.Settings
	stations  []models.Station
	sequences []models.ScheduledSequence
	fixed     []models.FixedContentItem
	pools     pool.StationPools
	ranking   []models.RankingSong
	engine    *selection.Engine
	programs  *programs.Registry
}

func (o *Orchestrator) loadSnapshot(ctx context.Context) (*snapshot, error) {
	settings, err := o.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	stations, err := o.store.StationsWithFallback(ctx, o.cfg.StationsFile)
	if err != nil {
		return nil, err
	}
	sequences, err := o.store.ScheduledSequences(ctx)
	if err != nil {
		return nil, err
	}
	fixed, err := o.store.FixedContent(ctx)
	if err != nil {
		return nil, err
	}
	songs, err := o.store.RecentSongs(ctx)
	if err != nil {
		return nil, err
	}
	ranking, err := o.store.Ranking(ctx)
	if err != nil {
		return nil, err
	}

	pools := pool.Build(songs, stations)
	snap := &snapshot{
		settings:  settings,
		stations:  stations,
		sequences: sequences,
		fixed:     fixed,
		pools:     pools,
		ranking:   ranking,
	}
	snap.engine = selection.NewEngine(selection.Deps{
		Resolver:        o.resolver,
		Downloader:      o.downloader,
		Pools:           pools,
		Stations:        stations,
		Ranking:         ranking,
		Settings:        settings,
		DownloadFolder:  o.cfg.DownloadFolder,
		Quality:         o.cfg.CatalogQuality,
		JITPerCandidate: o.cfg.JITPerCandidate,
		Rand:            o.rng,
		Logger:          o.logger,
	})
	snap.programs = programs.NewRegistry(programs.Deps{
		FS:               o.fs,
		Resolver:         o.resolver,
		Pools:            pools,
		Ranking:          ranking,
		Settings:         settings,
		MorningStations:  o.cfg.MorningStations,
		HappyHourFolders: o.cfg.HappyHourFolders,
		LateNightFolders: o.cfg.LateNightFolders,
		EditionFolder:    o.cfg.EditionFolder,
		Rand:             o.rng,
		Logger:           o.logger,
	})
	return snap, nil
}

// blockOutcome is one generated block plus its audit trail.
type blockOutcome struct {
	line   string
	record models.BuildRecord
	logs   []models.BlockLogEntry
}

// buildBlock generates one block: a special program when the time owns one,
// otherwise the slot-by-slot selection chain plus fixed-content insertion.
func (o *Orchestrator) buildBlock(ctx context.Context, snap *snapshot, at models.HourMinute, date time.Time, fullDay bool) blockOutcome {
	day := date.Weekday()
	state := selection.NewBlockState(o.tracker, o.carryOver, at, o.now(), fullDay)

	programName := o.cfg.GradeName
	var tokens []blockfile.Token

	if result, special := snap.programs.Generate(ctx, at, day, date, state); special {
		programName = result.ProgramName
		tokens = result.Tokens
		state.Logs = append(state.Logs, result.Logs...)
	} else {
		slots := sequence.ActiveSequence(snap.sequences, snap.settings.DefaultSequence, at, day)
		if len(slots) == 0 {
			// No configured rotation at all: degrade to wildcards.
			for i := 0; i < fallbackSlotSize; i++ {
				slots = append(slots, models.SequenceSlot{Position: i + 1, RadioSource: models.SourceRandomPool})
			}
		}
		ordered := make(models.SequenceList, len(slots))
		copy(ordered, slots)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

		for _, slot := range ordered {
			song := snap.engine.SelectSongForSlot(ctx, slot, state)
			if song.Wildcard {
				tokens = append(tokens, blockfile.WildcardToken(song.Filename))
				continue
			}
			name := blockfile.EnsureExtension(blockfile.Sanitize(song.Filename, snap.settings.FilterChars))
			tokens = append(tokens, blockfile.FileToken(name))
		}
		tokens = o.insertFixedContent(snap, at, day, tokens, state)
	}

	found, missing := 0, 0
	for _, tok := range tokens {
		if tok.Wildcard {
			missing++
		} else {
			found++
		}
	}

	return blockOutcome{
		line: blockfile.FormatLine(at, programName, tokens),
		record: models.BuildRecord{
			Timestamp:      o.now(),
			BlockLabel:     at.Label(),
			SlotsProcessed: len(tokens),
			SlotsFound:     found,
			SlotsMissing:   missing,
			ProgramName:    programName,
		},
		logs: state.Logs,
	}
}

func (o *Orchestrator) insertFixedContent(snap *snapshot, at models.HourMinute, day time.Weekday, tokens []blockfile.Token, state *selection.State) []blockfile.Token {
	for _, item := range snap.fixed {
		if !item.AppliesOn(day) {
			continue
		}
		for _, slot := range item.TimeSlots {
			if slot.MinuteOfDay() != at.MinuteOfDay() {
				continue
			}
			name := blockfile.EnsureExtension(blockfile.Sanitize(item.FileName, snap.settings.FilterChars))
			tokens = blockfile.InsertAt(tokens, blockfile.FileToken(name), item.Position)
			state.Logs = append(state.Logs, models.BlockLogEntry{
				BlockTime: at.Label(),
				Type:      models.BlockLogFixed,
				Title:     item.Name,
				Reason:    string(item.Type),
				CreatedAt: time.Now(),
			})
			break
		}
	}
	return tokens
}

func (o *Orchestrator) publishBlock(outcome blockOutcome) {
	o.bus.Publish(events.EventBlockBuilt, events.Payload{
		"record": outcome.record,
		"logs":   outcome.logs,
	})
}

// BuildFullDay generates all 48 blocks of the given date's weekday, saving
// progressively every 4 blocks so a crash leaves a valid partial file.
func (o *Orchestrator) BuildFullDay(ctx context.Context) error {
	if err := o.acquire(); err != nil {
		return err
	}
	started := o.now()
	o.bus.Publish(events.EventBuildStarted, events.Payload{"mode": string(ModeFullDay)})

	err := o.buildFullDay(ctx, started)
	o.release(err)
	o.observeBuild(ModeFullDay, started, err)
	return err
}

func (o *Orchestrator) buildFullDay(ctx context.Context, date time.Time) error {
	snap, err := o.loadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load build inputs: %w", err)
	}

	day := date.Weekday()
	content := blockfile.DayContent{}

	for i := 0; i < blocksPerDay; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		at := models.HourMinute{Hour: i / 2, Minute: (i % 2) * blockMinutes}
		outcome := o.buildBlock(ctx, snap, at, date, true)
		content[at.Label()] = outcome.line
		o.markBuilt(day, at)
		o.publishBlock(outcome)

		if (i+1)%saveEvery == 0 {
			if err := o.files.Write(day, content); err != nil {
				return fmt.Errorf("progressive save: %w", err)
			}
		}
		if i < blocksPerDay-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.pause):
			}
		}
	}

	if err := o.files.Write(day, content); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	o.logger.Info().Str("day", blockfile.DayCode(day)).Msg("full day grade written")
	return nil
}

// BuildIncremental regenerates the current and next block and merges them
// into the persisted day file(s).
func (o *Orchestrator) BuildIncremental(ctx context.Context) error {
	if err := o.acquire(); err != nil {
		return err
	}
	started := o.now()
	o.bus.Publish(events.EventBuildStarted, events.Payload{"mode": string(ModeIncremental)})

	err := o.buildIncremental(ctx, started)
	o.release(err)
	o.observeBuild(ModeIncremental, started, err)
	return err
}

func (o *Orchestrator) buildIncremental(ctx context.Context, now time.Time) error {
	snap, err := o.loadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load build inputs: %w", err)
	}

	current := blockStart(now)
	boundaries := []time.Time{current, current.Add(blockMinutes * time.Minute)}

	updates := make(map[time.Weekday]map[string]string)
	for _, boundary := range boundaries {
		at := models.HourMinute{Hour: boundary.Hour(), Minute: boundary.Minute()}
		outcome := o.buildBlock(ctx, snap, at, boundary, false)

		day := boundary.Weekday()
		if updates[day] == nil {
			updates[day] = make(map[string]string)
		}
		updates[day][at.Label()] = outcome.line
		o.markBuilt(day, at)
		o.publishBlock(outcome)
	}

	for day, lines := range updates {
		existing, err := o.files.Read(day)
		if err != nil {
			return fmt.Errorf("read day file: %w", err)
		}
		if err := o.files.Write(day, blockfile.Merge(existing, lines)); err != nil {
			return fmt.Errorf("merge day file: %w", err)
		}
	}
	o.logger.Info().Str("block", models.HourMinute{Hour: current.Hour(), Minute: current.Minute()}.Label()).
		Msg("incremental build merged")
	return nil
}

func (o *Orchestrator) observeBuild(mode Mode, started time.Time, err error) {
	outcome := "success"
	event := events.EventBuildCompleted
	if err != nil {
		outcome = "failure"
		event = events.EventBuildFailed
	}
	telemetry.BuildsTotal.WithLabelValues(string(mode), outcome).Inc()
	telemetry.BuildDuration.WithLabelValues(string(mode)).Observe(time.Since(started).Seconds())

	payload := events.Payload{"mode": string(mode)}
	if err != nil {
		payload["error"] = err.Error()
		o.logger.Error().Err(err).Str("mode", string(mode)).Msg("build failed")
	}
	o.bus.Publish(event, payload)
}

func (o *Orchestrator) markBuilt(day time.Weekday, at models.HourMinute) {
	o.mu.Lock()
	o.built[boundaryKey(day, at)] = struct{}{}
	o.mu.Unlock()
}

func (o *Orchestrator) wasBuilt(day time.Weekday, at models.HourMinute) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.built[boundaryKey(day, at)]
	return ok
}

func boundaryKey(day time.Weekday, at models.HourMinute) string {
	return strings.ToUpper(blockfile.DayCode(day)) + "|" + at.Label()
}

// blockStart truncates a wall-clock instant to its 30-minute boundary.
func blockStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), (t.Minute()/blockMinutes)*blockMinutes, 0, 0, t.Location())
}

// nextBoundary returns the next 30-minute boundary after t.
func nextBoundary(t time.Time) time.Time {
	return blockStart(t).Add(blockMinutes * time.Minute)
}

// AutoTick is one pass of the auto-build check: build the upcoming block when
// inside the lead window, and force a build when none ran for five minutes.
func (o *Orchestrator) AutoTick(ctx context.Context) {
	telemetry.AutoBuildTicksTotal.Inc()
	if !o.isLeader() {
		return
	}

	now := o.now()
	o.mu.Lock()
	o.rolloverIfNeededLocked()
	lastBuild := o.lastBuild
	o.mu.Unlock()

	boundary := nextBoundary(now)
	at := models.HourMinute{Hour: boundary.Hour(), Minute: boundary.Minute()}
	withinLead := boundary.Sub(now) <= o.cfg.LeadDuration()

	switch {
	case withinLead && !o.wasBuilt(boundary.Weekday(), at):
		o.logger.Debug().Str("boundary", at.Label()).Msg("lead window reached, building")
		o.runAutoBuild(ctx)
	case !lastBuild.IsZero() && now.Sub(lastBuild) >= forceBuildAfter:
		o.logger.Debug().Msg("no build for five minutes, forcing one")
		o.runAutoBuild(ctx)
	case lastBuild.IsZero():
		o.runAutoBuild(ctx)
	}
}

func (o *Orchestrator) runAutoBuild(ctx context.Context) {
	if err := o.BuildIncremental(ctx); err != nil && !errors.Is(err, ErrBuildInFlight) {
		o.logger.Error().Err(err).Msg("auto build failed")
	}
}

// StartAutoBuild schedules the 30-second auto-build check and the midnight
// rollover job. Stop with StopAutoBuild.
func (o *Orchestrator) StartAutoBuild(ctx context.Context) error {
	o.cron = cron.New()
	if _, err := o.cron.AddFunc("@every 30s", func() { o.AutoTick(ctx) }); err != nil {
		return fmt.Errorf("schedule auto-build: %w", err)
	}
	if _, err := o.cron.AddFunc("0 0 * * *", func() {
		o.mu.Lock()
		o.rolloverIfNeededLocked()
		o.mu.Unlock()
	}); err != nil {
		return fmt.Errorf("schedule rollover: %w", err)
	}
	o.cron.Start()
	o.logger.Info().Msg("auto-build loop started")
	return nil
}

// StopAutoBuild stops the scheduled jobs, waiting for a running one.
func (o *Orchestrator) StopAutoBuild() {
	if o.cron != nil {
		<-o.cron.Stop().Done()
	}
}

// ReadGrade returns the raw grade file for a weekday, for the API surface.
func (o *Orchestrator) ReadGrade(day time.Weekday) (string, error) {
	return o.files.ReadRaw(day)
}
