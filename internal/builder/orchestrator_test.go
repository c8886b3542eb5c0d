/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package builder

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/audiosolutions/gradefm/internal/config"
	"github.com/audiosolutions/gradefm/internal/events"
	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/audiosolutions/gradefm/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testStore(t *testing.T) (*store.Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Station{},
		&models.ScheduledSequence{},
		&models.FixedContentItem{},
		&models.ScrapedSong{},
		&models.RankingSong{},
		&models.Settings{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db, zerolog.Nop()), db
}

func testConfig() *config.Config {
	return &config.Config{
		OutputFolder:      "/grade",
		GradeName:         "PROGRAMACAO MUSICAL",
		LibraryFolders:    []string{"/musicas"},
		MorningStations:   []string{"BH FM", "Itatiaia"},
		LeadMinutes:       10,
		RepetitionMinutes: 60,
	}
}

// fixedNow pins the clock to a Wednesday morning.
var fixedNow = time.Date(2026, 8, 26, 9, 10, 0, 0, time.UTC)

func testOrchestrator(t *testing.T, seed func(db *gorm.DB, fs afero.Fs)) *Orchestrator {
	t.Helper()
	st, db := testStore(t)
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/musicas", 0o755)
	if seed != nil {
		seed(db, fs)
	}
	return New(Deps{
		Config: testConfig(),
		Store:  st,
		FS:     fs,
		Bus:    events.NewBus(),
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return fixedNow },
		Pause:  time.Nanosecond,
		Rand:   rand.New(rand.NewSource(3)),
	})
}

func seedScenario(db *gorm.DB, fs afero.Fs) {
	db.Create(&models.Settings{
		ID:           1,
		WildcardCode: "vh",
		DefaultSequence: models.SequenceList{
			{Position: 1, RadioSource: "bh"},
		},
	})
	db.Create(&models.Station{ID: "11111111-1111-1111-1111-111111111111", Name: "BH FM", Enabled: true})
	db.Create(&models.ScrapedSong{StationName: "BH FM", Title: "Song A", Artist: "Artist X", CreatedAt: fixedNow.Add(-time.Hour)})
	afero.WriteFile(fs, "/musicas/Artist X - Song A.mp3", []byte("x"), 0o644)
}

func TestIncrementalBuildScenario(t *testing.T) {
	o := testOrchestrator(t, seedScenario)

	if err := o.BuildIncremental(context.Background()); err != nil {
		t.Fatalf("BuildIncremental() error = %v", err)
	}

	raw, err := o.ReadGrade(time.Wednesday)
	if err != nil {
		t.Fatalf("ReadGrade() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %v, want current and next block", lines)
	}
	if !strings.HasPrefix(lines[0], "09:00 (ID=PROGRAMACAO MUSICAL) ") {
		t.Errorf("current block = %q", lines[0])
	}
	if !strings.Contains(lines[0], `"ARTIST X - SONG A.MP3"`) {
		t.Errorf("scenario song not selected: %q", lines[0])
	}
	// The same artist cannot repeat inside the 60-minute window, so the
	// 09:30 block falls through to the wildcard.
	if !strings.Contains(lines[1], "vh") {
		t.Errorf("next block = %q, want wildcard fallthrough", lines[1])
	}
}

func TestIncrementalMergePreservesOtherBlocks(t *testing.T) {
	o := testOrchestrator(t, func(db *gorm.DB, fs afero.Fs) {
		seedScenario(db, fs)
		existing := `08:00 (ID=OLD) "KEEP ME.MP3"` + "\n"
		fs.MkdirAll("/grade", 0o755)
		afero.WriteFile(fs, "/grade/QUA.txt", []byte(existing), 0o644)
	})

	if err := o.BuildIncremental(context.Background()); err != nil {
		t.Fatalf("BuildIncremental() error = %v", err)
	}

	raw, _ := o.ReadGrade(time.Wednesday)
	if !strings.Contains(raw, `08:00 (ID=OLD) "KEEP ME.MP3"`) {
		t.Errorf("pre-existing block clobbered:\n%s", raw)
	}
	if !strings.Contains(raw, "09:00 ") || !strings.Contains(raw, "09:30 ") {
		t.Errorf("merged blocks missing:\n%s", raw)
	}
	// Sorted ascending by time.
	if strings.Index(raw, "08:00") > strings.Index(raw, "09:00") {
		t.Errorf("lines not sorted:\n%s", raw)
	}
}

func TestFullDayBuildWrites48SortedLines(t *testing.T) {
	o := testOrchestrator(t, seedScenario)

	if err := o.BuildFullDay(context.Background()); err != nil {
		t.Fatalf("BuildFullDay() error = %v", err)
	}

	raw, err := o.ReadGrade(time.Wednesday)
	if err != nil {
		t.Fatalf("ReadGrade() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) != 48 {
		t.Fatalf("lines = %d, want 48", len(lines))
	}
	if !strings.HasPrefix(lines[0], "00:00 ") || !strings.HasPrefix(lines[47], "23:30 ") {
		t.Errorf("boundary lines = %q, %q", lines[0], lines[47])
	}
	for i := 1; i < len(lines); i++ {
		if lines[i-1][:5] >= lines[i][:5] {
			t.Fatalf("lines not sorted at %d: %q >= %q", i, lines[i-1][:5], lines[i][:5])
		}
	}
	// Wednesday 21:00 is the civic block, never sanitized.
	var civic string
	for _, line := range lines {
		if strings.HasPrefix(line, "21:00 ") {
			civic = line
		}
	}
	if !strings.Contains(civic, `"A Voz do Brasil.mp3"`) {
		t.Errorf("civic line = %q", civic)
	}
}

func TestSecondTriggerRefusedWhileBuilding(t *testing.T) {
	o := testOrchestrator(t, seedScenario)

	if err := o.acquire(); err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	if err := o.BuildIncremental(context.Background()); !errors.Is(err, ErrBuildInFlight) {
		t.Errorf("err = %v, want ErrBuildInFlight", err)
	}
	o.release(nil)

	if err := o.BuildIncremental(context.Background()); err != nil {
		t.Errorf("build after release error = %v", err)
	}
}

func TestFixedContentInsertion(t *testing.T) {
	o := testOrchestrator(t, func(db *gorm.DB, fs afero.Fs) {
		seedScenario(db, fs)
		db.Create(&models.FixedContentItem{
			ID:         "33333333-3333-3333-3333-333333333333",
			Name:       "Jornal da Manhã",
			FileName:   "jornal da manhã.mp3",
			Type:       models.FixedTypeNews,
			DayPattern: "weekday",
			TimeSlots:  models.TimeSlotList{{Hour: 9, Minute: 0}},
			Position:   "start",
			Enabled:    true,
		})
	})

	if err := o.BuildIncremental(context.Background()); err != nil {
		t.Fatalf("BuildIncremental() error = %v", err)
	}

	raw, _ := o.ReadGrade(time.Wednesday)
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if !strings.HasPrefix(line, "09:00 ") {
			continue
		}
		if !strings.Contains(line, `(ID=PROGRAMACAO MUSICAL) "JORNAL DA MANHA.MP3"`) {
			t.Errorf("fixed insert not at start: %q", line)
		}
		return
	}
	t.Fatal("09:00 block missing")
}

func TestAutoTickBuildsInsideLeadWindow(t *testing.T) {
	o := testOrchestrator(t, seedScenario)

	// 09:10 with a 10-minute lead: next boundary 09:30 is 20 minutes out,
	// but the very first tick builds unconditionally.
	o.AutoTick(context.Background())
	if o.Status().BuiltBlocks == 0 {
		t.Fatal("first tick must run a build")
	}
	built := o.Status().BuiltBlocks

	// Second tick: boundary already built, last build just happened.
	o.AutoTick(context.Background())
	if o.Status().BuiltBlocks != built {
		t.Error("tick outside lead window must not rebuild")
	}
}

func TestStatusReflectsState(t *testing.T) {
	o := testOrchestrator(t, seedScenario)
	status := o.Status()
	if status.Building {
		t.Error("fresh orchestrator must be idle")
	}
	if status.NextBoundary != "09:30" {
		t.Errorf("NextBoundary = %q, want 09:30", status.NextBoundary)
	}
}
