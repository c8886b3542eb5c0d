/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
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
	return db
}

func TestSettingsDefaultsWhenMissing(t *testing.T) {
	s := New(testDB(t), zerolog.Nop())

	settings, err := s.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if settings.WildcardCode != "vh" {
		t.Errorf("WildcardCode = %q, want vh", settings.WildcardCode)
	}
	if settings.RepetitionMinutes != 60 {
		t.Errorf("RepetitionMinutes = %d, want 60", settings.RepetitionMinutes)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := New(testDB(t), zerolog.Nop())
	ctx := context.Background()

	in := models.Settings{
		WildcardCode:      "xx",
		OutputFolder:      "/tmp/grades",
		LibraryFolders:    models.StringList{"/music/a", "/music/b"},
		RepetitionMinutes: 45,
		DefaultSequence: models.SequenceList{
			{Position: 1, RadioSource: "BH FM"},
			{Position: 2, RadioSource: models.SourceRandomPool},
		},
	}
	if err := s.SaveSettings(ctx, in); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	out, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if out.WildcardCode != "xx" || out.RepetitionMinutes != 45 {
		t.Errorf("settings not persisted: %+v", out)
	}
	if len(out.DefaultSequence) != 2 || out.DefaultSequence[1].RadioSource != models.SourceRandomPool {
		t.Errorf("DefaultSequence = %+v", out.DefaultSequence)
	}
	if len(out.LibraryFolders) != 2 {
		t.Errorf("LibraryFolders = %+v", out.LibraryFolders)
	}
}

func TestStationsFiltersDisabled(t *testing.T) {
	db := testDB(t)
	db.Create(&models.Station{ID: "11111111-1111-1111-1111-111111111111", Name: "BH FM", Enabled: true})
	db.Create(&models.Station{ID: "22222222-2222-2222-2222-222222222222", Name: "Extinta FM", Enabled: false})

	s := New(db, zerolog.Nop())
	stations, err := s.Stations(context.Background())
	if err != nil {
		t.Fatalf("Stations() error = %v", err)
	}
	if len(stations) != 1 || stations[0].Name != "BH FM" {
		t.Errorf("Stations() = %+v, want only BH FM", stations)
	}
}

func TestRecentSongsOrderedNewestFirst(t *testing.T) {
	db := testDB(t)
	base := time.Now()
	db.Create(&models.ScrapedSong{StationName: "BH FM", Title: "old", Artist: "a", CreatedAt: base.Add(-time.Hour)})
	db.Create(&models.ScrapedSong{StationName: "BH FM", Title: "new", Artist: "b", CreatedAt: base})

	s := New(db, zerolog.Nop())
	songs, err := s.RecentSongs(context.Background())
	if err != nil {
		t.Fatalf("RecentSongs() error = %v", err)
	}
	if len(songs) != 2 || songs[0].Title != "new" {
		t.Errorf("RecentSongs() = %+v, want newest first", songs)
	}
}

func TestStationsWithFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stations.yaml")
	content := `stations:
  - id: 11111111-1111-1111-1111-111111111111
    name: BH FM
    short_code: bh
    styles: [popular]
  - id: 22222222-2222-2222-2222-222222222222
    name: Itatiaia
    short_code: ita
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s := New(testDB(t), zerolog.Nop())
	stations, err := s.StationsWithFallback(context.Background(), path)
	if err != nil {
		t.Fatalf("StationsWithFallback() error = %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("got %d stations, want 2", len(stations))
	}
	if stations[0].Name != "BH FM" || stations[0].Style() != "popular" {
		t.Errorf("first station = %+v", stations[0])
	}
}
