/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/audiosolutions/gradefm/internal/events"
	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.BlockLogEntry{}, &models.BuildRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db, zerolog.Nop())
}

func TestRecordAndQuery(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	record := models.BuildRecord{
		BlockLabel:     "09:00",
		SlotsProcessed: 5,
		SlotsFound:     4,
		SlotsMissing:   1,
		ProgramName:    "PROGRAMACAO MUSICAL",
	}
	logs := []models.BlockLogEntry{
		{BlockTime: "09:00", Type: models.BlockLogUsed, Title: "Song A", Artist: "Artist X"},
		{BlockTime: "09:00", Type: models.BlockLogMissing, Title: "Song B", Artist: "Artist Y"},
	}
	if err := s.RecordBlock(ctx, record, logs); err != nil {
		t.Fatalf("RecordBlock() error = %v", err)
	}

	builds, err := s.Builds(ctx, 10)
	if err != nil {
		t.Fatalf("Builds() error = %v", err)
	}
	if len(builds) != 1 || builds[0].SlotsFound != 4 {
		t.Errorf("Builds() = %+v", builds)
	}

	missing, err := s.BlockLogs(ctx, BlockLogQuery{Type: models.BlockLogMissing})
	if err != nil {
		t.Fatalf("BlockLogs() error = %v", err)
	}
	if len(missing) != 1 || missing[0].Title != "Song B" {
		t.Errorf("BlockLogs(missing) = %+v", missing)
	}

	all, err := s.BlockLogs(ctx, BlockLogQuery{})
	if err != nil {
		t.Fatalf("BlockLogs() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("BlockLogs() = %d entries, want 2", len(all))
	}
}

func TestSinceFilter(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	old := models.BlockLogEntry{BlockTime: "08:00", Type: models.BlockLogUsed, Title: "old", CreatedAt: time.Now().Add(-2 * time.Hour)}
	recent := models.BlockLogEntry{BlockTime: "09:00", Type: models.BlockLogUsed, Title: "recent", CreatedAt: time.Now()}
	if err := s.RecordBlock(ctx, models.BuildRecord{BlockLabel: "09:00"}, []models.BlockLogEntry{old, recent}); err != nil {
		t.Fatalf("RecordBlock() error = %v", err)
	}

	entries, err := s.BlockLogs(ctx, BlockLogQuery{Since: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("BlockLogs() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "recent" {
		t.Errorf("BlockLogs(since) = %+v", entries)
	}
}

func TestSubscribeConsumesBlockEvents(t *testing.T) {
	s := testService(t)
	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Subscribe(ctx, bus)
	// Give the subscriber goroutine a moment to attach.
	time.Sleep(10 * time.Millisecond)

	bus.Publish(events.EventBlockBuilt, events.Payload{
		"record": models.BuildRecord{BlockLabel: "10:00", SlotsProcessed: 5},
		"logs":   []models.BlockLogEntry{{BlockTime: "10:00", Type: models.BlockLogUsed, Title: "t"}},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		builds, err := s.Builds(ctx, 10)
		if err == nil && len(builds) == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("block event never persisted")
}
