/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audit persists the per-slot decision trail and the coarse build
// history. It consumes block events from the bus so the build path never
// blocks on database writes.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/audiosolutions/gradefm/internal/events"
	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Service writes and queries audit rows.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewService creates an audit service.
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// RecordBlock persists one block's build record and slot logs.
func (s *Service) RecordBlock(ctx context.Context, record models.BuildRecord, logs []models.BlockLogEntry) error {
	record.ID = uuid.NewString()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("record build: %w", err)
	}

	for i := range logs {
		logs[i].ID = uuid.NewString()
		if logs[i].CreatedAt.IsZero() {
			logs[i].CreatedAt = time.Now()
		}
	}
	if len(logs) > 0 {
		if err := s.db.WithContext(ctx).Create(&logs).Error; err != nil {
			return fmt.Errorf("record block logs: %w", err)
		}
	}
	return nil
}

// BlockLogQuery filters the slot log listing.
type BlockLogQuery struct {
	Since time.Time
	Type  models.BlockLogType
	Limit int
}

// BlockLogs returns slot log entries, newest first.
func (s *Service) BlockLogs(ctx context.Context, q BlockLogQuery) ([]models.BlockLogEntry, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	tx := s.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if !q.Since.IsZero() {
		tx = tx.Where("created_at >= ?", q.Since)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}

	var entries []models.BlockLogEntry
	if err := tx.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list block logs: %w", err)
	}
	return entries, nil
}

// Builds returns build history, newest first.
func (s *Service) Builds(ctx context.Context, limit int) ([]models.BuildRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []models.BuildRecord
	err := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	return records, nil
}

// Subscribe consumes block-built events until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe(events.EventBlockBuilt)
	go func() {
		defer bus.Unsubscribe(events.EventBlockBuilt, sub)
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub:
				if !ok {
					return
				}
				s.consume(ctx, payload)
			}
		}
	}()
}

func (s *Service) consume(ctx context.Context, payload events.Payload) {
	record, ok := payload["record"].(models.BuildRecord)
	if !ok {
		s.logger.Warn().Msg("block event without build record")
		return
	}
	logs, _ := payload["logs"].([]models.BlockLogEntry)
	if err := s.RecordBlock(ctx, record, logs); err != nil {
		s.logger.Error().Err(err).Str("block", record.BlockLabel).Msg("audit write failed")
	}
}
