/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store exposes the persisted configuration and the observed-song
// source over gorm. The engine only reads through this package; the scraper
// and the admin tooling own the writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const (
	// RecentSongLimit bounds how many observed rows feed pool construction.
	RecentSongLimit = 2000
)

var (
	ErrNoSettings = errors.New("store: settings row not found")
)

// Store reads configuration and song data.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a store over the given database handle.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// Settings loads the single settings row with defaults applied. A missing row
// returns defaults rather than an error so a fresh install can build grades.
func (s *Store) Settings(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	err := s.db.WithContext(ctx).First(&settings, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Msg("no settings row, using defaults")
		return models.Settings{}.Normalized(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings.Normalized(), nil
}

// SaveSettings upserts the settings row.
func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	settings.ID = 1
	if err := s.db.WithContext(ctx).Save(&settings).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Stations returns enabled stations.
func (s *Store) Stations(ctx context.Context) ([]models.Station, error) {
	var stations []models.Station
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("name").
		Find(&stations).Error
	if err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}
	return stations, nil
}

// ScheduledSequences returns enabled scheduled sequences.
func (s *Store) ScheduledSequences(ctx context.Context) ([]models.ScheduledSequence, error) {
	var sequences []models.ScheduledSequence
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("priority desc").
		Find(&sequences).Error
	if err != nil {
		return nil, fmt.Errorf("load scheduled sequences: %w", err)
	}
	return sequences, nil
}

// FixedContent returns enabled fixed-content items.
func (s *Store) FixedContent(ctx context.Context) ([]models.FixedContentItem, error) {
	var items []models.FixedContentItem
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load fixed content: %w", err)
	}
	return items, nil
}

// RecentSongs returns the most recently observed songs, newest first, capped
// at RecentSongLimit.
func (s *Store) RecentSongs(ctx context.Context) ([]models.ScrapedSong, error) {
	var songs []models.ScrapedSong
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Limit(RecentSongLimit).
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("load recent songs: %w", err)
	}
	return songs, nil
}

// Ranking returns the popularity snapshot sorted by plays descending.
func (s *Store) Ranking(ctx context.Context) ([]models.RankingSong, error) {
	var ranking []models.RankingSong
	err := s.db.WithContext(ctx).
		Order("plays desc").
		Find(&ranking).Error
	if err != nil {
		return nil, fmt.Errorf("load ranking: %w", err)
	}
	return ranking, nil
}

// stationsFile mirrors the YAML fallback shape.
type stationsFile struct {
	Stations []struct {
		ID        string   `yaml:"id"`
		Name      string   `yaml:"name"`
		ShortCode string   `yaml:"short_code"`
		Styles    []string `yaml:"styles"`
		ScrapeURL string   `yaml:"scrape_url"`
	} `yaml:"stations"`
}

// LoadStationsFallback reads stations from a YAML file. Used when the
// database holds no stations yet, typically on first deployment.
func LoadStationsFallback(path string) ([]models.Station, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}

	var file stationsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse stations file: %w", err)
	}

	stations := make([]models.Station, 0, len(file.Stations))
	for _, entry := range file.Stations {
		stations = append(stations, models.Station{
			ID:        entry.ID,
			Name:      entry.Name,
			ShortCode: entry.ShortCode,
			Styles:    entry.Styles,
			ScrapeURL: entry.ScrapeURL,
			Enabled:   true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		})
	}
	return stations, nil
}

// StationsWithFallback returns database stations, falling back to the YAML
// file when the database has none and a path is configured.
func (s *Store) StationsWithFallback(ctx context.Context, fallbackPath string) ([]models.Station, error) {
	stations, err := s.Stations(ctx)
	if err != nil {
		return nil, err
	}
	if len(stations) > 0 || fallbackPath == "" {
		return stations, nil
	}

	s.logger.Info().Str("path", fallbackPath).Msg("no stations in database, loading fallback file")
	fallback, err := LoadStationsFallback(fallbackPath)
	if err != nil {
		s.logger.Warn().Err(err).Msg("stations fallback unavailable")
		return stations, nil
	}
	return fallback, nil
}
