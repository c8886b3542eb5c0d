package db

import (
	"github.com/audiosolutions/gradefm/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema for all persisted models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Station{},
		&models.ScheduledSequence{},
		&models.FixedContentItem{},
		&models.ScrapedSong{},
		&models.RankingSong{},
		&models.BlockLogEntry{},
		&models.BuildRecord{},
		&models.Settings{},
	)
}
