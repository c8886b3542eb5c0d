/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"time"

	"github.com/audiosolutions/gradefm/internal/telemetry"
	"gorm.io/gorm"
)

const startTimeKey = "gorm:start_time"

// RegisterCallbacks registers telemetry callbacks for gorm operations.
func RegisterCallbacks(db *gorm.DB) error {
	type hook struct {
		name     string
		register func(before, after string, fn func(*gorm.DB)) error
	}

	hooks := []hook{
		{"query", func(before, after string, fn func(*gorm.DB)) error {
			if err := db.Callback().Query().Before("gorm:query").Register(before, markStart); err != nil {
				return err
			}
			return db.Callback().Query().After("gorm:query").Register(after, fn)
		}},
		{"create", func(before, after string, fn func(*gorm.DB)) error {
			if err := db.Callback().Create().Before("gorm:create").Register(before, markStart); err != nil {
				return err
			}
			return db.Callback().Create().After("gorm:create").Register(after, fn)
		}},
		{"update", func(before, after string, fn func(*gorm.DB)) error {
			if err := db.Callback().Update().Before("gorm:update").Register(before, markStart); err != nil {
				return err
			}
			return db.Callback().Update().After("gorm:update").Register(after, fn)
		}},
		{"delete", func(before, after string, fn func(*gorm.DB)) error {
			if err := db.Callback().Delete().Before("gorm:delete").Register(before, markStart); err != nil {
				return err
			}
			return db.Callback().Delete().After("gorm:delete").Register(after, fn)
		}},
	}

	for _, h := range hooks {
		if err := h.register("telemetry:before_"+h.name, "telemetry:after_"+h.name, observe(h.name)); err != nil {
			return err
		}
	}
	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		raw, ok := db.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		start, ok := raw.(time.Time)
		if !ok {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())

		if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation).Inc()
		}
	}
}
