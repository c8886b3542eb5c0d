/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sequence

import (
	"testing"
	"time"

	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/audiosolutions/gradefm/internal/pool"
)

func seq(source string) models.SequenceList {
	return models.SequenceList{{Position: 1, RadioSource: source}}
}

func scheduled(id string, startH, startM, endH, endM, priority int, days ...int) models.ScheduledSequence {
	return models.ScheduledSequence{
		ID:          id,
		StartHour:   startH,
		StartMinute: startM,
		EndHour:     endH,
		EndMinute:   endM,
		WeekDays:    days,
		Sequence:    seq("override-" + id),
		Enabled:     true,
		Priority:    priority,
	}
}

func TestActiveSequencePrecedence(t *testing.T) {
	defaultSeq := seq("default")

	tests := []struct {
		name      string
		scheduled []models.ScheduledSequence
		at        models.HourMinute
		day       time.Weekday
		want      string
	}{
		{
			"weekday override wins inside window",
			[]models.ScheduledSequence{scheduled("a", 18, 0, 22, 0, 2, 1, 2, 3, 4, 5)},
			models.HourMinute{Hour: 19, Minute: 30}, time.Wednesday,
			"override-a",
		},
		{
			"weekday override skipped on sunday",
			[]models.ScheduledSequence{scheduled("a", 18, 0, 22, 0, 2, 1, 2, 3, 4, 5)},
			models.HourMinute{Hour: 19, Minute: 30}, time.Sunday,
			"default",
		},
		{
			"outside window uses default",
			[]models.ScheduledSequence{scheduled("a", 18, 0, 22, 0, 2)},
			models.HourMinute{Hour: 22, Minute: 0}, time.Wednesday,
			"default",
		},
		{
			"higher priority wins",
			[]models.ScheduledSequence{
				scheduled("low", 18, 0, 22, 0, 1),
				scheduled("high", 18, 0, 22, 0, 5),
			},
			models.HourMinute{Hour: 19, Minute: 0}, time.Monday,
			"override-high",
		},
		{
			"equal priority narrower window wins",
			[]models.ScheduledSequence{
				scheduled("wide", 12, 0, 23, 0, 3),
				scheduled("narrow", 18, 0, 20, 0, 3),
			},
			models.HourMinute{Hour: 19, Minute: 0}, time.Monday,
			"override-narrow",
		},
		{
			"equal priority equal window lexicographic id",
			[]models.ScheduledSequence{
				scheduled("bbb", 18, 0, 20, 0, 3),
				scheduled("aaa", 18, 0, 20, 0, 3),
			},
			models.HourMinute{Hour: 19, Minute: 0}, time.Monday,
			"override-aaa",
		},
		{
			"overnight wrap contains late evening",
			[]models.ScheduledSequence{scheduled("night", 23, 0, 5, 0, 1)},
			models.HourMinute{Hour: 23, Minute: 30}, time.Monday,
			"override-night",
		},
		{
			"overnight wrap contains early morning",
			[]models.ScheduledSequence{scheduled("night", 23, 0, 5, 0, 1)},
			models.HourMinute{Hour: 2, Minute: 0}, time.Tuesday,
			"override-night",
		},
		{
			"overnight wrap excludes daytime",
			[]models.ScheduledSequence{scheduled("night", 23, 0, 5, 0, 1)},
			models.HourMinute{Hour: 12, Minute: 0}, time.Monday,
			"default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActiveSequence(tt.scheduled, defaultSeq, tt.at, tt.day)
			if len(got) != 1 || got[0].RadioSource != tt.want {
				t.Errorf("ActiveSequence() = %+v, want source %q", got, tt.want)
			}
		})
	}
}

func TestResolveStation(t *testing.T) {
	pools := pool.StationPools{
		"BH FM":    {{Title: "a", Artist: "x", Station: "BH FM"}},
		"Itatiaia": {{Title: "b", Artist: "y", Station: "Itatiaia"}},
	}
	stations := []models.Station{
		{ID: "11111111-1111-1111-1111-111111111111", Name: "BH FM"},
	}

	tests := []struct {
		source      string
		wantStation string
		wantBy      ResolvedBy
	}{
		{"bh", "BH FM", ResolvedLegacy},
		{"11111111-1111-1111-1111-111111111111", "BH FM", ResolvedUUID},
		{"BH FM", "BH FM", ResolvedExact},
		{"bh fm", "BH FM", ResolvedCaseInsensitive},
		{"itatiaia am", "Itatiaia", ResolvedFuzzy},
		{"radio fantasma", "radio fantasma", ResolvedNone},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got := ResolveStation(tt.source, pools, stations)
			if got.StationName != tt.wantStation || got.ResolvedBy != tt.wantBy {
				t.Errorf("ResolveStation(%q) = {%s %s}, want {%s %s}",
					tt.source, got.StationName, got.ResolvedBy, tt.wantStation, tt.wantBy)
			}
			if tt.wantBy != ResolvedNone && len(got.Songs) == 0 {
				t.Errorf("ResolveStation(%q) returned empty pool", tt.source)
			}
			if tt.wantBy == ResolvedNone && len(got.Songs) != 0 {
				t.Errorf("unresolved source must return empty pool")
			}
		})
	}
}
