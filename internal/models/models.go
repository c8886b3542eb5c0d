package models

import (
	"fmt"
	"strings"
	"time"
)

// Station is a monitored source feed whose recently observed songs form a
// selection pool.
type Station struct {
	ID        string     `gorm:"type:uuid;primaryKey"`
	Name      string     `gorm:"uniqueIndex"`
	ShortCode string     `gorm:"type:varchar(16);index"`
	Styles    StringList `gorm:"serializer:json"`
	ScrapeURL string
	Enabled   bool `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Style returns the station's primary style tag, or empty.
func (s Station) Style() string {
	if len(s.Styles) == 0 {
		return ""
	}
	return s.Styles[0]
}

// StringList is a JSON-serialized string slice column.
type StringList []string

// Reserved radio source tokens understood by the sequence resolver in
// addition to station names.
const (
	SourceRandomPool   = "random"
	SourceRankingBlock = "ranking"
	SourceGenericFixed = "fixed"
)

// SequenceSlot is one position within a block's rotation.
type SequenceSlot struct {
	Position       int    `json:"position"`
	RadioSource    string `json:"radio_source"`
	CustomFileName string `json:"custom_file_name,omitempty"`
}

// SequenceList is a JSON-serialized ordered slot list.
type SequenceList []SequenceSlot

// ScheduledSequence overrides the default rotation for a time-of-day window.
// EndHour/EndMinute at or before the start means the window wraps past
// midnight. An empty WeekDays list matches every day.
type ScheduledSequence struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"index"`
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
	WeekDays    IntList      `gorm:"serializer:json"`
	Sequence    SequenceList `gorm:"serializer:json"`
	Enabled     bool         `gorm:"default:true"`
	Priority    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IntList is a JSON-serialized int slice column.
type IntList []int

// MatchesWeekday reports whether the sequence applies on the given weekday.
func (s ScheduledSequence) MatchesWeekday(day time.Weekday) bool {
	if len(s.WeekDays) == 0 {
		return true
	}
	for _, d := range s.WeekDays {
		if d == int(day) {
			return true
		}
	}
	return false
}

// WindowMinutes returns the width of the active window in minutes, treating
// end <= start as an overnight wrap.
func (s ScheduledSequence) WindowMinutes() int {
	start := s.StartHour*60 + s.StartMinute
	end := s.EndHour*60 + s.EndMinute
	if end <= start {
		end += 24 * 60
	}
	return end - start
}

// FixedContentType classifies fixed inserts.
type FixedContentType string

const (
	FixedTypeNews      FixedContentType = "news"
	FixedTypeHoroscope FixedContentType = "horoscope"
	FixedTypeRanking   FixedContentType = "ranking"
	FixedTypeCivic     FixedContentType = "civic"
	FixedTypeOther     FixedContentType = "other"
)

// FixedContentItem is a non-music file inserted into specific blocks.
type FixedContentItem struct {
	ID           string           `gorm:"type:uuid;primaryKey"`
	Name         string           `gorm:"index"`
	FileName     string
	Type         FixedContentType `gorm:"type:varchar(16)"`
	DayPattern   string           `gorm:"type:varchar(16)"` // all, weekday, weekend
	TimeSlots    TimeSlotList     `gorm:"serializer:json"`
	Position     string           `gorm:"type:varchar(16)"` // start, middle, end or 1-based index
	Enabled      bool             `gorm:"default:true"`
	RankingCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AppliesOn reports whether the item's day pattern covers the weekday.
func (f FixedContentItem) AppliesOn(day time.Weekday) bool {
	switch f.DayPattern {
	case "weekday":
		return day >= time.Monday && day <= time.Friday
	case "weekend":
		return day == time.Saturday || day == time.Sunday
	default:
		return true
	}
}

// TimeSlotList is a JSON-serialized list of block times.
type TimeSlotList []HourMinute

// HourMinute addresses one 30-minute block by its wall-clock start.
type HourMinute struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// MinuteOfDay returns minutes since midnight.
func (h HourMinute) MinuteOfDay() int {
	return h.Hour*60 + h.Minute
}

// Label renders the canonical HH:MM block key.
func (h HourMinute) Label() string {
	return fmt.Sprintf("%02d:%02d", h.Hour, h.Minute)
}

// ScrapedSong is one observed (station, title, artist) tuple written by the
// station monitor.
type ScrapedSong struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	StationID    string `gorm:"type:uuid;index"`
	StationName  string `gorm:"index"`
	Title        string
	Artist       string
	IsNowPlaying bool
	Source       string    `gorm:"type:varchar(32)"`
	CreatedAt    time.Time `gorm:"index"`
}

// RankingSong is a read-only popularity snapshot entry.
type RankingSong struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Title  string
	Artist string
	Plays  int
	Style  string `gorm:"type:varchar(32)"`
}

// SongEntry is an in-memory pool candidate. Pools never mutate entries in
// place; selection copies the entry when it resolves a filename.
type SongEntry struct {
	Title      string
	Artist     string
	Station    string
	Style      string
	Filename   string
	ObservedAt time.Time
}

// SongKey builds the identity key shared by pools, the repetition tracker and
// the in-block dedup sets.
func SongKey(title, artist string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(artist))
}

// Key returns the entry's identity key.
func (s SongEntry) Key() string {
	return SongKey(s.Title, s.Artist)
}

// BlockLogType classifies per-slot audit outcomes.
type BlockLogType string

const (
	BlockLogUsed        BlockLogType = "used"
	BlockLogSkipped     BlockLogType = "skipped"
	BlockLogSubstituted BlockLogType = "substituted"
	BlockLogMissing     BlockLogType = "missing"
	BlockLogFixed       BlockLogType = "fixed"
)

// BlockLogEntry records one slot resolution decision.
type BlockLogEntry struct {
	ID            string       `gorm:"type:uuid;primaryKey"`
	BlockTime     string       `gorm:"type:varchar(5);index"`
	Type          BlockLogType `gorm:"type:varchar(16);index"`
	Title         string
	Artist        string
	Station       string
	Reason        string
	Style         string `gorm:"type:varchar(32)"`
	SubstituteFor string
	CreatedAt     time.Time `gorm:"index"`
}

// BuildRecord is the coarse per-block build history row.
type BuildRecord struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	Timestamp      time.Time `gorm:"index"`
	BlockLabel     string    `gorm:"type:varchar(5)"`
	SlotsProcessed int
	SlotsFound     int
	SlotsMissing   int
	ProgramName    string
}

// Settings is the single persisted configuration row.
type Settings struct {
	ID                uint         `gorm:"primaryKey"`
	DefaultSequence   SequenceList `gorm:"serializer:json"`
	WildcardCode      string       `gorm:"type:varchar(8)"`
	AltWildcardCode   string       `gorm:"type:varchar(8)"`
	OutputFolder      string
	LibraryFolders    StringList `gorm:"serializer:json"`
	FilterChars       string
	RepetitionMinutes int
	UpdatedAt         time.Time
}

// Normalized returns settings with defaults applied for unset fields.
func (s Settings) Normalized() Settings {
	if s.WildcardCode == "" {
		s.WildcardCode = "vh"
	}
	if s.AltWildcardCode == "" {
		s.AltWildcardCode = "vh2"
	}
	if s.RepetitionMinutes <= 0 {
		s.RepetitionMinutes = 60
	}
	return s
}
