/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package blockfile

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// dayCodes are the per-weekday file names, Sunday first, with the Portuguese
// accent kept on Saturday.
var dayCodes = [7]string{"DOM", "SEG", "TER", "QUA", "QUI", "SEX", "SÁB"}

// DayCode returns the uppercase weekday code used in the file name.
func DayCode(day time.Weekday) string {
	return dayCodes[int(day)]
}

// FileName returns the grade file name for a weekday.
func FileName(day time.Weekday) string {
	return DayCode(day) + ".txt"
}

// ParseDayCode resolves a code back to a weekday, accepting the unaccented
// SAB spelling and any case.
func ParseDayCode(code string) (time.Weekday, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "SAB" {
		code = "SÁB"
	}
	for i, c := range dayCodes {
		if c == code {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown day code %q", code)
}

// DayContent is a day file held as a time-keyed line map so merges replace
// whole blocks by their HH:MM key.
type DayContent map[string]string

// ParseDay splits day file content into a line map. Lines that do not parse
// are dropped; a damaged file degrades to a partial day rather than failing
// the build.
func ParseDay(content string) DayContent {
	day := make(DayContent)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parsed, err := ParseLine(line)
		if err != nil {
			continue
		}
		day[parsed.Time.Label()] = line
	}
	return day
}

// Merge overlays updates onto the existing content, keyed by block time.
// Merging the same updates twice is idempotent.
func Merge(existing DayContent, updates map[string]string) DayContent {
	merged := make(DayContent, len(existing)+len(updates))
	for key, line := range existing {
		merged[key] = line
	}
	for key, line := range updates {
		merged[key] = line
	}
	return merged
}

// Serialize renders the day file: lines sorted ascending by time, one block
// per line, trailing newline.
func (d DayContent) Serialize() string {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(d[key])
		b.WriteString("\n")
	}
	return b.String()
}

// Files reads and writes grade files through afero.
type Files struct {
	fs     afero.Fs
	folder string
}

// NewFiles creates a file surface rooted at the output folder.
func NewFiles(fs afero.Fs, folder string) *Files {
	return &Files{fs: fs, folder: folder}
}

// Read loads a weekday's grade file; a missing file is an empty day.
func (f *Files) Read(day time.Weekday) (DayContent, error) {
	path := filepath.Join(f.folder, FileName(day))
	raw, err := afero.ReadFile(f.fs, path)
	if err != nil {
		exists, statErr := afero.Exists(f.fs, path)
		if statErr == nil && !exists {
			return DayContent{}, nil
		}
		return nil, fmt.Errorf("read grade file %s: %w", path, err)
	}
	return ParseDay(string(raw)), nil
}

// Write persists a weekday's grade file, creating the folder if needed.
func (f *Files) Write(day time.Weekday, content DayContent) error {
	if err := f.fs.MkdirAll(f.folder, 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}
	path := filepath.Join(f.folder, FileName(day))
	if err := afero.WriteFile(f.fs, path, []byte(content.Serialize()), 0o644); err != nil {
		return fmt.Errorf("write grade file %s: %w", path, err)
	}
	return nil
}

// ReadRaw returns the raw file text for the API surface.
func (f *Files) ReadRaw(day time.Weekday) (string, error) {
	raw, err := afero.ReadFile(f.fs, filepath.Join(f.folder, FileName(day)))
	if err != nil {
		return "", fmt.Errorf("read grade file: %w", err)
	}
	return string(raw), nil
}
