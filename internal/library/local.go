/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"context"
	"strings"

	"github.com/spf13/afero"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".m4a":  {},
	".wav":  {},
}

// LocalChecker scans the configured music folders for a file named
// "ARTIST - TITLE.<ext>". Unknown folders answer missing, not an error.
type LocalChecker struct {
	fs      afero.Fs
	folders []string
}

// NewLocalChecker creates a checker over the given filesystem and folders.
func NewLocalChecker(fs afero.Fs, folders []string) *LocalChecker {
	return &LocalChecker{fs: fs, folders: folders}
}

// CheckOne looks for a matching audio file across all folders.
func (c *LocalChecker) CheckOne(ctx context.Context, artist, title string) (Result, error) {
	want := strings.ToLower(strings.TrimSpace(artist) + " - " + strings.TrimSpace(title))

	for _, folder := range c.folders {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		entries, err := afero.ReadDir(c.fs, folder)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			ext := strings.ToLower(extensionOf(name))
			if _, ok := audioExtensions[ext]; !ok {
				continue
			}
			base := strings.ToLower(strings.TrimSuffix(name, extensionOf(name)))
			if base == want {
				return Result{Exists: true, Filename: name}, nil
			}
		}
	}
	return Result{}, nil
}

func extensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}

// ListAudioFiles returns audio file names from one folder, used by the
// folder-sourced program generators. A missing folder yields an empty list.
func ListAudioFiles(fs afero.Fs, folder string) []string {
	entries, err := afero.ReadDir(fs, folder)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(extensionOf(entry.Name()))
		if _, ok := audioExtensions[ext]; ok {
			files = append(files, entry.Name())
		}
	}
	return files
}
