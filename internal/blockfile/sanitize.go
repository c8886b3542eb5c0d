/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package blockfile owns the automation file surface: filename sanitizing,
// the block line format, and per-weekday day files.
package blockfile

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func isAllowed(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case ' ', '-', '.', '_', '(', ')', '[', ']':
		return true
	}
	return false
}

// Sanitize normalizes a filename for the automation system: configured
// filter characters are stripped first, then accents are removed, '&'
// becomes "E", anything outside the allowed set is dropped, whitespace is
// collapsed, the result is uppercased and a doubled .mp3 extension is
// collapsed. The civic block bypasses this entirely.
func Sanitize(name, filterChars string) string {
	for _, r := range filterChars {
		name = strings.ReplaceAll(name, string(r), "")
	}

	stripped, _, err := transform.String(accentStripper, name)
	if err == nil {
		name = stripped
	}

	name = strings.ReplaceAll(name, "&", "E")

	var b strings.Builder
	for _, r := range name {
		if isAllowed(r) {
			b.WriteRune(r)
		}
	}

	name = strings.Join(strings.Fields(b.String()), " ")
	name = strings.ToUpper(name)
	for strings.Contains(name, ".MP3.MP3") {
		name = strings.ReplaceAll(name, ".MP3.MP3", ".MP3")
	}
	return name
}

// EnsureExtension appends .MP3 when the sanitized name has no audio
// extension.
func EnsureExtension(name string) string {
	upper := strings.ToUpper(name)
	for _, ext := range []string{".MP3", ".FLAC", ".OGG", ".M4A", ".WAV"} {
		if strings.HasSuffix(upper, ext) {
			return name
		}
	}
	return name + ".MP3"
}
