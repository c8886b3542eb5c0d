/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package blockfile

import (
	"reflect"
	"testing"
	"time"

	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/spf13/afero"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		filterChars string
		want        string
	}{
		{"strips accents", "Chitãozinho e Xororó - Evidências.mp3", "", "CHITAOZINHO E XORORO - EVIDENCIAS.MP3"},
		{"ampersand", "Zezé & Luciano.mp3", "", "ZEZE E LUCIANO.MP3"},
		{"drops disallowed chars", "A/B\\C:D*E?.mp3", "", "ABCDE.MP3"},
		{"collapses whitespace", "A    B   C.mp3", "", "A B C.MP3"},
		{"collapses double extension", "SONG.mp3.mp3", "", "SONG.MP3"},
		{"filter chars first", "SA~O PAULO~.mp3", "~", "SAO PAULO.MP3"},
		{"keeps brackets and parens", "Song (Live) [2024].mp3", "", "SONG (LIVE) [2024].MP3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in, tt.filterChars); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatLine(t *testing.T) {
	tokens := []Token{
		FileToken("ARTIST X - SONG A.MP3"),
		WildcardToken("vh"),
		FileToken("ARTIST Y - SONG B.MP3"),
	}
	got := FormatLine(models.HourMinute{Hour: 8, Minute: 30}, "Manhã Popular", tokens)
	want := `08:30 (ID=Manhã Popular) "ARTIST X - SONG A.MP3",vht,vh,vht,"ARTIST Y - SONG B.MP3"`
	if got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}
}

func TestLineRoundTrip(t *testing.T) {
	tokens := []Token{
		FileToken("A - B.MP3"),
		WildcardToken("vh"),
		WildcardToken("vh2"),
		FileToken("C - D.MP3"),
	}
	line := FormatLine(models.HourMinute{Hour: 23, Minute: 0}, "Madrugada", tokens)

	parsed, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if parsed.Time.Label() != "23:00" || parsed.ProgramName != "Madrugada" {
		t.Errorf("parsed header = %s %q", parsed.Time.Label(), parsed.ProgramName)
	}
	if !reflect.DeepEqual(parsed.Tokens, tokens) {
		t.Errorf("tokens = %+v, want %+v", parsed.Tokens, tokens)
	}
	if FormatLine(parsed.Time, parsed.ProgramName, parsed.Tokens) != line {
		t.Error("format/parse/format is not stable")
	}
}

func TestInsertAt(t *testing.T) {
	base := []Token{FileToken("1"), FileToken("2"), FileToken("3"), FileToken("4")}
	fixed := FileToken("NEWS.MP3")

	tests := []struct {
		position string
		wantIdx  int
	}{
		{"start", 0},
		{"middle", 2},
		{"end", 4},
		{"", 4},
		{"2", 1},
		{"99", 4},
		{"garbage", 4},
	}
	for _, tt := range tests {
		t.Run(tt.position, func(t *testing.T) {
			out := InsertAt(base, fixed, tt.position)
			if len(out) != 5 {
				t.Fatalf("len = %d, want 5", len(out))
			}
			if out[tt.wantIdx].Value != "NEWS.MP3" {
				t.Errorf("inserted at wrong index, got %+v", out)
			}
		})
	}
}

func TestDayCodes(t *testing.T) {
	if DayCode(time.Saturday) != "SÁB" {
		t.Errorf("Saturday code = %q, want SÁB", DayCode(time.Saturday))
	}
	if FileName(time.Monday) != "SEG.txt" {
		t.Errorf("Monday file = %q", FileName(time.Monday))
	}

	day, err := ParseDayCode("sab")
	if err != nil || day != time.Saturday {
		t.Errorf("ParseDayCode(sab) = %v, %v", day, err)
	}
	if _, err := ParseDayCode("XYZ"); err == nil {
		t.Error("expected error for unknown code")
	}
}

func TestMergeIdempotent(t *testing.T) {
	a := ParseDay(`08:00 (ID=P) "A.MP3"` + "\n" + `08:30 (ID=P) "B.MP3"` + "\n")
	updates := map[string]string{
		"08:30": `08:30 (ID=P) "NEW.MP3"`,
		"09:00": `09:00 (ID=P) "C.MP3"`,
	}

	once := Merge(a, updates)
	twice := Merge(once, updates)
	if !reflect.DeepEqual(once, twice) {
		t.Error("merge is not idempotent")
	}
	if once["08:30"] != updates["08:30"] {
		t.Errorf("update not applied: %q", once["08:30"])
	}
	if once["08:00"] != a["08:00"] {
		t.Error("untouched block clobbered")
	}

	serialized := once.Serialize()
	want := once["08:00"] + "\n" + once["08:30"] + "\n" + once["09:00"] + "\n"
	if serialized != want {
		t.Errorf("Serialize() = %q, want time-sorted %q", serialized, want)
	}
}

func TestFilesReadWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := NewFiles(fs, "/grades")

	empty, err := files.Read(time.Monday)
	if err != nil {
		t.Fatalf("Read() missing file error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("missing file should read as empty day, got %v", empty)
	}

	content := DayContent{"08:00": `08:00 (ID=P) "A.MP3"`}
	if err := files.Write(time.Monday, content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	back, err := files.Read(time.Monday)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !reflect.DeepEqual(back, content) {
		t.Errorf("round trip = %v, want %v", back, content)
	}

	raw, err := files.ReadRaw(time.Monday)
	if err != nil || raw != content.Serialize() {
		t.Errorf("ReadRaw() = %q, %v", raw, err)
	}
}
