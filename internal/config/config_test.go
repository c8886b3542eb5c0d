/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GRADEFM_DB_BACKEND", "sqlite")
	t.Setenv("GRADEFM_DB_DSN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBDSN != "gradefm.db" {
		t.Errorf("DBDSN = %q, want sqlite default", cfg.DBDSN)
	}
	if cfg.LeadMinutes != 10 {
		t.Errorf("LeadMinutes = %d, want 10", cfg.LeadMinutes)
	}
	if cfg.RepetitionMinutes != 60 {
		t.Errorf("RepetitionMinutes = %d, want 60", cfg.RepetitionMinutes)
	}
	if cfg.JITEnabled() {
		t.Error("JITEnabled() should be false without a catalog URL")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("GRADEFM_DB_BACKEND", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject unknown backend")
	}
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	t.Setenv("GRADEFM_DB_BACKEND", "postgres")
	t.Setenv("GRADEFM_DB_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should require DSN for postgres")
	}
}

func TestLeadMinutesClamped(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{"too low", "0", 1},
		{"too high", "45", 10},
		{"in range", "5", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GRADEFM_DB_BACKEND", "sqlite")
			t.Setenv("GRADEFM_LEAD_MINUTES", tt.env)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.LeadMinutes != tt.want {
				t.Errorf("LeadMinutes = %d, want %d", cfg.LeadMinutes, tt.want)
			}
		})
	}
}

func TestLibraryFoldersSplit(t *testing.T) {
	t.Setenv("GRADEFM_DB_BACKEND", "sqlite")
	t.Setenv("GRADEFM_LIBRARY_FOLDERS", "/mnt/musicas, /mnt/extra ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.LibraryFolders) != 2 {
		t.Fatalf("LibraryFolders = %v, want 2 entries", cfg.LibraryFolders)
	}
	if cfg.DownloadFolder != "/mnt/musicas" {
		t.Errorf("DownloadFolder = %q, want first library folder", cfg.DownloadFolder)
	}
}
