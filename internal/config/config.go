/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string
	DBBackend   DatabaseBackend
	DBDSN       string

	// Grade output
	OutputFolder string // Folder where per-weekday grade files are written
	GradeName    string // Program name stamped into every block line (ID=<name>)

	// Music library
	LibraryFolders []string // Folders scanned for existing audio files
	DownloadFolder string   // Target folder for just-in-time downloads

	// Catalog / download collaborator
	CatalogURL      string // Base URL of the catalog service; empty disables JIT downloads
	CatalogQuality  string
	JITPerCandidate bool // Attempt a download for every missing candidate, not just the first per level

	// Special program sources
	MorningStations  []string // The two stations alternated by the early-morning program
	HappyHourFolders []string // Folders feeding the late-afternoon segment
	LateNightFolders []string // Folders feeding the late-night romance segment
	EditionFolder    string   // Folder feeding the nightly edition program

	// Auto-build loop
	LeadMinutes       int // Build the upcoming block when this close to its boundary (1-10)
	RepetitionMinutes int // Anti-repetition window for incremental builds

	// Stations fallback file, used when the database holds no stations yet
	StationsFile string

	// Multi-instance configuration
	LeaderElectionEnabled bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("GRADEFM_ENV", "development"),
		HTTPBind:    getEnv("GRADEFM_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("GRADEFM_HTTP_PORT", 8080),
		MetricsBind: getEnv("GRADEFM_METRICS_BIND", "127.0.0.1:9000"),
		DBBackend:   DatabaseBackend(getEnv("GRADEFM_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("GRADEFM_DB_DSN", ""),

		OutputFolder: getEnv("GRADEFM_OUTPUT_FOLDER", "./grade"),
		GradeName:    getEnv("GRADEFM_GRADE_NAME", "PROGRAMACAO MUSICAL"),

		LibraryFolders: splitList(getEnv("GRADEFM_LIBRARY_FOLDERS", "./musicas")),
		DownloadFolder: getEnv("GRADEFM_DOWNLOAD_FOLDER", ""),

		CatalogURL:      getEnv("GRADEFM_CATALOG_URL", ""),
		CatalogQuality:  getEnv("GRADEFM_CATALOG_QUALITY", "high"),
		JITPerCandidate: getEnvBool("GRADEFM_JIT_PER_CANDIDATE", false),

		MorningStations:  splitList(getEnv("GRADEFM_MORNING_STATIONS", "BH FM,Itatiaia")),
		HappyHourFolders: splitList(getEnv("GRADEFM_HAPPYHOUR_FOLDERS", "")),
		LateNightFolders: splitList(getEnv("GRADEFM_LATENIGHT_FOLDERS", "")),
		EditionFolder:    getEnv("GRADEFM_EDITION_FOLDER", ""),

		LeadMinutes:       getEnvInt("GRADEFM_LEAD_MINUTES", 10),
		RepetitionMinutes: getEnvInt("GRADEFM_REPETITION_MINUTES", 60),

		StationsFile: getEnv("GRADEFM_STATIONS_FILE", ""),

		LeaderElectionEnabled: getEnvBool("GRADEFM_LEADER_ELECTION_ENABLED", false),
		RedisAddr:             getEnv("GRADEFM_REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("GRADEFM_REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("GRADEFM_REDIS_DB", 0),
		InstanceID:            getEnv("GRADEFM_INSTANCE_ID", ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		if cfg.DBBackend == DatabaseSQLite {
			cfg.DBDSN = "gradefm.db"
		} else {
			return nil, fmt.Errorf("GRADEFM_DB_DSN must be provided for backend %q", cfg.DBBackend)
		}
	}

	if cfg.LeadMinutes < 1 {
		cfg.LeadMinutes = 1
	}
	if cfg.LeadMinutes > 10 {
		cfg.LeadMinutes = 10
	}
	if cfg.RepetitionMinutes <= 0 {
		cfg.RepetitionMinutes = 60
	}

	if cfg.DownloadFolder == "" && len(cfg.LibraryFolders) > 0 {
		cfg.DownloadFolder = cfg.LibraryFolders[0]
	}

	if cfg.LeaderElectionEnabled && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("GRADEFM_REDIS_ADDR must be set when leader election is enabled")
	}

	return cfg, nil
}

// LeadDuration returns the auto-build lead time.
func (c *Config) LeadDuration() time.Duration {
	return time.Duration(c.LeadMinutes) * time.Minute
}

// JITEnabled reports whether a catalog collaborator is configured.
func (c *Config) JITEnabled() bool {
	return c.CatalogURL != ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}
