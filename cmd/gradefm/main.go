/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/audiosolutions/gradefm/internal/api"
	"github.com/audiosolutions/gradefm/internal/audit"
	"github.com/audiosolutions/gradefm/internal/builder"
	"github.com/audiosolutions/gradefm/internal/catalog"
	"github.com/audiosolutions/gradefm/internal/config"
	"github.com/audiosolutions/gradefm/internal/db"
	"github.com/audiosolutions/gradefm/internal/events"
	"github.com/audiosolutions/gradefm/internal/leadership"
	"github.com/audiosolutions/gradefm/internal/logbuffer"
	"github.com/audiosolutions/gradefm/internal/logging"
	"github.com/audiosolutions/gradefm/internal/server"
	"github.com/audiosolutions/gradefm/internal/store"
	"github.com/audiosolutions/gradefm/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
	logBuf *logbuffer.Buffer
)

var rootCmd = &cobra.Command{
	Use:     "gradefm",
	Short:   "GradeFM - automated music program block assembly",
	Long:    "GradeFM assembles the daily music programming grade: 48 half-hour blocks per weekday, built from scraped station pools, rankings and the local music library.",
	Version: version.Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GradeFM server",
	Long:  "Start the HTTP API, the metrics listener and the auto-build loop",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it).
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuf = logbuffer.New(0)
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, nil))
	return nil
}

// openDatabase connects, migrates and registers the query callbacks.
func openDatabase() (*gorm.DB, error) {
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if err := db.RegisterCallbacks(gormDB); err != nil {
		return nil, fmt.Errorf("register database callbacks: %w", err)
	}
	return gormDB, nil
}

// newOrchestrator assembles the build pipeline shared by serve, build and
// block.
func newOrchestrator(gormDB *gorm.DB, bus *events.Bus, isLeader func() bool) *builder.Orchestrator {
	var downloader catalog.Downloader = catalog.Noop{}
	if cfg.JITEnabled() {
		downloader = catalog.NewClient(cfg.CatalogURL, logger)
	}

	return builder.New(builder.Deps{
		Config:     cfg,
		Store:      store.New(gormDB, logger),
		FS:         afero.NewOsFs(),
		Downloader: downloader,
		Bus:        bus,
		Logger:     logger,
		IsLeader:   isLeader,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("GradeFM starting")

	gormDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gormDB); err != nil {
			logger.Error().Err(err).Msg("close database failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var isLeader func() bool
	if cfg.LeaderElectionEnabled {
		election, err := leadership.NewElection(leadership.Config{
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
			InstanceID:    cfg.InstanceID,
		}, logger)
		if err != nil {
			return fmt.Errorf("initialize leader election: %w", err)
		}
		election.Start(ctx)
		defer func() {
			if err := election.Stop(); err != nil {
				logger.Error().Err(err).Msg("stop leader election failed")
			}
		}()
		isLeader = election.IsLeader
	}

	bus := events.NewBus()
	auditSvc := audit.NewService(gormDB, logger)
	auditSvc.Subscribe(ctx, bus)

	orchestrator := newOrchestrator(gormDB, bus, isLeader)
	if err := orchestrator.StartAutoBuild(ctx); err != nil {
		return fmt.Errorf("start auto-build loop: %w", err)
	}
	defer orchestrator.StopAutoBuild()

	srv := server.New(cfg, api.New(orchestrator, auditSvc, logBuf, logger), logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info().Msg("GradeFM stopped")
	return nil
}
