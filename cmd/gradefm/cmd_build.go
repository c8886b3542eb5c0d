/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/audiosolutions/gradefm/internal/audit"
	"github.com/audiosolutions/gradefm/internal/builder"
	"github.com/audiosolutions/gradefm/internal/db"
	"github.com/audiosolutions/gradefm/internal/events"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the full day grade",
	Long:  "Build all 48 half-hour blocks for today and write the weekday grade file",
	RunE:  runBuild,
}

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Build the current and next blocks",
	Long:  "Build the block containing the current time plus the following one, merging them into the existing grade files",
	RunE:  runBlock,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(blockCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	return runOnce(cmd.Context(), func(ctx context.Context, o *builder.Orchestrator) error {
		return o.BuildFullDay(ctx)
	})
}

func runBlock(cmd *cobra.Command, args []string) error {
	return runOnce(cmd.Context(), func(ctx context.Context, o *builder.Orchestrator) error {
		return o.BuildIncremental(ctx)
	})
}

// runOnce performs a one-shot build with the audit trail attached, then
// exits.
func runOnce(ctx context.Context, build func(context.Context, *builder.Orchestrator) error) error {
	if err := loadConfig(); err != nil {
		return err
	}

	gormDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gormDB); err != nil {
			logger.Error().Err(err).Msg("close database failed")
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	auditCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := events.NewBus()
	audit.NewService(gormDB, logger).Subscribe(auditCtx, bus)

	orchestrator := newOrchestrator(gormDB, bus, nil)
	if err := build(ctx, orchestrator); err != nil {
		return fmt.Errorf("build grade: %w", err)
	}

	logger.Info().Str("output", cfg.OutputFolder).Msg("grade written")
	return nil
}
