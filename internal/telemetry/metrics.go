/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry defines the process metrics surface.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BuildsTotal counts grade builds by mode and outcome.
	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradefm_builds_total",
		Help: "Grade builds by mode (full_day, incremental) and outcome.",
	}, []string{"mode", "outcome"})

	// BuildDuration observes build wall time per mode.
	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gradefm_build_duration_seconds",
		Help:    "Grade build duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"mode"})

	// SlotsResolvedTotal counts slot resolutions by priority level.
	SlotsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradefm_slots_resolved_total",
		Help: "Slot resolutions by selection level.",
	}, []string{"level"})

	// JITDownloadsTotal counts just-in-time download attempts by outcome.
	JITDownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradefm_jit_downloads_total",
		Help: "Just-in-time download attempts by outcome (hit, miss, timeout, error).",
	}, []string{"outcome"})

	// LibraryChecksTotal counts library existence lookups by result.
	LibraryChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradefm_library_checks_total",
		Help: "Library existence checks by result (found, missing, error).",
	}, []string{"result"})

	// AutoBuildTicksTotal counts auto-build timer ticks.
	AutoBuildTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gradefm_autobuild_ticks_total",
		Help: "Auto-build loop ticks.",
	})

	// LeaderElectionStatus reports whether this instance holds leadership.
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gradefm_leader_election_status",
		Help: "1 when this instance is the auto-build leader.",
	}, []string{"instance_id"})

	// LeaderElectionChanges counts leadership transitions.
	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradefm_leader_election_changes_total",
		Help: "Leadership transitions by direction (acquired, lost).",
	}, []string{"instance_id", "direction"})

	// DatabaseQueryDuration observes gorm operation latency.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gradefm_database_query_duration_seconds",
		Help:    "Database operation duration by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts gorm operation errors.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradefm_database_errors_total",
		Help: "Database operation errors.",
	}, []string{"operation"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
