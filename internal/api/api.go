/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP control surface: build triggers, status,
// grade files, audit history and the log ring buffer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/audiosolutions/gradefm/internal/audit"
	"github.com/audiosolutions/gradefm/internal/blockfile"
	"github.com/audiosolutions/gradefm/internal/builder"
	"github.com/audiosolutions/gradefm/internal/logbuffer"
	"github.com/audiosolutions/gradefm/internal/models"
	"github.com/audiosolutions/gradefm/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// API exposes HTTP handlers.
type API struct {
	orchestrator *builder.Orchestrator
	auditSvc     *audit.Service
	logBuffer    *logbuffer.Buffer
	logger       zerolog.Logger
}

// New creates the API.
func New(orchestrator *builder.Orchestrator, auditSvc *audit.Service, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	return &API{
		orchestrator: orchestrator,
		auditSvc:     auditSvc,
		logBuffer:    logBuf,
		logger:       logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the API endpoints.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Post("/build/full", a.handleBuildFull)
		r.Post("/build/block", a.handleBuildBlock)
		r.Get("/grade/{day}", a.handleGrade)
		r.Get("/audit/blocks", a.handleAuditBlocks)
		r.Get("/audit/builds", a.handleAuditBuilds)
		r.Get("/logs", a.handleLogs)
	})
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.orchestrator.Status())
}

func (a *API) handleBuildFull(w http.ResponseWriter, _ *http.Request) {
	if a.orchestrator.Status().Building {
		writeError(w, http.StatusConflict, "a build is already in flight")
		return
	}
	go func() {
		if err := a.orchestrator.BuildFullDay(context.Background()); err != nil && !errors.Is(err, builder.ErrBuildInFlight) {
			a.logger.Error().Err(err).Msg("full day build failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "building"})
}

func (a *API) handleBuildBlock(w http.ResponseWriter, r *http.Request) {
	err := a.orchestrator.BuildIncremental(r.Context())
	switch {
	case errors.Is(err, builder.ErrBuildInFlight):
		writeError(w, http.StatusConflict, "a build is already in flight")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "built"})
	}
}

func (a *API) handleGrade(w http.ResponseWriter, r *http.Request) {
	day, err := blockfile.ParseDayCode(chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw, err := a.orchestrator.ReadGrade(day)
	if err != nil {
		writeError(w, http.StatusNotFound, "grade file not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(raw))
}

func (a *API) handleAuditBlocks(w http.ResponseWriter, r *http.Request) {
	query := audit.BlockLogQuery{
		Type:  models.BlockLogType(r.URL.Query().Get("type")),
		Limit: queryInt(r, "limit"),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		query.Since = parsed
	}

	entries, err := a.auditSvc.BlockLogs(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleAuditBuilds(w http.ResponseWriter, r *http.Request) {
	records, err := a.auditSvc.Builds(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := a.logBuffer.Query(logbuffer.QueryParams{
		Level:  r.URL.Query().Get("level"),
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit"),
	})
	writeJSON(w, http.StatusOK, entries)
}

func queryInt(r *http.Request, key string) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
