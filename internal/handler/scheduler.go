// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/scheduler"
	"github.com/olegiv/eventboard/internal/service"
)

// SchedulerHandler exposes the housekeeping jobs to admins.
type SchedulerHandler struct {
	sched *scheduler.Scheduler
	audit *service.AuditService
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(sched *scheduler.Scheduler, audit *service.AuditService) *SchedulerHandler {
	return &SchedulerHandler{sched: sched, audit: audit}
}

type jobResponse struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

type jobListResponse struct {
	Jobs []jobResponse `json:"jobs"`
}

type jobRunResponse struct {
	Job     string `json:"job"`
	Removed int64  `json:"removed"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// List handles GET /admin/jobs.
func (h *SchedulerHandler) List(w http.ResponseWriter, _ *http.Request) {
	infos := h.sched.Jobs()
	resp := jobListResponse{Jobs: make([]jobResponse, 0, len(infos))}
	for _, j := range infos {
		resp.Jobs = append(resp.Jobs, jobResponse{
			Name:        j.Name,
			Description: j.Description,
			Schedule:    j.Schedule,
			LastRun:     timePtr(j.LastRun),
			NextRun:     timePtr(j.NextRun),
			LastError:   j.LastError,
		})
	}
	writeJSONSuccess(w, http.StatusOK, resp)
}

// Trigger handles POST /admin/jobs/{name}/run.
func (h *SchedulerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	actor := actorFrom(r)

	removed, err := h.sched.Trigger(r.Context(), name)
	if errors.Is(err, scheduler.ErrUnknownJob) {
		middleware.WriteError(w, r, apperr.New(apperr.NotFound, "job not found"))
		return
	}
	if err != nil {
		middleware.WriteError(w, r, apperr.Wrap(err, apperr.StorageFailure, "job failed"))
		return
	}

	_ = h.audit.Log(r.Context(), model.AuditLevelInfo, model.AuditCategorySystem,
		"Job manually triggered: "+name, &actor.UserID, actor.IP,
		map[string]any{"job": name, "removed": removed})

	slog.Info("scheduler job triggered", "job", name, "triggered_by", actor.UserID)
	writeJSONSuccess(w, http.StatusOK, jobRunResponse{Job: name, Removed: removed})
}
