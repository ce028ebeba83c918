// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/service"
)

// AdminHandler handles teacher approval and the audit log viewer.
type AdminHandler struct {
	accounts *service.AccountService
	audit    *service.AuditService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accounts *service.AccountService, audit *service.AuditService) *AdminHandler {
	return &AdminHandler{accounts: accounts, audit: audit}
}

type teachersResponse struct {
	Teachers []model.User `json:"teachers"`
}

type approvedTeachersResponse struct {
	Teachers []model.ApprovedTeacher `json:"teachers"`
}

type userResponse struct {
	User model.User `json:"user"`
}

type auditEntryResponse struct {
	ID        int64           `json:"id"`
	Level     string          `json:"level"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	UserID    *int64          `json:"user_id,omitempty"`
	IPAddress string          `json:"ip_address,omitempty"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

type auditLogResponse struct {
	Entries []auditEntryResponse `json:"entries"`
}

// PendingTeachers handles GET /admin/teachers/pending.
func (h *AdminHandler) PendingTeachers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListPendingTeachers(r.Context(), actorFrom(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSONSuccess(w, http.StatusOK, teachersResponse{Teachers: users})
}

// ApprovedTeachers handles GET /admin/teachers/approved?limit=N.
func (h *AdminHandler) ApprovedTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.accounts.ListApprovedTeachers(r.Context(), actorFrom(r), queryInt(r, "limit", 0))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if teachers == nil {
		teachers = []model.ApprovedTeacher{}
	}
	writeJSONSuccess(w, http.StatusOK, approvedTeachersResponse{Teachers: teachers})
}

// ApproveTeacher handles POST /admin/teachers/{id}/approve.
func (h *AdminHandler) ApproveTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	user, err := h.accounts.Approve(r.Context(), actorFrom(r), id)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, userResponse{User: user})
}

// RejectTeacher handles POST /admin/teachers/{id}/reject. The pending
// account is removed.
func (h *AdminHandler) RejectTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.accounts.Reject(r.Context(), actorFrom(r), id); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, "Teacher registration rejected.")
}

// AuditLog handles GET /admin/audit?category=&limit=&offset=.
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.List(r.Context(), r.URL.Query().Get("category"), queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	resp := auditLogResponse{Entries: make([]auditEntryResponse, 0, len(entries))}
	for _, e := range entries {
		item := auditEntryResponse{
			ID:        e.ID,
			Level:     e.Level,
			Category:  e.Category,
			Message:   e.Message,
			IPAddress: e.IPAddress,
			Metadata:  json.RawMessage("{}"),
			CreatedAt: e.CreatedAt,
		}
		if json.Valid([]byte(e.Metadata)) {
			item.Metadata = json.RawMessage(e.Metadata)
		}
		if e.UserID.Valid {
			uid := e.UserID.Int64
			item.UserID = &uid
		}
		resp.Entries = append(resp.Entries, item)
	}
	writeJSONSuccess(w, http.StatusOK, resp)
}
