// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/notify"
)

// NotificationsHandler exposes the signed-in user's inbox.
type NotificationsHandler struct {
	inbox *notify.Inbox
}

// NewNotificationsHandler creates a new NotificationsHandler.
func NewNotificationsHandler(inbox *notify.Inbox) *NotificationsHandler {
	return &NotificationsHandler{inbox: inbox}
}

type notificationResponse struct {
	model.Notification
	RelatedType string     `json:"related_type,omitempty"`
	RelatedID   *int64     `json:"related_id,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

type notificationListResponse struct {
	Notifications []notificationResponse `json:"notifications"`
	UnreadCount   int64                  `json:"unread_count"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func toNotificationResponse(n model.Notification) notificationResponse {
	resp := notificationResponse{Notification: n, RelatedType: n.RelatedType.String}
	if n.RelatedID.Valid {
		id := n.RelatedID.Int64
		resp.RelatedID = &id
	}
	if n.ReadAt.Valid {
		at := n.ReadAt.Time
		resp.ReadAt = &at
	}
	return resp
}

// List handles GET /notifications?limit=&offset=.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(r)

	items, err := h.inbox.List(ctx, userID, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	unread, err := h.inbox.UnreadCount(ctx, userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	resp := notificationListResponse{
		Notifications: make([]notificationResponse, 0, len(items)),
		UnreadCount:   unread,
	}
	for _, n := range items {
		resp.Notifications = append(resp.Notifications, toNotificationResponse(n))
	}
	writeJSONSuccess(w, http.StatusOK, resp)
}

// UnreadCount handles GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.inbox.UnreadCount(r.Context(), middleware.GetUserID(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, countResponse{Count: n})
}

// MarkRead handles POST /notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.inbox.MarkRead(r.Context(), middleware.GetUserID(r), id); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, "Notification marked as read.")
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.inbox.MarkAllRead(r.Context(), middleware.GetUserID(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, countResponse{Count: n})
}

// Delete handles DELETE /notifications/{id}.
func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.inbox.Delete(r.Context(), middleware.GetUserID(r), id); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, "Notification deleted.")
}

// DeleteRead handles DELETE /notifications/read.
func (h *NotificationsHandler) DeleteRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.inbox.DeleteAllRead(r.Context(), middleware.GetUserID(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, countResponse{Count: n})
}
