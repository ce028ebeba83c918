// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/eventboard/internal/model"
)

func (c *client) unread() int64 {
	c.t.Helper()
	rec := c.do(http.MethodGet, "/notifications/unread-count", nil)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[countResponse](c.t, rec).Count
}

func (c *client) inbox() notificationListResponse {
	c.t.Helper()
	rec := c.do(http.MethodGet, "/notifications", nil)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[notificationListResponse](c.t, rec)
}

func TestNotificationsInbox(t *testing.T) {
	a := newApp(t)
	admin := a.client(t, "203.0.113.40").mustLogin(a.user(t, "root", model.RoleAdmin, true))
	teacher := a.client(t, "203.0.113.41").mustLogin(a.user(t, "tina", model.RoleTeacher, true))

	// Two submissions notify the admin twice.
	teacher.createEvent("One")
	teacher.createEvent("Two")
	require.Equal(t, int64(2), admin.unread())

	list := admin.inbox()
	require.Len(t, list.Notifications, 2)
	assert.Equal(t, int64(2), list.UnreadCount)
	first := list.Notifications[0]
	assert.False(t, first.IsRead)
	assert.Nil(t, first.ReadAt)

	rec := admin.do(http.MethodPost, fmt.Sprintf("/notifications/%d/read", first.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), admin.unread())

	// Marking twice is fine.
	rec = admin.do(http.MethodPost, fmt.Sprintf("/notifications/%d/read", first.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = admin.do(http.MethodDelete, "/notifications/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[countResponse](t, rec).Count)

	rec = admin.do(http.MethodPost, "/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[countResponse](t, rec).Count)
	assert.Equal(t, int64(0), admin.unread())

	remaining := admin.inbox().Notifications
	require.Len(t, remaining, 1)
	rec = admin.do(http.MethodDelete, fmt.Sprintf("/notifications/%d", remaining[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, admin.inbox().Notifications)
}

func TestNotifications_ForeignIDsAreNotFound(t *testing.T) {
	a := newApp(t)
	admin := a.client(t, "203.0.113.50").mustLogin(a.user(t, "root", model.RoleAdmin, true))
	teacher := a.client(t, "203.0.113.51").mustLogin(a.user(t, "tina", model.RoleTeacher, true))

	teacher.createEvent("Secret")
	note := admin.inbox().Notifications[0]

	rec := teacher.do(http.MethodPost, fmt.Sprintf("/notifications/%d/read", note.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = teacher.do(http.MethodDelete, fmt.Sprintf("/notifications/%d", note.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, int64(1), admin.unread())
}

func TestNotifications_RequireSession(t *testing.T) {
	a := newApp(t)
	rec := a.client(t, "203.0.113.60").do(http.MethodGet, "/notifications", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
