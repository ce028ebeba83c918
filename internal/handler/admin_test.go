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

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	a := newApp(t)
	pending := a.user(t, "pat", model.RoleTeacher, false)
	teacher := a.client(t, "203.0.113.1").mustLogin(a.user(t, "tina", model.RoleTeacher, true))
	anon := a.client(t, "203.0.113.2")
	anon.fetchCSRF()

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"pending list", http.MethodGet, "/admin/teachers/pending"},
		{"approved list", http.MethodGet, "/admin/teachers/approved"},
		{"approve", http.MethodPost, fmt.Sprintf("/admin/teachers/%d/approve", pending.ID)},
		{"reject", http.MethodPost, fmt.Sprintf("/admin/teachers/%d/reject", pending.ID)},
		{"audit log", http.MethodGet, "/admin/audit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusForbidden, teacher.do(tt.method, tt.path, nil).Code)
			assert.Equal(t, http.StatusUnauthorized, anon.do(tt.method, tt.path, nil).Code)
		})
	}
}

func TestRejectTeacher(t *testing.T) {
	a := newApp(t)
	admin := a.client(t, "203.0.113.10").mustLogin(a.user(t, "root", model.RoleAdmin, true))
	pending := a.user(t, "pat", model.RoleTeacher, false)
	active := a.user(t, "tina", model.RoleTeacher, true)
	student := a.user(t, "stu", model.RoleStudent, true)

	rec := admin.do(http.MethodPost, fmt.Sprintf("/admin/teachers/%d/reject", active.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = admin.do(http.MethodPost, fmt.Sprintf("/admin/teachers/%d/reject", student.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = admin.do(http.MethodPost, fmt.Sprintf("/admin/teachers/%d/reject", pending.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = admin.do(http.MethodPost, fmt.Sprintf("/admin/teachers/%d/reject", pending.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The rejected teacher can no longer log in at all.
	rec = a.client(t, "203.0.113.11").login(pending.Email, testPassword)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = admin.do(http.MethodGet, "/admin/teachers/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[teachersResponse](t, rec).Teachers)
}

func TestApprovedTeachersListing(t *testing.T) {
	a := newApp(t)
	root := a.user(t, "root", model.RoleAdmin, true)
	admin := a.client(t, "203.0.113.20").mustLogin(root)
	first := a.user(t, "pat", model.RoleTeacher, false)
	second := a.user(t, "quinn", model.RoleTeacher, false)

	for _, u := range []model.User{first, second} {
		rec := admin.do(http.MethodPost, fmt.Sprintf("/admin/teachers/%d/approve", u.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := admin.do(http.MethodGet, "/admin/teachers/approved?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	teachers := decode[approvedTeachersResponse](t, rec).Teachers
	require.Len(t, teachers, 1)
	assert.Equal(t, root.Name, teachers[0].ApprovedByName)

	rec = admin.do(http.MethodGet, "/admin/teachers/approved", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[approvedTeachersResponse](t, rec).Teachers, 2)
}

func TestAuditLogViewer(t *testing.T) {
	a := newApp(t)
	admin := a.client(t, "203.0.113.30").mustLogin(a.user(t, "root", model.RoleAdmin, true))
	a.client(t, "203.0.113.31").login("ghost@example.com", "nope")

	rec := admin.do(http.MethodGet, "/admin/audit?category=auth", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decode[auditLogResponse](t, rec).Entries
	require.Len(t, entries, 2)
	assert.Equal(t, "Failed login attempt", entries[0].Message)
	assert.Equal(t, "203.0.113.31", entries[0].IPAddress)
	assert.Nil(t, entries[0].UserID)
	assert.Equal(t, "User logged in", entries[1].Message)
	require.NotNil(t, entries[1].UserID)

	rec = admin.do(http.MethodGet, "/admin/audit?category=auth&limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries = decode[auditLogResponse](t, rec).Entries
	require.Len(t, entries, 1)
	assert.Equal(t, "User logged in", entries[0].Message)
}
