// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/eventboard/internal/model"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func titles(events []eventResponse) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Title)
	}
	return out
}

func (c *client) listEvents(query string) []eventResponse {
	c.t.Helper()
	rec := c.do(http.MethodGet, "/events"+query, nil)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[eventListResponse](c.t, rec).Events
}

func (c *client) createEvent(title string) eventResponse {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/events", map[string]string{"title": title, "description": "Details for " + title})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[eventResponse](c.t, rec)
}

// multipartEvent builds a multipart create/edit request with an image part.
func multipartEvent(t *testing.T, method, path string, fields map[string]string, filename string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// Scenario B: a pending event is invisible to students until approved.
func TestScenarioB_ModerationVisibility(t *testing.T) {
	a := newApp(t)
	teacher := a.client(t, "198.51.100.20").mustLogin(a.user(t, "tina", model.RoleTeacher, true))
	student := a.client(t, "198.51.100.21").mustLogin(a.user(t, "stu", model.RoleStudent, true))
	admin := a.client(t, "198.51.100.22").mustLogin(a.user(t, "root", model.RoleAdmin, true))

	ev := teacher.createEvent("Fall Fair")
	assert.Equal(t, model.EventPending, ev.Status)
	assert.Nil(t, ev.ApprovedBy)

	assert.NotContains(t, titles(student.listEvents("")), "Fall Fair")
	rec := student.do(http.MethodGet, fmt.Sprintf("/events/%d", ev.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Contains(t, titles(teacher.listEvents("?mine=true")), "Fall Fair")

	rec = admin.do(http.MethodPost, fmt.Sprintf("/events/%d/moderate", ev.ID), map[string]string{"decision": "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[eventResponse](t, rec)
	assert.Equal(t, model.EventApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	listed := student.listEvents("")
	require.Equal(t, []string{"Fall Fair"}, titles(listed))
	assert.Equal(t, model.EventApproved, listed[0].Status)

	// The student was told about the new event and the teacher about the decision.
	rec = student.do(http.MethodGet, "/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[countResponse](t, rec).Count)

	rec = teacher.do(http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[notificationListResponse](t, rec).Notifications
	require.NotEmpty(t, notes)
	assert.Equal(t, model.RelatedEvent, notes[0].RelatedType)
	require.NotNil(t, notes[0].RelatedID)
	assert.Equal(t, ev.ID, *notes[0].RelatedID)
}

func TestCreateEvent_RoleGate(t *testing.T) {
	a := newApp(t)
	student := a.client(t, "198.51.100.30").mustLogin(a.user(t, "stu", model.RoleStudent, true))

	rec := student.do(http.MethodPost, "/events", map[string]string{"title": "Sneaky"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	anon := a.client(t, "198.51.100.31")
	anon.fetchCSRF()
	rec = anon.do(http.MethodPost, "/events", map[string]string{"title": "Anon"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	entries, err := a.audit.List(t.Context(), model.AuditCategorySecurity, 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the student's attempt is a permission failure")
}

func TestCreateEvent_ValidationAndSanitizing(t *testing.T) {
	a := newApp(t)
	teacher := a.client(t, "198.51.100.32").mustLogin(a.user(t, "tina", model.RoleTeacher, true))

	rec := teacher.do(http.MethodPost, "/events", map[string]string{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = teacher.do(http.MethodPost, "/events", map[string]string{"title": "<b>Bake</b> sale", "status": "approved"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[eventResponse](t, rec)
	assert.Equal(t, "Bake sale", ev.Title)
	assert.Equal(t, model.EventPending, ev.Status, "new events always start pending")
}

func TestCreateEvent_WithImage(t *testing.T) {
	a := newApp(t)
	teacher := a.client(t, "198.51.100.33").mustLogin(a.user(t, "tina", model.RoleTeacher, true))

	req := multipartEvent(t, http.MethodPost, "/events", map[string]string{"title": "Poster night"}, "poster.png", pngHeader)
	rec := teacher.send(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[eventResponse](t, rec)
	require.True(t, strings.HasPrefix(ev.Image, UploadsPrefix), ev.Image)

	name := strings.TrimPrefix(ev.Image, UploadsPrefix)
	_, err := os.Stat(filepath.Join(a.uploads, name))
	require.NoError(t, err)

	rec = teacher.do(http.MethodGet, ev.Image, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	rec = teacher.do(http.MethodGet, UploadsPrefix, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no directory listing")

	// Replacing the image removes the old file.
	req = multipartEvent(t, http.MethodPut, fmt.Sprintf("/events/%d", ev.ID), map[string]string{"title": "Poster night"}, "new.png", pngHeader)
	rec = teacher.send(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEqual(t, ev.Image, decode[eventResponse](t, rec).Image)
	_, err = os.Stat(filepath.Join(a.uploads, name))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateEvent_RejectsNonImage(t *testing.T) {
	a := newApp(t)
	teacher := a.client(t, "198.51.100.34").mustLogin(a.user(t, "tina", model.RoleTeacher, true))

	req := multipartEvent(t, http.MethodPost, "/events", map[string]string{"title": "Script"}, "evil.png", []byte("#!/bin/sh\necho hi\n"))
	rec := teacher.send(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	entries, err := os.ReadDir(a.uploads)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// Scenario C: only the owner (or an admin) may delete an event.
func TestScenarioC_DeleteOwnership(t *testing.T) {
	a := newApp(t)
	teacherA := a.client(t, "198.51.100.40").mustLogin(a.user(t, "alice", model.RoleTeacher, true))
	teacherB := a.client(t, "198.51.100.41").mustLogin(a.user(t, "bob", model.RoleTeacher, true))

	ev := teacherA.createEvent("Event X")
	path := fmt.Sprintf("/events/%d", ev.ID)

	rec := teacherB.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = teacherB.do(http.MethodPut, path, map[string]string{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = teacherA.do(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = teacherA.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateEvent_RoleCheckedBeforeCSRF(t *testing.T) {
	a := newApp(t)
	teacher := a.client(t, "198.51.100.45").mustLogin(a.user(t, "tom", model.RoleTeacher, true))
	student := a.client(t, "198.51.100.46").mustLogin(a.user(t, "sam", model.RoleStudent, true))

	ev := teacher.createEvent("Book swap")
	path := fmt.Sprintf("/events/%d", ev.ID)

	student.csrf = ""
	for _, method := range []string{http.MethodPut, http.MethodPost, http.MethodDelete} {
		rec := student.do(method, path, map[string]string{"title": "Mine"})
		assert.Equal(t, http.StatusForbidden, rec.Code, method)
		assert.Equal(t, "forbidden", errorCode(t, rec), method)
	}

	teacher.csrf = ""
	rec := teacher.do(http.MethodPut, path, map[string]string{"title": "Book swap 2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "security_validation_failed", errorCode(t, rec))
}

func TestUpdateEvent_StatusOnlyForAdmins(t *testing.T) {
	a := newApp(t)
	teacher := a.client(t, "198.51.100.50").mustLogin(a.user(t, "tina", model.RoleTeacher, true))
	admin := a.client(t, "198.51.100.51").mustLogin(a.user(t, "root", model.RoleAdmin, true))

	ev := teacher.createEvent("Choir")
	path := fmt.Sprintf("/events/%d", ev.ID)

	rec := teacher.do(http.MethodPost, path, map[string]string{"title": "Choir concert", "status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[eventResponse](t, rec)
	assert.Equal(t, "Choir concert", got.Title)
	assert.Equal(t, model.EventPending, got.Status)

	rec = admin.do(http.MethodPut, path, map[string]string{"title": "Choir concert", "status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.EventApproved, decode[eventResponse](t, rec).Status)

	rec = admin.do(http.MethodPut, path, map[string]string{"title": "Choir concert", "status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModerate_Gates(t *testing.T) {
	a := newApp(t)
	teacher := a.client(t, "198.51.100.60").mustLogin(a.user(t, "tina", model.RoleTeacher, true))
	admin := a.client(t, "198.51.100.61").mustLogin(a.user(t, "root", model.RoleAdmin, true))
	ev := teacher.createEvent("Quiz")
	path := fmt.Sprintf("/events/%d/moderate", ev.ID)

	tests := []struct {
		name   string
		caller *client
		path   string
		body   map[string]string
		status int
	}{
		{"teacher cannot moderate", teacher, path, map[string]string{"decision": "approve"}, http.StatusForbidden},
		{"missing decision", admin, path, map[string]string{}, http.StatusBadRequest},
		{"unknown decision", admin, path, map[string]string{"decision": "maybe"}, http.StatusBadRequest},
		{"bad id", admin, "/events/abc/moderate", map[string]string{"decision": "approve"}, http.StatusBadRequest},
		{"missing event", admin, "/events/9999/moderate", map[string]string{"decision": "approve"}, http.StatusNotFound},
		{"reject", admin, path, map[string]string{"decision": "reject"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.caller.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestListEvents_BadStatusFilter(t *testing.T) {
	a := newApp(t)
	admin := a.client(t, "198.51.100.70").mustLogin(a.user(t, "root", model.RoleAdmin, true))

	rec := admin.do(http.MethodGet, "/events?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, admin.listEvents("?status=pending"))
}
