// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/scheduler"
)

func TestJobs_ListAndTrigger(t *testing.T) {
	a := newApp(t)
	admin := a.client(t, "203.0.113.10").mustLogin(a.user(t, "root", model.RoleAdmin, true))

	rec := admin.do(http.MethodGet, "/admin/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	jobs := decode[jobListResponse](t, rec).Jobs
	require.Len(t, jobs, 2)
	assert.Equal(t, scheduler.JobAuditRetention, jobs[0].Name)
	assert.Equal(t, scheduler.JobNotifications, jobs[1].Name)
	assert.Nil(t, jobs[1].LastRun)

	rec = admin.do(http.MethodPost, "/admin/jobs/"+scheduler.JobNotifications+"/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decode[jobRunResponse](t, rec)
	assert.Equal(t, scheduler.JobNotifications, run.Job)
	assert.Zero(t, run.Removed)

	rec = admin.do(http.MethodGet, "/admin/jobs", nil)
	jobs = decode[jobListResponse](t, rec).Jobs
	assert.NotNil(t, jobs[1].LastRun)
	assert.Empty(t, jobs[1].LastError)

	entries, err := a.audit.List(context.Background(), model.AuditCategorySystem, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "Job manually triggered: "+scheduler.JobNotifications, entries[0].Message)
}

func TestJobs_Trigger_UnknownJob(t *testing.T) {
	a := newApp(t)
	admin := a.client(t, "203.0.113.10").mustLogin(a.user(t, "root", model.RoleAdmin, true))

	rec := admin.do(http.MethodPost, "/admin/jobs/defragment/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestJobs_RequireAdmin(t *testing.T) {
	a := newApp(t)
	teacher := a.client(t, "203.0.113.1").mustLogin(a.user(t, "tina", model.RoleTeacher, true))

	assert.Equal(t, http.StatusForbidden, teacher.do(http.MethodGet, "/admin/jobs", nil).Code)
	assert.Equal(t, http.StatusForbidden,
		teacher.do(http.MethodPost, "/admin/jobs/"+scheduler.JobNotifications+"/run", nil).Code)
}
