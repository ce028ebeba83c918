// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/eventboard/internal/model"
)

func TestAuditService_Log(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "admin", model.RoleAdmin, true)

	require.NoError(t, f.audit.LogSecurity(ctx, "CSRF validation failed", &u.ID, "203.0.113.9", map[string]any{"path": "/events"}))
	require.NoError(t, f.audit.LogEvent(ctx, model.AuditLevelInfo, "Event created", nil, "", nil))

	all, err := f.audit.List(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	sec, err := f.audit.List(ctx, model.AuditCategorySecurity, 10, 0)
	require.NoError(t, err)
	require.Len(t, sec, 1)
	assert.Equal(t, model.AuditLevelWarning, sec[0].Level)
	assert.Equal(t, u.ID, sec[0].UserID.Int64)
	assert.JSONEq(t, `{"path":"/events"}`, sec[0].Metadata)

	ev, err := f.audit.List(ctx, model.AuditCategoryEvent, 10, 0)
	require.NoError(t, err)
	require.Len(t, ev, 1)
	assert.False(t, ev[0].UserID.Valid)
	assert.Equal(t, "{}", ev[0].Metadata)
}

func TestAuditService_DeleteOlderThan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.audit.LogAuth(ctx, model.AuditLevelInfo, "old", nil, "", nil))
	f.clock.Advance(48 * time.Hour)
	require.NoError(t, f.audit.LogAuth(ctx, model.AuditLevelInfo, "new", nil, "", nil))

	n, err := f.audit.DeleteOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := f.audit.List(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].Message)
}

func TestAuditService_NilDiscards(t *testing.T) {
	var s *AuditService
	assert.NoError(t, s.Log(context.Background(), model.AuditLevelInfo, model.AuditCategorySystem, "x", nil, "", nil))
}

type fakeLocator map[string]string

func (f fakeLocator) Country(ip string) string { return f[ip] }

func TestAuditService_LocatorAddsCountry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.audit.SetLocator(fakeLocator{"203.0.113.9": "NL"})

	meta := map[string]any{"path": "/auth/login"}
	require.NoError(t, f.audit.LogSecurity(ctx, "Rate limit exceeded", nil, "203.0.113.9", meta))
	require.NoError(t, f.audit.LogSecurity(ctx, "Rate limit exceeded", nil, "198.51.100.1", nil))
	require.NoError(t, f.audit.LogAuth(ctx, model.AuditLevelInfo, "User logged out", nil, "", nil))

	assert.NotContains(t, meta, "country", "caller's map is left alone")

	entries, err := f.audit.List(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	byIP := make(map[string]string)
	for _, e := range entries {
		byIP[e.IPAddress] = e.Metadata
	}
	assert.JSONEq(t, `{"path":"/auth/login","country":"NL"}`, byIP["203.0.113.9"])
	assert.Equal(t, "{}", byIP["198.51.100.1"])
	assert.Equal(t, "{}", byIP[""])
}
