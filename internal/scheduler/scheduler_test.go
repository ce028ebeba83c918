// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/notify"
	"github.com/olegiv/eventboard/internal/security"
	"github.com/olegiv/eventboard/internal/service"
	"github.com/olegiv/eventboard/internal/testutil"
)

func TestAdd_ValidatesSchedule(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	noop := func(context.Context) (int64, error) { return 0, nil }

	if err := s.Add("bad", "", "every minute", noop); err == nil {
		t.Error("Add() accepted an invalid schedule")
	}
	if err := s.Add("ok", "", "*/5 * * * *", noop); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("ok", "", "*/5 * * * *", noop); err == nil {
		t.Error("Add() accepted a duplicate name")
	}
}

func TestTrigger(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	boom := errors.New("boom")
	calls := 0
	fail := false
	task := func(context.Context) (int64, error) {
		calls++
		if fail {
			return 0, boom
		}
		return 3, nil
	}
	if err := s.Add("count", "counts", "0 * * * *", task); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	n, err := s.Trigger(context.Background(), "count")
	if err != nil || n != 3 {
		t.Fatalf("Trigger() = %d, %v; want 3, nil", n, err)
	}

	fail = true
	if _, err := s.Trigger(context.Background(), "count"); !errors.Is(err, boom) {
		t.Errorf("Trigger() error = %v, want boom", err)
	}
	if calls != 2 {
		t.Errorf("task ran %d times, want 2", calls)
	}

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("Jobs() len = %d, want 1", len(jobs))
	}
	if jobs[0].LastRun.IsZero() {
		t.Error("LastRun not recorded")
	}
	if jobs[0].LastError != "boom" {
		t.Errorf("LastError = %q, want boom", jobs[0].LastError)
	}

	if _, err := s.Trigger(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Trigger(missing) error = %v, want ErrUnknownJob", err)
	}
}

func TestTrigger_RespectsTimeout(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	s.timeout = 10 * time.Millisecond
	_ = s.Add("slow", "", "0 * * * *", func(ctx context.Context) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	if _, err := s.Trigger(context.Background(), "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Trigger() error = %v, want deadline exceeded", err)
	}
}

func TestRegisterHousekeeping(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	audit := service.NewAuditService(db)
	h := Housekeeping{
		Inbox:    notify.NewInbox(db),
		Accounts: service.NewAccountService(service.Deps{DB: db, Notifier: notify.NewAsyncDispatcher(db, nil, nil, nil, notify.DefaultConfig())}, ""),
		Limiter:  security.NewRateLimiter(security.NewMemoryBackend(time.Now), nil),
		Throttle: middleware.NewIPThrottle(1, 1),
		Audit:    audit,
	}

	s := New(testutil.TestLoggerSilent())
	if err := s.RegisterHousekeeping(h); err != nil {
		t.Fatalf("RegisterHousekeeping() error = %v", err)
	}

	want := []string{JobAuditRetention, JobNotifications, JobPasswordResets, JobRateLimits}
	jobs := s.Jobs()
	if len(jobs) != len(want) {
		t.Fatalf("Jobs() len = %d, want %d", len(jobs), len(want))
	}
	for i, name := range want {
		if jobs[i].Name != name {
			t.Errorf("Jobs()[%d] = %s, want %s", i, jobs[i].Name, name)
		}
		if _, err := s.Trigger(context.Background(), name); err != nil {
			t.Errorf("Trigger(%s) error = %v", name, err)
		}
	}

	if err := audit.Log(context.Background(), model.AuditLevelInfo, model.AuditCategorySystem, "old", nil, "", nil); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	n, err := s.Trigger(context.Background(), JobAuditRetention)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if n != 0 {
		t.Errorf("audit retention removed %d fresh entries", n)
	}
}

func TestRegisterHousekeeping_SkipsNil(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	if err := s.RegisterHousekeeping(Housekeeping{}); err != nil {
		t.Fatalf("RegisterHousekeeping() error = %v", err)
	}
	if n := len(s.Jobs()); n != 0 {
		t.Errorf("Jobs() len = %d, want 0", n)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	s.Start()
	s.Stop()
}
