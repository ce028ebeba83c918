// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"time"

	"github.com/olegiv/eventboard/internal/geoip"
	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/notify"
	"github.com/olegiv/eventboard/internal/security"
	"github.com/olegiv/eventboard/internal/service"
)

// Housekeeping job names.
const (
	JobNotifications  = "notifications_cleanup"
	JobPasswordResets = "password_resets_cleanup"
	JobRateLimits     = "rate_limit_sweep"
	JobAuditRetention = "audit_retention"
	JobGeoIPReload    = "geoip_reload"
)

// Default schedules.
const (
	ScheduleNotifications  = "30 3 * * *"
	SchedulePasswordResets = "15 * * * *"
	ScheduleRateLimits     = "*/5 * * * *"
	ScheduleAuditRetention = "0 4 * * *"
	ScheduleGeoIPReload    = "0 5 * * *"
)

// DefaultAuditRetention is how long audit entries are kept.
const DefaultAuditRetention = 90 * 24 * time.Hour

// Housekeeping lists what gets cleaned up. Nil fields skip their job.
type Housekeeping struct {
	Inbox          *notify.Inbox
	Accounts       *service.AccountService
	Limiter        *security.RateLimiter
	Throttle       *middleware.IPThrottle
	Audit          *service.AuditService
	AuditRetention time.Duration
	GeoIP          *geoip.Lookup
}

// RegisterHousekeeping adds the cleanup jobs for every non-nil target.
func (s *Scheduler) RegisterHousekeeping(h Housekeeping) error {
	if h.Inbox != nil {
		if err := s.Add(JobNotifications, "Delete notifications read more than 30 days ago",
			ScheduleNotifications, h.Inbox.Cleanup); err != nil {
			return err
		}
	}

	if h.Accounts != nil {
		if err := s.Add(JobPasswordResets, "Delete used and expired password reset tokens",
			SchedulePasswordResets, h.Accounts.PurgeExpiredResets); err != nil {
			return err
		}
	}

	if h.Limiter != nil || h.Throttle != nil {
		sweep := func(ctx context.Context) (int64, error) {
			var removed int64
			if h.Limiter != nil {
				n, err := h.Limiter.Sweep(ctx)
				if err != nil {
					return removed, err
				}
				removed += int64(n)
			}
			if h.Throttle != nil && h.Throttle.Sweep() {
				removed++
			}
			return removed, nil
		}
		if err := s.Add(JobRateLimits, "Drop expired rate limit counters",
			ScheduleRateLimits, sweep); err != nil {
			return err
		}
	}

	if h.Audit != nil {
		retention := h.AuditRetention
		if retention <= 0 {
			retention = DefaultAuditRetention
		}
		purge := func(ctx context.Context) (int64, error) {
			return h.Audit.DeleteOlderThan(ctx, retention)
		}
		if err := s.Add(JobAuditRetention, "Delete audit entries past the retention period",
			ScheduleAuditRetention, purge); err != nil {
			return err
		}
	}

	if h.GeoIP != nil {
		if err := s.Add(JobGeoIPReload, "Reload the GeoIP database when the file changes",
			ScheduleGeoIPReload, h.GeoIP.Reload); err != nil {
			return err
		}
	}

	return nil
}
