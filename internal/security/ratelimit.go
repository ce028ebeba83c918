// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package security

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/metrics"
)

// Limited actions.
const (
	ActionLogin         = "login"
	ActionRegister      = "register"
	ActionPasswordReset = "password_reset"
)

// Policy is the attempt ceiling for one action.
type Policy struct {
	Action      string
	MaxAttempts int
	Window      time.Duration
}

// Built-in policies.
var (
	LoginPolicy         = Policy{Action: ActionLogin, MaxAttempts: 5, Window: 900 * time.Second}
	RegisterPolicy      = Policy{Action: ActionRegister, MaxAttempts: 5, Window: 3600 * time.Second}
	PasswordResetPolicy = Policy{Action: ActionPasswordReset, MaxAttempts: 3, Window: 1800 * time.Second}
)

// GuestMarker stands in for the user id before login.
const GuestMarker = "guest"

// ClientKey builds the limiter key from the network origin and the session
// identity. userID 0 means no authenticated session.
func ClientKey(ip string, userID int64) string {
	who := GuestMarker
	if userID > 0 {
		who = strconv.FormatInt(userID, 10)
	}
	return ip + "|" + who
}

// Backend stores attempt counters.
type Backend interface {
	// Hit counts one attempt against key and reports whether it is allowed.
	// A new or expired window starts at one and is allowed. Within an open
	// window the attempt is denied once the count has reached limit.
	Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Reset clears the counter for key.
	Reset(ctx context.Context, key string) error
	// Sweep removes expired counters and returns how many were dropped.
	Sweep(ctx context.Context) (int, error)
}

// RateLimiter applies attempt windows per (action, client key).
type RateLimiter struct {
	backend Backend
	metrics *metrics.Metrics
}

// NewRateLimiter creates a limiter over backend. m may be nil.
func NewRateLimiter(backend Backend, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{backend: backend, metrics: m}
}

func entryKey(action, clientKey string) string {
	return action + ":" + clientKey
}

// Check counts an attempt and reports whether it is within the ceiling.
func (l *RateLimiter) Check(ctx context.Context, action, clientKey string, maxAttempts int, window time.Duration) (bool, error) {
	ok, err := l.backend.Hit(ctx, entryKey(action, clientKey), maxAttempts, window)
	if err != nil {
		return false, apperr.Storage(err, "checking rate limit")
	}
	if !ok {
		l.metrics.RateLimited(action)
		slog.Warn("rate limit exceeded", "action", action, "client", clientKey)
	}
	return ok, nil
}

// Allow applies p and returns apperr.ErrRateLimited when the ceiling is hit.
func (l *RateLimiter) Allow(ctx context.Context, p Policy, clientKey string) error {
	ok, err := l.Check(ctx, p.Action, clientKey, p.MaxAttempts, p.Window)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrRateLimited
	}
	return nil
}

// Reset clears the counter for (action, clientKey).
func (l *RateLimiter) Reset(ctx context.Context, action, clientKey string) error {
	if err := l.backend.Reset(ctx, entryKey(action, clientKey)); err != nil {
		return apperr.Storage(err, "resetting rate limit")
	}
	return nil
}

// ResetLogin clears the login counter for clientKey.
func (l *RateLimiter) ResetLogin(ctx context.Context, clientKey string) error {
	return l.Reset(ctx, ActionLogin, clientKey)
}

// Sweep drops expired counters from the backend.
func (l *RateLimiter) Sweep(ctx context.Context) (int, error) {
	return l.backend.Sweep(ctx)
}
