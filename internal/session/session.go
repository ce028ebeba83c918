// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session binds an authenticated identity to an HTTP session.
// The session data itself lives in scs; this package owns the identity
// snapshot, the idle timeout and token renewal on login.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/model"
)

// DefaultIdleTimeout is the longest allowed gap between two requests.
const DefaultIdleTimeout = 1800 * time.Second

// Session keys for the identity snapshot. Timestamps are stored as Unix
// nanoseconds.
const (
	KeyUserID       = "user_id"
	KeyUserName     = "user_name"
	KeyUserEmail    = "user_email"
	KeyUserRole     = "user_role"
	KeyLoginAt      = "login_at"
	KeyLastActivity = "last_activity"
)

var errIdle = errors.New("session idle timeout exceeded")

// ErrTimedOut is returned by Touch when the idle timeout has elapsed.
// It matches apperr.ErrUnauthenticated.
var ErrTimedOut = apperr.Wrap(errIdle, apperr.Unauthenticated, "session expired")

// IsTimedOut reports whether err came from an idle timeout.
func IsTimedOut(err error) bool {
	return errors.Is(err, errIdle)
}

// New creates a new session manager configured with SQLite store.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()

	sm.Store = sqlite3store.New(db)

	sm.Lifetime = 24 * time.Hour
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = !isDev // Secure cookies in production only
	if !isDev {
		sm.Cookie.Name = "__Host-session"
	}

	return sm
}

// Identity is the snapshot of the logged-in user kept in the session.
type Identity struct {
	UserID       int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         model.Role `json:"role"`
	LoginAt      time.Time  `json:"login_at"`
	LastActivity time.Time  `json:"last_activity"`
}

// AttemptResetter clears the login attempt counter for a client.
type AttemptResetter interface {
	ResetLogin(ctx context.Context, clientKey string) error
}

// Store manages authenticated sessions.
type Store struct {
	sm          *scs.SessionManager
	idleTimeout time.Duration
	attempts    AttemptResetter
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Store) { s.idleTimeout = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithAttemptResetter sets the limiter whose login counter is cleared on
// successful authentication.
func WithAttemptResetter(r AttemptResetter) Option {
	return func(s *Store) { s.attempts = r }
}

// NewStore creates a Store over sm.
func NewStore(sm *scs.SessionManager, opts ...Option) *Store {
	s := &Store{
		sm:          sm,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Manager returns the underlying scs session manager.
func (s *Store) Manager() *scs.SessionManager {
	return s.sm
}

// LoadAndSave is the scs middleware that loads and commits session data.
func (s *Store) LoadAndSave(next http.Handler) http.Handler {
	return s.sm.LoadAndSave(next)
}

// Authenticate starts a session for an already verified user. The session
// token is renewed to prevent fixation and the login attempt counter for
// clientKey is cleared.
func (s *Store) Authenticate(ctx context.Context, user model.User, clientKey string) (Identity, error) {
	if err := s.sm.RenewToken(ctx); err != nil {
		return Identity{}, apperr.Wrap(err, apperr.StorageFailure, "renewing session token")
	}

	now := s.now()
	id := Identity{
		UserID:       user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		LoginAt:      now,
		LastActivity: now,
	}
	s.sm.Put(ctx, KeyUserID, id.UserID)
	s.sm.Put(ctx, KeyUserName, id.Name)
	s.sm.Put(ctx, KeyUserEmail, id.Email)
	s.sm.Put(ctx, KeyUserRole, string(id.Role))
	s.sm.Put(ctx, KeyLoginAt, now.UnixNano())
	s.sm.Put(ctx, KeyLastActivity, now.UnixNano())

	if s.attempts != nil && clientKey != "" {
		if err := s.attempts.ResetLogin(ctx, clientKey); err != nil {
			return id, fmt.Errorf("resetting login attempts: %w", err)
		}
	}
	return id, nil
}

// Current returns the identity stored in the session. It reports false when
// there is none or the session has been idle past the timeout. Current never
// modifies the session; Touch destroys expired ones.
func (s *Store) Current(ctx context.Context) (Identity, bool) {
	id, ok := s.snapshot(ctx)
	if !ok || s.expired(id) {
		return Identity{}, false
	}
	return id, true
}

func (s *Store) expired(id Identity) bool {
	return s.now().Sub(id.LastActivity) > s.idleTimeout
}

func (s *Store) snapshot(ctx context.Context) (Identity, bool) {
	userID := s.sm.GetInt64(ctx, KeyUserID)
	if userID == 0 {
		return Identity{}, false
	}
	role, err := model.ParseRole(s.sm.GetString(ctx, KeyUserRole))
	if err != nil {
		return Identity{}, false
	}
	return Identity{
		UserID:       userID,
		Name:         s.sm.GetString(ctx, KeyUserName),
		Email:        s.sm.GetString(ctx, KeyUserEmail),
		Role:         role,
		LoginAt:      time.Unix(0, s.sm.GetInt64(ctx, KeyLoginAt)).UTC(),
		LastActivity: time.Unix(0, s.sm.GetInt64(ctx, KeyLastActivity)).UTC(),
	}, true
}

// Touch records activity for the current request. A session idle for longer
// than the timeout is destroyed and ErrTimedOut returned. Without a session
// it returns apperr.ErrUnauthenticated.
func (s *Store) Touch(ctx context.Context) (Identity, error) {
	id, ok := s.snapshot(ctx)
	if !ok {
		return Identity{}, apperr.ErrUnauthenticated
	}

	if s.expired(id) {
		if err := s.Destroy(ctx); err != nil {
			return Identity{}, err
		}
		return Identity{}, ErrTimedOut
	}

	now := s.now()
	id.LastActivity = now
	s.sm.Put(ctx, KeyLastActivity, now.UnixNano())
	return id, nil
}

// Destroy removes all session state. Calling it on an empty session is a no-op.
func (s *Store) Destroy(ctx context.Context) error {
	if err := s.sm.Destroy(ctx); err != nil {
		return apperr.Wrap(err, apperr.StorageFailure, "destroying session")
	}
	return nil
}
