// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/session"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for request data.
const (
	ContextKeyIdentity    ContextKey = "identity"
	ContextKeyTimedOut    ContextKey = "session_timed_out"
	ContextKeyRequestPath ContextKey = "request_path"
)

// SecurityLogger records rejected requests.
type SecurityLogger interface {
	LogSecurity(ctx context.Context, message string, userID *int64, ip string, metadata map[string]any) error
}

// LoadIdentity resolves the session identity and applies the idle timeout.
// It must run inside the session manager's LoadAndSave.
func LoadIdentity(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := store.Touch(r.Context())
			switch {
			case err == nil:
				ctx := context.WithValue(r.Context(), ContextKeyIdentity, id)
				r = r.WithContext(ctx)
			case session.IsTimedOut(err):
				slog.InfoContext(r.Context(), "session idle timeout", "path", r.URL.Path, "ip", ClientIP(r))
				ctx := context.WithValue(r.Context(), ContextKeyTimedOut, true)
				r = r.WithContext(ctx)
			case apperr.KindOf(err) != apperr.Unauthenticated:
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity returns the authenticated identity, if any.
func GetIdentity(r *http.Request) (session.Identity, bool) {
	id, ok := r.Context().Value(ContextKeyIdentity).(session.Identity)
	return id, ok
}

// GetUserID returns the current user's ID, or 0 when anonymous.
func GetUserID(r *http.Request) int64 {
	if id, ok := GetIdentity(r); ok {
		return id.UserID
	}
	return 0
}

// GetUserIDPtr returns a pointer to the current user's ID, or nil when anonymous.
func GetUserIDPtr(r *http.Request) *int64 {
	if id, ok := GetIdentity(r); ok {
		userID := id.UserID
		return &userID
	}
	return nil
}

// SessionTimedOut reports whether this request's session expired from idleness.
func SessionTimedOut(r *http.Request) bool {
	v, _ := r.Context().Value(ContextKeyTimedOut).(bool)
	return v
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetIdentity(r); !ok {
			if SessionTimedOut(r) {
				WriteAPIError(w, http.StatusUnauthorized, string(apperr.Unauthenticated),
					"Your session has expired. Please log in again.", nil)
				return
			}
			WriteError(w, r, apperr.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only the listed roles. Denials are logged and, when
// audit is set, written to the audit log.
func RequireRole(audit SecurityLogger, roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := GetIdentity(r)
			if !slices.Contains(roles, id.Role) {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", id.UserID,
					"user_role", id.Role,
					"remote_addr", ClientIP(r),
				)
				if audit != nil {
					userID := id.UserID
					_ = audit.LogSecurity(r.Context(), "Access denied: insufficient permissions", &userID, ClientIP(r), map[string]any{
						"method":    r.Method,
						"path":      r.URL.Path,
						"user_role": string(id.Role),
					})
				}
				WriteError(w, r, apperr.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RequireAdmin allows only admins.
func RequireAdmin(audit SecurityLogger) func(http.Handler) http.Handler {
	return RequireRole(audit, model.RoleAdmin)
}

// RequestPath creates middleware that stores the request path in the context.
// This is used by the logging handler to include the URL in error logs.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKeyRequestPath, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestPath retrieves the request path from the context.
func GetRequestPath(ctx context.Context) string {
	path, ok := ctx.Value(ContextKeyRequestPath).(string)
	if !ok {
		return ""
	}
	return path
}
