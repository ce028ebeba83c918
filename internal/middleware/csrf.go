// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"mime"
	"net/http"

	"filippo.io/csrf/gorilla"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/security"
)

// CSRF token transport.
const (
	CSRFHeader    = "X-CSRF-Token"
	CSRFFormField = "csrf_token"
)

// maxTokenFormBytes caps a urlencoded body parsed only to find the token.
const maxTokenFormBytes = 64 << 10

// CSRFConfig holds configuration for cross-origin request protection.
// filippo.io/csrf/gorilla uses Fetch metadata headers instead of cookies.
type CSRFConfig struct {
	// AuthKey is a 32-byte key kept for API compatibility with gorilla/csrf.
	AuthKey []byte

	// ErrorHandler is called when validation fails.
	ErrorHandler http.Handler

	// TrustedOrigins are host:port values allowed to make cross-origin requests.
	TrustedOrigins []string
}

// DefaultCSRFConfig returns a CSRFConfig with sensible defaults.
func DefaultCSRFConfig(authKey []byte, isDev bool) CSRFConfig {
	cfg := CSRFConfig{
		AuthKey: authKey,
	}

	// csrf expects host-only values, not full URLs
	if isDev {
		cfg.TrustedOrigins = []string{
			"localhost:8080",
			"127.0.0.1:8080",
		}
	}

	return cfg
}

// CSRF rejects cross-origin state-changing requests.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	var opts []csrf.Option

	if cfg.ErrorHandler != nil {
		opts = append(opts, csrf.ErrorHandler(cfg.ErrorHandler))
	} else {
		opts = append(opts, csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)))
	}

	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}

	return csrf.Protect(cfg.AuthKey, opts...)
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	reason := csrf.FailureReason(r)
	reasonStr := "unknown"
	if reason != nil {
		reasonStr = reason.Error()
	}
	slog.Warn("cross-origin request rejected",
		"reason", reasonStr,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)
	WriteError(w, r, apperr.ErrSecurityValidationFailed)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// RequireCSRF checks the session anti-forgery token on every unsafe method.
// The token is read from the X-CSRF-Token header or, for urlencoded bodies
// only, the csrf_token form field. Multipart requests must use the header so
// the body is left for the handler and its size limit.
func RequireCSRF(guard *security.CSRFGuard, audit SecurityLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			supplied := r.Header.Get(CSRFHeader)
			if supplied == "" {
				supplied = formToken(w, r)
			}
			if !guard.Validate(r.Context(), supplied) {
				slog.Warn("csrf token mismatch", "method", r.Method, "path", r.URL.Path, "ip", ClientIP(r))
				if audit != nil {
					_ = audit.LogSecurity(r.Context(), "CSRF validation failed", GetUserIDPtr(r), ClientIP(r), map[string]any{
						"method": r.Method,
						"path":   r.URL.Path,
					})
				}
				WriteError(w, r, apperr.ErrSecurityValidationFailed)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func formToken(w http.ResponseWriter, r *http.Request) string {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/x-www-form-urlencoded" {
		return ""
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxTokenFormBytes)
	return r.PostFormValue(CSRFFormField)
}
