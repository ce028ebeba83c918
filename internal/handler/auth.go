// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/metrics"
	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/security"
	"github.com/olegiv/eventboard/internal/service"
	"github.com/olegiv/eventboard/internal/session"
)

// Messages shown to clients whatever the outcome, so they reveal nothing
// about which accounts exist.
const (
	msgResetRequested  = "If an account exists for that email, a password reset link has been sent."
	msgPendingApproval = "Registration successful. Your teacher account is awaiting administrator approval."
	msgRegistered      = "Registration successful. You can now log in."
)

// AuthHandler handles registration, login and password recovery.
type AuthHandler struct {
	accounts *service.AccountService
	sessions *session.Store
	csrf     *security.CSRFGuard
	limiter  *security.RateLimiter
	audit    *service.AuditService
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *service.AccountService, sessions *session.Store, csrf *security.CSRFGuard,
	limiter *security.RateLimiter, audit *service.AuditService, m *metrics.Metrics, v *validator.Validate) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		csrf:     csrf,
		limiter:  limiter,
		audit:    audit,
		metrics:  m,
		validate: v,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrf_token"`
}

type sessionResponse struct {
	User      session.Identity `json:"user"`
	CSRFToken string           `json:"csrf_token,omitempty"`
}

type registerResponse struct {
	User            model.User `json:"user"`
	PendingApproval bool       `json:"pending_approval"`
	Message         string     `json:"message"`
}

// clientKey returns the limiter key for the request.
func clientKey(r *http.Request) string {
	return security.ClientKey(middleware.ClientIP(r), middleware.GetUserID(r))
}

// limit counts one attempt against p and records a security audit entry
// when the ceiling is hit.
func (h *AuthHandler) limit(ctx context.Context, r *http.Request, p security.Policy, key string) error {
	err := h.limiter.Allow(ctx, p, key)
	if errors.Is(err, apperr.ErrRateLimited) {
		slog.Warn("rate limit exceeded", "action", p.Action, "ip", middleware.ClientIP(r))
		_ = h.audit.LogSecurity(ctx, "Rate limit exceeded", middleware.GetUserIDPtr(r), middleware.ClientIP(r), map[string]any{
			"action": p.Action,
		})
	}
	return err
}

// CSRFToken handles GET /auth/csrf and returns the session's anti-forgery token.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.Issue(r.Context())
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, csrfResponse{CSRFToken: token})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := clientKey(r)

	if err := h.limit(ctx, r, security.RegisterPolicy, key); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	var in service.RegisterInput
	if err := decodeJSON(r, nil, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	user, err := h.accounts.Register(ctx, in, middleware.ClientIP(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	if err := h.limiter.Reset(ctx, security.ActionRegister, key); err != nil {
		slog.Warn("failed to reset register attempts", "error", err)
	}

	resp := registerResponse{User: user, PendingApproval: user.NeedsApproval(), Message: msgRegistered}
	if resp.PendingApproval {
		resp.Message = msgPendingApproval
	}
	writeJSONSuccess(w, http.StatusCreated, resp)
}

// Login handles POST /auth/login. A successful login renews the session
// token and clears the client's login attempts.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := clientKey(r)

	if err := h.limit(ctx, r, security.LoginPolicy, key); err != nil {
		if errors.Is(err, apperr.ErrRateLimited) {
			h.metrics.Login("limited")
		}
		middleware.WriteError(w, r, err)
		return
	}

	var in loginRequest
	if err := decodeJSON(r, h.validate, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	user, err := h.accounts.Login(ctx, in.Email, in.Password, middleware.ClientIP(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	id, err := h.sessions.Authenticate(ctx, user, key)
	if err != nil {
		if id.UserID == 0 {
			middleware.WriteError(w, r, err)
			return
		}
		slog.Warn("failed to reset login attempts", "user_id", user.ID, "error", err)
	}

	token, err := h.csrf.Issue(ctx)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSONSuccess(w, http.StatusOK, sessionResponse{User: id, CSRFToken: token})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.accounts.Logout(r.Context(), actorFrom(r))
	if err := h.sessions.Destroy(r.Context()); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, "Logged out.")
}

// Me handles GET /auth/me and returns the session identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r)
	if !ok {
		middleware.WriteError(w, r, apperr.ErrUnauthenticated)
		return
	}
	writeJSONSuccess(w, http.StatusOK, sessionResponse{User: id})
}

// ForgotPassword handles POST /auth/password/forgot. The response is the
// same whether or not the address belongs to an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.limit(ctx, r, security.PasswordResetPolicy, clientKey(r)); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	var in forgotRequest
	if err := decodeJSON(r, nil, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	if err := h.accounts.RequestPasswordReset(ctx, in.Email, middleware.ClientIP(r)); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, msgResetRequested)
}

// ResetPassword handles POST /auth/password/reset.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if err := decodeJSON(r, nil, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), in.Token, in.Password, middleware.ClientIP(r)); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, "Your password has been reset. You can now log in.")
}
