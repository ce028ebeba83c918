// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/auth"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/notify"
	"github.com/olegiv/eventboard/internal/store"
)

// PasswordResetTTL is how long a reset link stays valid.
const PasswordResetTTL = time.Hour

// Login outcomes reported to metrics.
const (
	loginSuccess     = "success"
	loginInvalid     = "invalid"
	loginNotApproved = "not_approved"
)

// RegisterInput is a self-service sign-up request.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=student teacher"`
}

// AccountService runs registration, the teacher approval workflow, the login
// gate and password resets.
type AccountService struct {
	deps         Deps
	queries      *store.Queries
	resetBaseURL string
}

// NewAccountService creates a new AccountService. resetBaseURL is the public
// address reset links point to.
func NewAccountService(deps Deps, resetBaseURL string) *AccountService {
	deps = deps.withDefaults()
	return &AccountService{
		deps:         deps,
		queries:      store.New(deps.DB),
		resetBaseURL: strings.TrimRight(resetBaseURL, "/"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a student (active immediately) or a teacher (pending
// admin approval).
func (s *AccountService) Register(ctx context.Context, in RegisterInput, ip string) (model.User, error) {
	in.Name = plainText(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))

	if err := s.deps.Validator.Struct(in); err != nil {
		return model.User{}, ValidationError(err)
	}
	if problems := auth.ValidatePassword(in.Password); len(problems) > 0 {
		return model.User{}, apperr.New(apperr.Validation, strings.Join(problems, " "))
	}
	role, err := model.ParseRole(in.Role)
	if err != nil || !role.SelfRegisterable() {
		return model.User{}, apperr.New(apperr.Validation, "role must be one of: student teacher")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		Approved:     role == model.RoleStudent,
		CreatedAt:    s.deps.Now(),
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return model.User{}, apperr.Wrap(err, apperr.Conflict, "email address is already registered")
		}
		return model.User{}, apperr.Storage(err, "creating user")
	}

	if user.NeedsApproval() {
		s.notifyAdmins(ctx, notify.TeacherRegisteredMessage(user))
	} else {
		s.deps.Notifier.SendMail(ctx, notify.WelcomeMail(user))
	}

	_ = s.deps.Audit.LogAccount(ctx, model.AuditLevelInfo, "User registered", &user.ID, ip, map[string]any{
		"email": user.Email,
		"role":  string(user.Role),
	})
	return user, nil
}

func (s *AccountService) notifyAdmins(ctx context.Context, msg notify.Message) {
	adminIDs, err := s.queries.ListUserIDsByRole(ctx, model.RoleAdmin)
	if err != nil {
		s.deps.Logger.Error("failed to list admins for notification", "error", err, "title", msg.Title)
		return
	}
	s.deps.Notifier.CreateForUsers(ctx, adminIDs, msg)
}

// Login verifies credentials and the teacher approval gate. Unknown emails and
// wrong passwords both yield InvalidCredentials after the same hashing work.
func (s *AccountService) Login(ctx context.Context, email, password, ip string) (model.User, error) {
	email = normalizeEmail(email)

	user, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return model.User{}, apperr.Storage(err, "loading user")
		}
		auth.CheckDummy(password)
		s.loginFailed(ctx, loginInvalid, nil, email, ip)
		return model.User{}, apperr.ErrInvalidCredentials
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		s.deps.Logger.Error("stored password hash is unreadable", "error", err, "user_id", user.ID)
	}
	if !ok {
		s.loginFailed(ctx, loginInvalid, &user.ID, email, ip)
		return model.User{}, apperr.ErrInvalidCredentials
	}
	if user.NeedsApproval() {
		s.loginFailed(ctx, loginNotApproved, &user.ID, email, ip)
		return model.User{}, apperr.ErrAccountNotApproved
	}

	now := s.deps.Now()
	if auth.NeedsRehash(user.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{ID: user.ID, PasswordHash: hash, UpdatedAt: now}); err != nil {
				s.deps.Logger.Warn("failed to upgrade password hash", "error", err, "user_id", user.ID)
			} else {
				user.PasswordHash = hash
			}
		}
	}
	if err := s.queries.UpdateUserLastLogin(ctx, user.ID, now); err != nil {
		s.deps.Logger.Warn("failed to update last login", "error", err, "user_id", user.ID)
	} else {
		user.LastLoginAt = sql.NullTime{Time: now, Valid: true}
	}

	s.deps.Metrics.Login(loginSuccess)
	_ = s.deps.Audit.LogAuth(ctx, model.AuditLevelInfo, "User logged in", &user.ID, ip, map[string]any{"email": user.Email})
	return user, nil
}

func (s *AccountService) loginFailed(ctx context.Context, outcome string, userID *int64, email, ip string) {
	s.deps.Metrics.Login(outcome)
	_ = s.deps.Audit.LogAuth(ctx, model.AuditLevelWarning, "Failed login attempt", userID, ip, map[string]any{
		"email":  email,
		"reason": outcome,
	})
}

// Logout records the end of a session.
func (s *AccountService) Logout(ctx context.Context, actor Actor) {
	_ = s.deps.Audit.LogAuth(ctx, model.AuditLevelInfo, "User logged out", actor.userID(), actor.IP, nil)
}

// Approve activates a pending teacher. Approving an already active teacher is
// a no-op success.
func (s *AccountService) Approve(ctx context.Context, actor Actor, userID int64) (model.User, error) {
	if !auth.CanModerate(actor.Role) {
		return model.User{}, apperr.ErrForbidden
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if user.Role != model.RoleTeacher {
		return model.User{}, apperr.New(apperr.Validation, "only teacher accounts require approval")
	}
	if user.Approved {
		return user, nil
	}

	now := s.deps.Now()
	n, err := s.queries.ApproveUser(ctx, store.ApproveUserParams{ID: user.ID, ApprovedBy: actor.UserID, ApprovedAt: now})
	if err != nil {
		return model.User{}, apperr.Storage(err, "approving user")
	}
	if n == 0 {
		// Approved concurrently; report the stored state.
		return s.loadUser(ctx, userID)
	}
	user.Approved = true
	user.ApprovedBy = sql.NullInt64{Int64: actor.UserID, Valid: true}
	user.ApprovedAt = sql.NullTime{Time: now, Valid: true}

	s.deps.Notifier.Create(ctx, notify.AccountApprovedMessage(user.ID))
	s.deps.Notifier.SendMail(ctx, notify.WelcomeMail(user))
	s.deps.Metrics.Transition("account", "approved")
	_ = s.deps.Audit.LogAccount(ctx, model.AuditLevelInfo, "Teacher account approved", actor.userID(), actor.IP, map[string]any{
		"teacher_id": user.ID,
		"email":      user.Email,
	})
	return user, nil
}

// Reject permanently deletes a pending teacher registration. The removed
// account is kept in the audit log.
func (s *AccountService) Reject(ctx context.Context, actor Actor, userID int64) error {
	if !auth.CanModerate(actor.Role) {
		return apperr.ErrForbidden
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role != model.RoleTeacher {
		return apperr.New(apperr.Validation, "only teacher accounts can be rejected")
	}
	if user.Approved {
		return apperr.New(apperr.Conflict, "approved teachers cannot be rejected")
	}

	n, err := s.queries.DeletePendingTeacher(ctx, user.ID)
	if err != nil {
		return apperr.Storage(err, "deleting pending teacher")
	}
	if n == 0 {
		return apperr.New(apperr.Conflict, "teacher is no longer pending")
	}

	s.deps.Notifier.SendMail(ctx, notify.RegistrationDeclinedMail(user))
	s.deps.Metrics.Transition("account", "rejected")
	_ = s.deps.Audit.LogAccount(ctx, model.AuditLevelWarning, "Teacher registration rejected and deleted", actor.userID(), actor.IP, map[string]any{
		"teacher_id": user.ID,
		"name":       user.Name,
		"email":      user.Email,
	})
	return nil
}

// ListPendingTeachers returns teachers awaiting approval, oldest first.
func (s *AccountService) ListPendingTeachers(ctx context.Context, actor Actor) ([]model.User, error) {
	if !auth.CanModerate(actor.Role) {
		return nil, apperr.ErrForbidden
	}
	users, err := s.queries.ListPendingTeachers(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "listing pending teachers")
	}
	return users, nil
}

// ListApprovedTeachers returns the most recently approved teachers.
func (s *AccountService) ListApprovedTeachers(ctx context.Context, actor Actor, limit int) ([]model.ApprovedTeacher, error) {
	if !auth.CanModerate(actor.Role) {
		return nil, apperr.ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	teachers, err := s.queries.ListApprovedTeachers(ctx, int64(limit))
	if err != nil {
		return nil, apperr.Storage(err, "listing approved teachers")
	}
	return teachers, nil
}

// Get returns a user by id.
func (s *AccountService) Get(ctx context.Context, userID int64) (model.User, error) {
	return s.loadUser(ctx, userID)
}

func (s *AccountService) loadUser(ctx context.Context, id int64) (model.User, error) {
	user, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, apperr.New(apperr.NotFound, "user not found")
		}
		return model.User{}, apperr.Storage(err, "loading user")
	}
	return user, nil
}

// RequestPasswordReset mails a single-use reset link. Unknown addresses are
// accepted silently so the endpoint does not reveal which accounts exist.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email, ip string) error {
	email = normalizeEmail(email)
	if err := s.deps.Validator.Var(email, "required,email"); err != nil {
		return apperr.New(apperr.Validation, "email must be a valid email address")
	}

	user, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return apperr.Storage(err, "loading user")
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}

	now := s.deps.Now()
	err = store.InTx(ctx, s.deps.DB, func(q *store.Queries) error {
		if err := q.InvalidatePasswordResets(ctx, user.Email, now); err != nil {
			return err
		}
		return q.CreatePasswordReset(ctx, store.CreatePasswordResetParams{
			Email:     user.Email,
			Token:     token,
			ExpiresAt: now.Add(PasswordResetTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return apperr.Storage(err, "storing reset token")
	}

	s.deps.Notifier.SendMail(ctx, notify.PasswordResetMail(user, s.resetURL(token)))
	_ = s.deps.Audit.LogAuth(ctx, model.AuditLevelInfo, "Password reset requested", &user.ID, ip, nil)
	return nil
}

func (s *AccountService) resetURL(token string) string {
	return s.resetBaseURL + "/reset-password?token=" + url.QueryEscape(token)
}

var errInvalidResetToken = apperr.New(apperr.Validation, "invalid or expired reset token")

// ResetPassword consumes a reset token and sets a new password.
func (s *AccountService) ResetPassword(ctx context.Context, token, password, ip string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errInvalidResetToken
	}
	if problems := auth.ValidatePassword(password); len(problems) > 0 {
		return apperr.New(apperr.Validation, strings.Join(problems, " "))
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := s.deps.Now()
	var userID int64
	err = store.InTx(ctx, s.deps.DB, func(q *store.Queries) error {
		reset, err := q.GetValidPasswordReset(ctx, token, now)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errInvalidResetToken
			}
			return apperr.Storage(err, "loading reset token")
		}
		user, err := q.GetUserByEmail(ctx, reset.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errInvalidResetToken
			}
			return apperr.Storage(err, "loading user")
		}
		n, err := q.MarkPasswordResetUsed(ctx, reset.ID, now)
		if err != nil {
			return apperr.Storage(err, "consuming reset token")
		}
		if n == 0 {
			return errInvalidResetToken
		}
		if err := q.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{ID: user.ID, PasswordHash: hash, UpdatedAt: now}); err != nil {
			return apperr.Storage(err, "updating password")
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return err
		}
		return apperr.Storage(err, "resetting password")
	}

	_ = s.deps.Audit.LogAuth(ctx, model.AuditLevelInfo, "Password reset completed", &userID, ip, nil)
	return nil
}

// PurgeExpiredResets deletes reset tokens that expired or were used.
func (s *AccountService) PurgeExpiredResets(ctx context.Context) (int64, error) {
	n, err := s.queries.DeleteExpiredPasswordResets(ctx, s.deps.Now())
	if err != nil {
		return 0, apperr.Storage(err, "purging password resets")
	}
	return n, nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
