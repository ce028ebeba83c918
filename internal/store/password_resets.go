// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/eventboard/internal/model"
)

// CreatePasswordResetParams holds a new reset token.
type CreatePasswordResetParams struct {
	Email     string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreatePasswordReset stores a reset token.
func (q *Queries) CreatePasswordReset(ctx context.Context, arg CreatePasswordResetParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO password_resets (email, token, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		arg.Email, arg.Token, arg.ExpiresAt, arg.CreatedAt)
	return err
}

// GetValidPasswordReset loads an unused token that has not expired at now.
func (q *Queries) GetValidPasswordReset(ctx context.Context, token string, now time.Time) (model.PasswordReset, error) {
	var r model.PasswordReset
	err := q.db.QueryRowContext(ctx, `
		SELECT id, email, token, expires_at, used_at, created_at
		FROM password_resets
		WHERE token = ? AND used_at IS NULL AND expires_at > ?`, token, now,
	).Scan(&r.ID, &r.Email, &r.Token, &r.ExpiresAt, &r.UsedAt, &r.CreatedAt)
	return r, err
}

// MarkPasswordResetUsed consumes a token. Returns rows affected, so a token
// consumed concurrently reports zero.
func (q *Queries) MarkPasswordResetUsed(ctx context.Context, id int64, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE id = ? AND used_at IS NULL`, at, id))
}

// InvalidatePasswordResets marks every open token for email used.
func (q *Queries) InvalidatePasswordResets(ctx context.Context, email string, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE email = ? COLLATE NOCASE AND used_at IS NULL`, at, email)
	return err
}

// DeleteExpiredPasswordResets removes tokens that expired or were used before cutoff.
func (q *Queries) DeleteExpiredPasswordResets(ctx context.Context, cutoff time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`DELETE FROM password_resets WHERE expires_at < ? OR (used_at IS NOT NULL AND used_at < ?)`, cutoff, cutoff))
}
