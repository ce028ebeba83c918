// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/eventboard/internal/model"
)

const userColumns = `id, name, email, password_hash, role, approved, approved_by, approved_at,
	created_at, updated_at, last_login_at`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var role string
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Approved, &u.ApprovedBy, &u.ApprovedAt,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	u.Role = model.Role(role)
	return u, err
}

// CreateUserParams holds the fields of a new user row.
type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         model.Role
	Approved     bool
	CreatedAt    time.Time
}

// CreateUser inserts a user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role, approved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		arg.Name, arg.Email, arg.PasswordHash, string(arg.Role), arg.Approved, arg.CreatedAt, arg.CreatedAt,
	)
	return scanUser(row)
}

// GetUserByID loads a user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail loads a user by email (case-insensitive).
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	return scanUser(row)
}

// ApproveUserParams identifies the teacher to approve and the approving admin.
type ApproveUserParams struct {
	ID         int64
	ApprovedBy int64
	ApprovedAt time.Time
}

// ApproveUser flips approved for a pending teacher. It only touches rows that
// are still unapproved, so approval happens once and the approver fields are
// never overwritten. Returns rows affected.
func (q *Queries) ApproveUser(ctx context.Context, arg ApproveUserParams) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE users
		SET approved = 1, approved_by = ?, approved_at = ?, updated_at = ?
		WHERE id = ? AND role = 'teacher' AND approved = 0`,
		arg.ApprovedBy, arg.ApprovedAt, arg.ApprovedAt, arg.ID,
	))
}

// DeletePendingTeacher removes a teacher that has not been approved yet.
// Returns rows affected.
func (q *Queries) DeletePendingTeacher(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = ? AND role = 'teacher' AND approved = 0`, id))
}

// ListPendingTeachers returns teachers waiting for approval, newest first.
func (q *Queries) ListPendingTeachers(ctx context.Context) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role = 'teacher' AND approved = 0
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// ListApprovedTeachers returns recently approved teachers with the approver's name.
func (q *Queries) ListApprovedTeachers(ctx context.Context, limit int64) ([]model.ApprovedTeacher, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.approved_at, COALESCE(a.name, '')
		FROM users u
		LEFT JOIN users a ON u.approved_by = a.id
		WHERE u.role = 'teacher' AND u.approved = 1 AND u.approved_at IS NOT NULL
		ORDER BY u.approved_at DESC, u.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.ApprovedTeacher
	for rows.Next() {
		var t model.ApprovedTeacher
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.ApprovedAt, &t.ApprovedByName); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// ListUserIDsByRole returns the ids of every user with role.
func (q *Queries) ListUserIDsByRole(ctx context.Context, role model.Role) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM users WHERE role = ? ORDER BY id`, string(role))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateUserPasswordParams holds a new password hash for a user.
type UpdateUserPasswordParams struct {
	ID           int64
	PasswordHash string
	UpdatedAt    time.Time
}

// UpdateUserPassword stores a new password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		arg.PasswordHash, arg.UpdatedAt, arg.ID)
	return err
}

// UpdateUserLastLogin records the last successful login time.
func (q *Queries) UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`,
		sql.NullTime{Time: at, Valid: true}, id)
	return err
}
