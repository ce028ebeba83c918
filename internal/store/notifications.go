// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/eventboard/internal/model"
)

const notificationColumns = `id, user_id, title, message, kind, related_type, related_id, is_read, read_at, created_at`

func scanNotification(row rowScanner) (model.Notification, error) {
	var n model.Notification
	err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Kind, &n.RelatedType, &n.RelatedID,
		&n.IsRead, &n.ReadAt, &n.CreatedAt,
	)
	return n, err
}

// CreateNotificationParams holds the fields of a new inbox entry.
type CreateNotificationParams struct {
	UserID      int64
	Title       string
	Message     string
	Kind        string
	RelatedType sql.NullString
	RelatedID   sql.NullInt64
	CreatedAt   time.Time
}

// CreateNotification inserts an unread notification.
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (model.Notification, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, title, message, kind, related_type, related_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+notificationColumns,
		arg.UserID, arg.Title, arg.Message, arg.Kind, arg.RelatedType, arg.RelatedID, arg.CreatedAt,
	)
	return scanNotification(row)
}

// ListNotifications returns a user's notifications, newest first.
func (q *Queries) ListNotifications(ctx context.Context, userID, limit, offset int64) ([]model.Notification, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// CountUnreadNotifications returns how many unread notifications a user has.
func (q *Queries) CountUnreadNotifications(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	return n, err
}

// MarkNotificationRead marks one notification read if it belongs to userID.
// Returns rows affected.
func (q *Queries) MarkNotificationRead(ctx context.Context, id, userID int64, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?
		WHERE id = ? AND user_id = ? AND is_read = 0`, at, id, userID))
}

// MarkAllNotificationsRead marks every unread notification of userID read.
func (q *Queries) MarkAllNotificationsRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?
		WHERE user_id = ? AND is_read = 0`, at, userID))
}

// NotificationExists reports whether id belongs to userID.
func (q *Queries) NotificationExists(ctx context.Context, id, userID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE id = ? AND user_id = ?`, id, userID).Scan(&n)
	return n > 0, err
}

// DeleteNotification removes one notification owned by userID.
func (q *Queries) DeleteNotification(ctx context.Context, id, userID int64) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID))
}

// DeleteReadNotifications removes every read notification of userID.
func (q *Queries) DeleteReadNotifications(ctx context.Context, userID int64) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = ? AND is_read = 1`, userID))
}

// DeleteOldReadNotifications removes notifications read before cutoff.
func (q *Queries) DeleteOldReadNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = 1 AND read_at < ?`, cutoff))
}
