// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Notification kinds.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// RelatedEvent is the related_type value for event notifications.
const RelatedEvent = "event"

// Notification is an inbox entry for one user.
type Notification struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Kind        string         `json:"kind"`
	RelatedType sql.NullString `json:"-"`
	RelatedID   sql.NullInt64  `json:"-"`
	IsRead      bool           `json:"is_read"`
	ReadAt      sql.NullTime   `json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
}

// PasswordReset is a single-use password reset token.
type PasswordReset struct {
	ID        int64
	Email     string
	Token     string
	ExpiresAt time.Time
	UsedAt    sql.NullTime
	CreatedAt time.Time
}
