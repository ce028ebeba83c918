// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/store"
)

// ReadRetention is how long read notifications are kept.
const ReadRetention = 30 * 24 * time.Hour

// Inbox exposes a user's notifications. Every operation is scoped to the owner.
type Inbox struct {
	queries *store.Queries
	now     func() time.Time
}

// NewInbox creates an Inbox.
func NewInbox(db *sql.DB) *Inbox {
	return &Inbox{queries: store.New(db), now: time.Now}
}

// List returns the newest notifications of userID.
func (b *Inbox) List(ctx context.Context, userID int64, limit, offset int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, err := b.queries.ListNotifications(ctx, userID, int64(limit), int64(offset))
	if err != nil {
		return nil, apperr.Storage(err, "listing notifications")
	}
	if items == nil {
		items = []model.Notification{}
	}
	return items, nil
}

// UnreadCount returns how many unread notifications userID has.
func (b *Inbox) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	n, err := b.queries.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, apperr.Storage(err, "counting notifications")
	}
	return n, nil
}

// MarkRead marks one notification read. Already read is not an error;
// a foreign or missing id is NotFound.
func (b *Inbox) MarkRead(ctx context.Context, userID, id int64) error {
	n, err := b.queries.MarkNotificationRead(ctx, id, userID, b.now())
	if err != nil {
		return apperr.Storage(err, "marking notification read")
	}
	if n > 0 {
		return nil
	}
	return b.mustExist(ctx, userID, id)
}

// MarkAllRead marks every notification of userID read.
func (b *Inbox) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := b.queries.MarkAllNotificationsRead(ctx, userID, b.now())
	if err != nil {
		return 0, apperr.Storage(err, "marking notifications read")
	}
	return n, nil
}

// Delete removes one notification.
func (b *Inbox) Delete(ctx context.Context, userID, id int64) error {
	n, err := b.queries.DeleteNotification(ctx, id, userID)
	if err != nil {
		return apperr.Storage(err, "deleting notification")
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "notification not found")
	}
	return nil
}

// DeleteAllRead removes every read notification of userID.
func (b *Inbox) DeleteAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := b.queries.DeleteReadNotifications(ctx, userID)
	if err != nil {
		return 0, apperr.Storage(err, "deleting read notifications")
	}
	return n, nil
}

// Cleanup removes notifications read more than ReadRetention ago.
func (b *Inbox) Cleanup(ctx context.Context) (int64, error) {
	n, err := b.queries.DeleteOldReadNotifications(ctx, b.now().Add(-ReadRetention))
	if err != nil {
		return 0, apperr.Storage(err, "cleaning up notifications")
	}
	return n, nil
}

func (b *Inbox) mustExist(ctx context.Context, userID, id int64) error {
	ok, err := b.queries.NotificationExists(ctx, id, userID)
	if err != nil {
		return apperr.Storage(err, "loading notification")
	}
	if !ok {
		return apperr.New(apperr.NotFound, "notification not found")
	}
	return nil
}
