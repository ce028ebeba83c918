// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notify delivers user notifications produced by workflow
// transitions. Delivery is best-effort and never feeds back into the
// transition that caused it.
package notify

import (
	"context"
	"log/slog"
)

// Message is one notification addressed to a user.
type Message struct {
	UserID      int64
	Title       string
	Body        string
	Kind        string
	RelatedType string // empty when unrelated
	RelatedID   int64  // 0 when unrelated
	SendEmail   bool
}

// Dispatcher accepts notifications and email for delivery.
type Dispatcher interface {
	// Create accepts one notification and reports whether it was taken.
	Create(ctx context.Context, msg Message) bool
	// CreateForUsers sends a copy of tmpl to every user and returns how many were taken.
	CreateForUsers(ctx context.Context, userIDs []int64, tmpl Message) int
	// SendMail accepts a bare email that is not stored as a notification.
	SendMail(ctx context.Context, m Mail) bool
}

// Mail is an outbound email.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// LogMailer writes mail to the log instead of sending it.
type LogMailer struct {
	Logger *slog.Logger
}

// Send implements Mailer.
func (l LogMailer) Send(ctx context.Context, m Mail) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email logged (delivery disabled)", "to", m.To, "subject", m.Subject)
	return nil
}
