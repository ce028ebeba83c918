// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the account approval and content moderation
// workflows. Every exported operation returns an *apperr.Error on failure.
package service

import (
	"database/sql"
	"errors"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/metrics"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/notify"
)

// Deps are the collaborators shared by the workflow services.
type Deps struct {
	DB        *sql.DB
	Notifier  notify.Dispatcher
	Audit     *AuditService
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Validator *validator.Validate
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Validator == nil {
		d.Validator = validator.New()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID int64
	Role   model.Role
	IP     string
}

func (a Actor) userID() *int64 {
	id := a.UserID
	return &id
}

// textSanitizer strips all markup from user supplied text.
var textSanitizer = bluemonday.StrictPolicy()

// plainText removes markup and surrounding space, keeping entities readable.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textSanitizer.Sanitize(s)))
}

// ValidationError converts validator output into an apperr Validation error
// naming the offending fields.
func ValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(err, apperr.Validation, "invalid input")
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return apperr.Wrap(err, apperr.Validation, strings.Join(parts, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	default:
		return field + " is invalid"
	}
}
