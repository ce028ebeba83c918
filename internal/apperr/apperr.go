// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package apperr defines the error taxonomy shared by the workflow, guard and
// handler layers. Every failure that crosses a package boundary carries a Kind
// so handlers can translate it into an HTTP response without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

// Error kinds.
const (
	Unauthenticated          Kind = "unauthenticated"
	Forbidden                Kind = "forbidden"
	SecurityValidationFailed Kind = "security_validation_failed"
	RateLimited              Kind = "rate_limited"
	AccountNotApproved       Kind = "account_not_approved"
	InvalidCredentials       Kind = "invalid_credentials"
	NotFound                 Kind = "not_found"
	Conflict                 Kind = "conflict"
	Validation               Kind = "validation"
	StorageFailure           Kind = "storage_failure"
)

// Error is a typed domain error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same Kind, so errors.Is(err, apperr.ErrForbidden) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus maps the kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// HTTPStatus maps the kind to an HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated, InvalidCredentials:
		return http.StatusUnauthorized
	case Forbidden, SecurityValidationFailed, AccountNotApproved:
		return http.StatusForbidden
	case RateLimited:
		return http.StatusTooManyRequests
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new Error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an existing error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Storage wraps a persistence error. Storage failures are never retried here.
func Storage(err error, op string) *Error {
	return Wrap(err, StorageFailure, op)
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated          = New(Unauthenticated, "authentication required")
	ErrForbidden                = New(Forbidden, "forbidden")
	ErrSecurityValidationFailed = New(SecurityValidationFailed, "security validation failed")
	ErrRateLimited              = New(RateLimited, "too many attempts")
	ErrAccountNotApproved       = New(AccountNotApproved, "account pending approval")
	ErrInvalidCredentials       = New(InvalidCredentials, "invalid email or password")
	ErrNotFound                 = New(NotFound, "not found")
	ErrConflict                 = New(Conflict, "conflict")
	ErrValidation               = New(Validation, "validation failed")
	ErrStorageFailure           = New(StorageFailure, "storage failure")
)

// KindOf returns the Kind of err. Untyped errors are reported as StorageFailure
// since they can only come from lower layers.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StorageFailure
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, StorageFailure, "internal error")
}

// PublicMessage returns the message safe to show to end users. Security
// failures collapse to one generic text per kind so no check is revealed.
func PublicMessage(err error) string {
	e := FromError(err)
	if e == nil {
		return ""
	}
	switch e.Kind {
	case Unauthenticated:
		return "Please log in to continue."
	case Forbidden:
		return "You do not have permission to perform this action."
	case SecurityValidationFailed:
		return "Security validation failed. Please try again."
	case RateLimited:
		return "Too many attempts. Please try again later."
	case AccountNotApproved:
		return "Your account is pending admin approval. Please wait for approval notification."
	case InvalidCredentials:
		return "Invalid email or password."
	case StorageFailure:
		return "Something went wrong. Please try again."
	default:
		return e.Message
	}
}
