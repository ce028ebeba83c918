// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(Forbidden, "teachers may only edit their own events")

	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrUnauthenticated))

	wrapped := fmt.Errorf("editing event: %w", err)
	assert.True(t, errors.Is(wrapped, ErrForbidden))
}

func TestStorageWrapsCause(t *testing.T) {
	err := Storage(sql.ErrConnDone, "loading user")

	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.True(t, errors.Is(err, ErrStorageFailure))
	assert.Equal(t, StorageFailure, KindOf(err))
}

func TestKindOfUntyped(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, StorageFailure, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		Unauthenticated:          http.StatusUnauthorized,
		InvalidCredentials:       http.StatusUnauthorized,
		Forbidden:                http.StatusForbidden,
		SecurityValidationFailed: http.StatusForbidden,
		AccountNotApproved:       http.StatusForbidden,
		RateLimited:              http.StatusTooManyRequests,
		NotFound:                 http.StatusNotFound,
		Conflict:                 http.StatusConflict,
		Validation:               http.StatusBadRequest,
		StorageFailure:           http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, kind.HTTPStatus(), "kind %s", kind)
	}
}

func TestPublicMessageHidesDetails(t *testing.T) {
	err := Wrap(errors.New("no such email"), InvalidCredentials, "user not found")
	assert.Equal(t, "Invalid email or password.", PublicMessage(err))

	err = Wrap(errors.New("password mismatch"), InvalidCredentials, "bad password")
	assert.Equal(t, "Invalid email or password.", PublicMessage(err))

	err = Storage(errors.New("disk I/O error"), "inserting event")
	assert.NotContains(t, PublicMessage(err), "disk")

	assert.Equal(t, "title is required", PublicMessage(New(Validation, "title is required")))
}
