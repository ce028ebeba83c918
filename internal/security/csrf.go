// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package security implements the per-session anti-forgery token and the
// attempt limiter that guard every state-changing action.
package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// CSRFSessionKey is the session key holding the anti-forgery token.
const CSRFSessionKey = "csrf_token"

// csrfTokenBytes is the amount of randomness in a token before hex encoding.
const csrfTokenBytes = 32

// TokenStore is the slice of a session manager the guard needs.
// *scs.SessionManager satisfies it.
type TokenStore interface {
	GetString(ctx context.Context, key string) string
	Put(ctx context.Context, key string, val any)
}

// CSRFGuard issues and validates one anti-forgery token per session.
type CSRFGuard struct {
	store TokenStore
}

// NewCSRFGuard creates a guard backed by store.
func NewCSRFGuard(store TokenStore) *CSRFGuard {
	return &CSRFGuard{store: store}
}

// Issue returns the session's token, generating it on first use.
func (g *CSRFGuard) Issue(ctx context.Context) (string, error) {
	if tok := g.store.GetString(ctx, CSRFSessionKey); tok != "" {
		return tok, nil
	}

	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	tok := hex.EncodeToString(buf)
	g.store.Put(ctx, CSRFSessionKey, tok)
	return tok, nil
}

// Validate reports whether supplied matches the session's token.
// A session without a token never validates.
func (g *CSRFGuard) Validate(ctx context.Context, supplied string) bool {
	expected := g.store.GetString(ctx, CSRFSessionKey)
	if expected == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}
