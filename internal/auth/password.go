// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package auth provides credential hashing, the password policy and the role
// authority that decides who may create, moderate, edit or delete events.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/argon2"
)

// Params are the argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams follows the OWASP second recommendation (m=19456, t=2, p=1).
var DefaultParams = Params{
	Time:    2,
	Memory:  19 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

var (
	paramsMu sync.RWMutex
	current  = DefaultParams
)

// SetParams replaces the active hashing parameters. Tests use it to make
// hashing cheap; production never calls it.
func SetParams(p Params) {
	paramsMu.Lock()
	current = p
	paramsMu.Unlock()
	dummyOnce = sync.Once{}
}

func activeParams() Params {
	paramsMu.RLock()
	defer paramsMu.RUnlock()
	return current
}

// ErrInvalidHash is returned for hashes that are not argon2id encodings.
var ErrInvalidHash = errors.New("invalid hash format")

// HashPassword creates an argon2id hash in the PHC string format:
// $argon2id$v=19$m=19456,t=2,p=1$salt$hash
func HashPassword(password string) (string, error) {
	p := activeParams()
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

type decodedHash struct {
	params Params
	salt   []byte
	key    []byte
}

func decodeHash(encoded string) (decodedHash, error) {
	var d decodedHash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return d, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return d, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return d, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.params.Memory, &d.params.Time, &d.params.Threads); err != nil {
		return d, fmt.Errorf("parsing parameters: %w", err)
	}

	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return d, fmt.Errorf("decoding salt: %w", err)
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return d, fmt.Errorf("decoding hash: %w", err)
	}
	d.params.KeyLen = uint32(len(d.key))
	d.params.SaltLen = len(d.salt)
	return d, nil
}

// CheckPassword verifies a password against an encoded hash in constant time.
func CheckPassword(password, encodedHash string) (bool, error) {
	d, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), d.salt, d.params.Time, d.params.Memory, d.params.Threads, d.params.KeyLen)
	return subtle.ConstantTimeCompare(key, d.key) == 1, nil
}

// NeedsRehash reports whether the hash was produced with different
// parameters than the active ones.
func NeedsRehash(encodedHash string) bool {
	d, err := decodeHash(encodedHash)
	if err != nil {
		return true
	}
	p := activeParams()
	return d.params.Memory != p.Memory || d.params.Time != p.Time || d.params.Threads != p.Threads
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// CheckDummy burns the same amount of work as CheckPassword against a fixed
// hash. Login calls it for unknown emails so response timing does not reveal
// whether an account exists.
func CheckDummy(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = HashPassword("dummy-password-for-timing")
	})
	_, _ = CheckPassword(password, dummyHash)
}

// Password policy limits.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 256
)

// ValidatePassword enforces the password policy and returns one message per
// violated rule.
func ValidatePassword(password string) []string {
	var problems []string
	if len(password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		problems = append(problems, fmt.Sprintf("Password must be at most %d characters long.", MaxPasswordLength))
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		problems = append(problems, "Password must contain at least one uppercase letter.")
	}
	if !lower {
		problems = append(problems, "Password must contain at least one lowercase letter.")
	}
	if !digit {
		problems = append(problems, "Password must contain at least one number.")
	}
	return problems
}
