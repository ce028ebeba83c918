// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application
// including User, Event, Notification and audit log structures.
package model

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Role is a closed set of user roles. Parse external input with ParseRole.
type Role string

// User roles.
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Roles returns all known roles.
func Roles() []Role {
	return []Role{RoleStudent, RoleTeacher, RoleAdmin}
}

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}

// SelfRegisterable reports whether users may sign up with this role.
// Admins are provisioned out of band.
func (r Role) SelfRegisterable() bool {
	return r == RoleStudent || r == RoleTeacher
}

// User represents an application account.
type User struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"` // Never expose in JSON
	Role         Role          `json:"role"`
	Approved     bool          `json:"approved"`
	ApprovedBy   sql.NullInt64 `json:"-"`
	ApprovedAt   sql.NullTime  `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	LastLoginAt  sql.NullTime  `json:"-"`
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NeedsApproval reports whether the user is a teacher still waiting for sign-off.
func (u *User) NeedsApproval() bool {
	return u.Role == RoleTeacher && !u.Approved
}

// ApprovedTeacher is a teacher row joined with the name of the approving admin.
type ApprovedTeacher struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ApprovedAt     time.Time `json:"approved_at"`
	ApprovedByName string    `json:"approved_by_name"`
}
