// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import "github.com/olegiv/eventboard/internal/model"

// CanCreateEvent reports whether the role may submit events.
func CanCreateEvent(role model.Role) bool {
	return role == model.RoleTeacher || role == model.RoleAdmin
}

// CanModerate reports whether the role may approve or reject events and
// teacher accounts.
func CanModerate(role model.Role) bool {
	return role == model.RoleAdmin
}

// CanEditOrDelete reports whether requesterID, acting with role, may change an
// event owned by ownerID. Admins always may; teachers only their own events.
func CanEditOrDelete(role model.Role, ownerID, requesterID int64) bool {
	switch role {
	case model.RoleAdmin:
		return true
	case model.RoleTeacher:
		return ownerID == requesterID
	default:
		return false
	}
}

// CanSetStatus reports whether an edit by role may carry a new event status.
func CanSetStatus(role model.Role) bool {
	return role == model.RoleAdmin
}

// CanViewEvent applies the visibility rule: students see approved events,
// teachers see approved events plus all of their own, admins see everything.
func CanViewEvent(role model.Role, status model.EventStatus, ownerID, requesterID int64) bool {
	switch role {
	case model.RoleAdmin:
		return true
	case model.RoleTeacher:
		return status == model.EventApproved || ownerID == requesterID
	default:
		return status == model.EventApproved
	}
}
