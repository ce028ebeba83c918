// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"testing"

	"github.com/olegiv/eventboard/internal/model"
)

func TestCanCreateEvent(t *testing.T) {
	tests := map[model.Role]bool{
		model.RoleStudent: false,
		model.RoleTeacher: true,
		model.RoleAdmin:   true,
		model.Role(""):    false,
	}
	for role, want := range tests {
		if got := CanCreateEvent(role); got != want {
			t.Errorf("CanCreateEvent(%q) = %v, want %v", role, got, want)
		}
	}
}

func TestCanModerate(t *testing.T) {
	tests := map[model.Role]bool{
		model.RoleStudent: false,
		model.RoleTeacher: false,
		model.RoleAdmin:   true,
	}
	for role, want := range tests {
		if got := CanModerate(role); got != want {
			t.Errorf("CanModerate(%q) = %v, want %v", role, got, want)
		}
	}
}

func TestCanEditOrDelete(t *testing.T) {
	tests := []struct {
		name      string
		role      model.Role
		owner     int64
		requester int64
		want      bool
	}{
		{"admin other's event", model.RoleAdmin, 1, 2, true},
		{"admin own event", model.RoleAdmin, 2, 2, true},
		{"teacher own event", model.RoleTeacher, 5, 5, true},
		{"teacher other's event", model.RoleTeacher, 5, 6, false},
		{"student own id", model.RoleStudent, 7, 7, false},
		{"student other", model.RoleStudent, 7, 8, false},
		{"unknown role", model.Role("editor"), 1, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEditOrDelete(tt.role, tt.owner, tt.requester); got != tt.want {
				t.Errorf("CanEditOrDelete = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanEditOrDelete_TeacherNeverOwnsForeignEvents(t *testing.T) {
	for owner := int64(1); owner <= 20; owner++ {
		for requester := int64(1); requester <= 20; requester++ {
			if owner == requester {
				continue
			}
			if CanEditOrDelete(model.RoleTeacher, owner, requester) {
				t.Fatalf("teacher %d allowed on event owned by %d", requester, owner)
			}
		}
	}
}

func TestCanViewEvent(t *testing.T) {
	statuses := []model.EventStatus{model.EventPending, model.EventApproved, model.EventRejected}

	for _, st := range statuses {
		if got := CanViewEvent(model.RoleStudent, st, 1, 2); got != (st == model.EventApproved) {
			t.Errorf("student view %s = %v", st, got)
		}
		if !CanViewEvent(model.RoleAdmin, st, 1, 2) {
			t.Errorf("admin should see %s", st)
		}
		if !CanViewEvent(model.RoleTeacher, st, 3, 3) {
			t.Errorf("teacher should see own %s event", st)
		}
		if got := CanViewEvent(model.RoleTeacher, st, 3, 4); got != (st == model.EventApproved) {
			t.Errorf("teacher view other's %s = %v", st, got)
		}
	}
}

func TestCanSetStatus(t *testing.T) {
	if CanSetStatus(model.RoleTeacher) || CanSetStatus(model.RoleStudent) {
		t.Error("only admins may set status")
	}
	if !CanSetStatus(model.RoleAdmin) {
		t.Error("admin should set status")
	}
}
