// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventStatus is the moderation state of an event.
type EventStatus string

// Event statuses.
const (
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventRejected EventStatus = "rejected"
)

// ParseEventStatus normalizes and validates a status string.
func ParseEventStatus(s string) (EventStatus, error) {
	st := EventStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case EventPending, EventApproved, EventRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown event status %q", s)
}

func (s EventStatus) String() string {
	return string(s)
}

// Decision is an admin moderation verdict.
type Decision string

// Moderation decisions.
const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a moderation decision.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// Status returns the event status a decision leads to.
func (d Decision) Status() EventStatus {
	if d == DecisionApprove {
		return EventApproved
	}
	return EventRejected
}

// Event is a user-submitted event subject to moderation.
type Event struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Image       sql.NullString `json:"-"`
	Status      EventStatus    `json:"status"`
	CreatedBy   int64          `json:"created_by"`
	ApprovedBy  sql.NullInt64  `json:"-"`
	ApprovedAt  sql.NullTime   `json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ImagePath returns the stored asset path, or empty string if none.
func (e *Event) ImagePath() string {
	if e.Image.Valid {
		return e.Image.String
	}
	return ""
}
