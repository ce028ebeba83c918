// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/eventboard/internal/model"
)

const eventColumns = `id, title, description, image, status, created_by, approved_by, approved_at,
	created_at, updated_at`

func scanEvent(row rowScanner) (model.Event, error) {
	var e model.Event
	var status string
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Image, &status, &e.CreatedBy, &e.ApprovedBy, &e.ApprovedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	e.Status = model.EventStatus(status)
	return e, err
}

func (q *Queries) listEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// CreateEventParams holds the fields of a new event.
type CreateEventParams struct {
	Title       string
	Description string
	Image       sql.NullString
	CreatedBy   int64
	CreatedAt   time.Time
}

// CreateEvent inserts a pending event and returns the stored row.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (model.Event, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO events (title, description, image, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?, ?)
		RETURNING `+eventColumns,
		arg.Title, arg.Description, arg.Image, arg.CreatedBy, arg.CreatedAt, arg.CreatedAt,
	)
	return scanEvent(row)
}

// GetEventByID loads an event by primary key.
func (q *Queries) GetEventByID(ctx context.Context, id int64) (model.Event, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// ListEvents returns every event, newest first.
func (q *Queries) ListEvents(ctx context.Context) ([]model.Event, error) {
	return q.listEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC, id DESC`)
}

// ListEventsByStatus returns events in one status, newest first.
func (q *Queries) ListEventsByStatus(ctx context.Context, status model.EventStatus) ([]model.Event, error) {
	return q.listEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE status = ? ORDER BY created_at DESC, id DESC`,
		string(status))
}

// ListEventsForTeacher returns approved events plus every event created by userID.
func (q *Queries) ListEventsForTeacher(ctx context.Context, userID int64) ([]model.Event, error) {
	return q.listEvents(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE status = 'approved' OR created_by = ?
		ORDER BY created_at DESC, id DESC`, userID)
}

// ListEventsByCreator returns events created by userID.
func (q *Queries) ListEventsByCreator(ctx context.Context, userID int64) ([]model.Event, error) {
	return q.listEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE created_by = ? ORDER BY created_at DESC, id DESC`,
		userID)
}

// UpdateEventContentParams holds editable event content.
type UpdateEventContentParams struct {
	ID          int64
	Title       string
	Description string
	Image       sql.NullString
	UpdatedAt   time.Time
}

// UpdateEventContent rewrites title, description and image, leaving the
// moderation fields untouched. Returns rows affected.
func (q *Queries) UpdateEventContent(ctx context.Context, arg UpdateEventContentParams) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE events SET title = ?, description = ?, image = ?, updated_at = ?
		WHERE id = ?`,
		arg.Title, arg.Description, arg.Image, arg.UpdatedAt, arg.ID,
	))
}

// SetEventStatusParams describes a guarded status transition.
type SetEventStatusParams struct {
	ID         int64
	Status     model.EventStatus
	ApprovedBy int64
	ApprovedAt time.Time
	// Expected is the status the row must still have for the write to apply.
	Expected model.EventStatus
}

// SetEventStatus writes status, approved_by and approved_at in one statement,
// only if the row still has the expected status. Moving back to pending
// clears approved_by and approved_at. Returns rows affected.
func (q *Queries) SetEventStatus(ctx context.Context, arg SetEventStatusParams) (int64, error) {
	approvedBy := sql.NullInt64{Int64: arg.ApprovedBy, Valid: true}
	approvedAt := sql.NullTime{Time: arg.ApprovedAt, Valid: true}
	if arg.Status == model.EventPending {
		approvedBy, approvedAt = sql.NullInt64{}, sql.NullTime{}
	}
	return rowsAffected(q.db.ExecContext(ctx, `
		UPDATE events SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(arg.Status), approvedBy, approvedAt, arg.ApprovedAt, arg.ID, string(arg.Expected),
	))
}

// DeleteEvent removes an event. Returns rows affected.
func (q *Queries) DeleteEvent(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id))
}
