// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/auth"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/notify"
	"github.com/olegiv/eventboard/internal/storage"
	"github.com/olegiv/eventboard/internal/store"
)

// Upload is an image attached to an event form.
type Upload struct {
	Reader io.Reader
	Name   string
}

// EventInput carries editable event fields.
type EventInput struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
	// Image replaces the current image when set.
	Image *Upload `json:"-" validate:"-"`
	// RemoveImage drops the current image when no new one is given.
	RemoveImage bool `json:"remove_image"`
}

// EventFilter narrows List results. Visibility rules still apply.
type EventFilter struct {
	Status model.EventStatus
	Mine   bool
}

// EventService runs the content moderation workflow.
type EventService struct {
	deps    Deps
	queries *store.Queries
	files   storage.FileStorage
}

// NewEventService creates a new EventService.
func NewEventService(deps Deps, files storage.FileStorage) *EventService {
	deps = deps.withDefaults()
	return &EventService{
		deps:    deps,
		queries: store.New(deps.DB),
		files:   files,
	}
}

func (s *EventService) clean(in EventInput) (EventInput, error) {
	in.Title = plainText(in.Title)
	in.Description = plainText(in.Description)
	if err := s.deps.Validator.Struct(in); err != nil {
		return in, ValidationError(err)
	}
	return in, nil
}

func (s *EventService) saveImage(up *Upload) (string, error) {
	if up == nil || up.Reader == nil {
		return "", nil
	}
	if s.files == nil {
		return "", apperr.New(apperr.Validation, "image uploads are disabled")
	}
	name, err := s.files.Save(up.Reader, up.Name)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrInvalidName) {
			return "", apperr.Wrap(err, apperr.Validation, err.Error())
		}
		return "", apperr.Storage(err, "saving image")
	}
	return name, nil
}

// removeImage deletes an asset. Failures are logged and never returned.
func (s *EventService) removeImage(ctx context.Context, name string, eventID int64) {
	if name == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(name); err != nil {
		s.deps.Logger.WarnContext(ctx, "failed to delete event image", "error", err, "event_id", eventID, "image", name)
	}
}

func loadEvent(ctx context.Context, q *store.Queries, id int64) (model.Event, error) {
	ev, err := q.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, apperr.New(apperr.NotFound, "event not found")
		}
		return model.Event{}, apperr.Storage(err, "loading event")
	}
	return ev, nil
}

// asAppErr keeps typed errors from inside a transaction and tags the rest as
// storage failures.
func asAppErr(err error, op string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Storage(err, op)
}

// Create submits a new event for moderation.
func (s *EventService) Create(ctx context.Context, actor Actor, in EventInput) (model.Event, error) {
	if !auth.CanCreateEvent(actor.Role) {
		return model.Event{}, apperr.ErrForbidden
	}
	in, err := s.clean(in)
	if err != nil {
		return model.Event{}, err
	}
	image, err := s.saveImage(in.Image)
	if err != nil {
		return model.Event{}, err
	}

	ev, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Title:       in.Title,
		Description: in.Description,
		Image:       sql.NullString{String: image, Valid: image != ""},
		CreatedBy:   actor.UserID,
		CreatedAt:   s.deps.Now(),
	})
	if err != nil {
		s.removeImage(ctx, image, 0)
		return model.Event{}, apperr.Storage(err, "creating event")
	}

	if adminIDs, err := s.queries.ListUserIDsByRole(ctx, model.RoleAdmin); err != nil {
		s.deps.Logger.ErrorContext(ctx, "failed to list admins for notification", "error", err, "event_id", ev.ID)
	} else {
		s.deps.Notifier.CreateForUsers(ctx, without(adminIDs, actor.UserID), notify.EventSubmittedMessage(ev))
	}

	s.deps.Metrics.Transition("event", string(ev.Status))
	_ = s.deps.Audit.LogEvent(ctx, model.AuditLevelInfo, "Event created", actor.userID(), actor.IP, map[string]any{
		"event_id": ev.ID,
		"title":    ev.Title,
	})
	return ev, nil
}

func without(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Moderate applies an admin decision. The status read and the guarded write
// run in one transaction so approver fields are always written together.
// Repeating the current verdict is a no-op.
func (s *EventService) Moderate(ctx context.Context, actor Actor, eventID int64, decision model.Decision) (model.Event, error) {
	if !auth.CanModerate(actor.Role) {
		return model.Event{}, apperr.ErrForbidden
	}
	if _, err := model.ParseDecision(string(decision)); err != nil {
		return model.Event{}, apperr.New(apperr.Validation, "decision must be approve or reject")
	}

	to := decision.Status()
	now := s.deps.Now()
	var (
		ev      model.Event
		from    model.EventStatus
		changed bool
	)
	err := store.InTx(ctx, s.deps.DB, func(q *store.Queries) error {
		var err error
		ev, err = loadEvent(ctx, q, eventID)
		if err != nil {
			return err
		}
		from = ev.Status
		if from == to {
			return nil
		}
		n, err := q.SetEventStatus(ctx, store.SetEventStatusParams{
			ID:         ev.ID,
			Status:     to,
			ApprovedBy: actor.UserID,
			ApprovedAt: now,
			Expected:   from,
		})
		if err != nil {
			return apperr.Storage(err, "updating event status")
		}
		if n == 0 {
			return apperr.New(apperr.Conflict, "event was modified concurrently")
		}
		changed = true
		return nil
	})
	if err != nil {
		return model.Event{}, asAppErr(err, "moderating event")
	}
	if !changed {
		return ev, nil
	}

	stampStatus(&ev, to, actor.UserID, now)
	ev.UpdatedAt = now
	s.statusChanged(ctx, actor, ev, from, to)
	return ev, nil
}

// stampStatus mirrors what SetEventStatus wrote to the row.
func stampStatus(ev *model.Event, status model.EventStatus, by int64, at time.Time) {
	ev.Status = status
	if status == model.EventPending {
		ev.ApprovedBy, ev.ApprovedAt = sql.NullInt64{}, sql.NullTime{}
		return
	}
	ev.ApprovedBy = sql.NullInt64{Int64: by, Valid: true}
	ev.ApprovedAt = sql.NullTime{Time: at, Valid: true}
}

// statusChanged fires the notifications for a committed transition.
func (s *EventService) statusChanged(ctx context.Context, actor Actor, ev model.Event, from, to model.EventStatus) {
	notify.NotifyEventStatusChange(ctx, s.deps.Notifier, ev, from, to)
	if to == model.EventApproved {
		studentIDs, err := s.queries.ListUserIDsByRole(ctx, model.RoleStudent)
		if err != nil {
			s.deps.Logger.ErrorContext(ctx, "failed to list students for broadcast", "error", err, "event_id", ev.ID)
		} else {
			notify.NotifyNewEvent(ctx, s.deps.Notifier, studentIDs, ev)
		}
	}

	s.deps.Metrics.Transition("event", string(to))
	_ = s.deps.Audit.LogEvent(ctx, model.AuditLevelInfo, "Event status changed", actor.userID(), actor.IP, map[string]any{
		"event_id": ev.ID,
		"from":     string(from),
		"to":       string(to),
	})
}

// Edit updates event content. Only admins may change the status; a status
// sent by anyone else is ignored.
func (s *EventService) Edit(ctx context.Context, actor Actor, eventID int64, in EventInput, newStatus *model.EventStatus) (model.Event, error) {
	current, err := loadEvent(ctx, s.queries, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if !auth.CanEditOrDelete(actor.Role, current.CreatedBy, actor.UserID) {
		return model.Event{}, apperr.ErrForbidden
	}
	in, err = s.clean(in)
	if err != nil {
		return model.Event{}, err
	}
	if !auth.CanSetStatus(actor.Role) {
		newStatus = nil
	}
	if newStatus != nil {
		if _, err := model.ParseEventStatus(string(*newStatus)); err != nil {
			return model.Event{}, apperr.New(apperr.Validation, "status must be pending, approved or rejected")
		}
	}

	uploaded, err := s.saveImage(in.Image)
	if err != nil {
		return model.Event{}, err
	}

	now := s.deps.Now()
	var (
		ev       model.Event
		from     model.EventStatus
		changed  bool
		oldImage string
	)
	err = store.InTx(ctx, s.deps.DB, func(q *store.Queries) error {
		var err error
		ev, err = loadEvent(ctx, q, eventID)
		if err != nil {
			return err
		}
		if !auth.CanEditOrDelete(actor.Role, ev.CreatedBy, actor.UserID) {
			return apperr.ErrForbidden
		}

		image := ev.Image
		switch {
		case uploaded != "":
			image = sql.NullString{String: uploaded, Valid: true}
			oldImage = ev.ImagePath()
		case in.RemoveImage:
			image = sql.NullString{}
			oldImage = ev.ImagePath()
		}

		if _, err := q.UpdateEventContent(ctx, store.UpdateEventContentParams{
			ID:          ev.ID,
			Title:       in.Title,
			Description: in.Description,
			Image:       image,
			UpdatedAt:   now,
		}); err != nil {
			return apperr.Storage(err, "updating event")
		}
		ev.Title, ev.Description, ev.Image, ev.UpdatedAt = in.Title, in.Description, image, now

		from = ev.Status
		if newStatus == nil || *newStatus == from {
			return nil
		}
		n, err := q.SetEventStatus(ctx, store.SetEventStatusParams{
			ID:         ev.ID,
			Status:     *newStatus,
			ApprovedBy: actor.UserID,
			ApprovedAt: now,
			Expected:   from,
		})
		if err != nil {
			return apperr.Storage(err, "updating event status")
		}
		if n == 0 {
			return apperr.New(apperr.Conflict, "event was modified concurrently")
		}
		stampStatus(&ev, *newStatus, actor.UserID, now)
		changed = true
		return nil
	})
	if err != nil {
		s.removeImage(ctx, uploaded, eventID)
		return model.Event{}, asAppErr(err, "editing event")
	}

	s.removeImage(ctx, oldImage, ev.ID)
	_ = s.deps.Audit.LogEvent(ctx, model.AuditLevelInfo, "Event updated", actor.userID(), actor.IP, map[string]any{
		"event_id": ev.ID,
	})
	if changed {
		s.statusChanged(ctx, actor, ev, from, ev.Status)
	}
	return ev, nil
}

// Delete removes an event and then its image. A failed image delete is
// logged and does not fail the call.
func (s *EventService) Delete(ctx context.Context, actor Actor, eventID int64) error {
	ev, err := loadEvent(ctx, s.queries, eventID)
	if err != nil {
		return err
	}
	if !auth.CanEditOrDelete(actor.Role, ev.CreatedBy, actor.UserID) {
		return apperr.ErrForbidden
	}

	n, err := s.queries.DeleteEvent(ctx, ev.ID)
	if err != nil {
		return apperr.Storage(err, "deleting event")
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "event not found")
	}

	s.removeImage(ctx, ev.ImagePath(), ev.ID)
	s.deps.Metrics.Transition("event", "deleted")
	_ = s.deps.Audit.LogEvent(ctx, model.AuditLevelInfo, "Event deleted", actor.userID(), actor.IP, map[string]any{
		"event_id": ev.ID,
		"title":    ev.Title,
	})
	return nil
}

// Get returns one event the actor may see. Hidden events are reported as
// not found.
func (s *EventService) Get(ctx context.Context, actor Actor, eventID int64) (model.Event, error) {
	ev, err := loadEvent(ctx, s.queries, eventID)
	if err != nil {
		return model.Event{}, err
	}
	if !auth.CanViewEvent(actor.Role, ev.Status, ev.CreatedBy, actor.UserID) {
		return model.Event{}, apperr.New(apperr.NotFound, "event not found")
	}
	return ev, nil
}

// List returns the events visible to the actor, newest first.
func (s *EventService) List(ctx context.Context, actor Actor, filter EventFilter) ([]model.Event, error) {
	var (
		events []model.Event
		err    error
	)
	switch {
	case filter.Mine:
		events, err = s.queries.ListEventsByCreator(ctx, actor.UserID)
	case actor.Role == model.RoleAdmin && filter.Status != "":
		events, err = s.queries.ListEventsByStatus(ctx, filter.Status)
	case actor.Role == model.RoleAdmin:
		events, err = s.queries.ListEvents(ctx)
	case actor.Role == model.RoleTeacher:
		events, err = s.queries.ListEventsForTeacher(ctx, actor.UserID)
	default:
		events, err = s.queries.ListEventsByStatus(ctx, model.EventApproved)
	}
	if err != nil {
		return nil, apperr.Storage(err, "listing events")
	}

	visible := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if filter.Status != "" && ev.Status != filter.Status {
			continue
		}
		if auth.CanViewEvent(actor.Role, ev.Status, ev.CreatedBy, actor.UserID) {
			visible = append(visible, ev)
		}
	}
	return visible, nil
}
