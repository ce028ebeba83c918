// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/service"
)

// UploadsPrefix is the URL prefix under which event images are served.
const UploadsPrefix = "/uploads/"

// multipartMemory is the part of a multipart form kept in memory.
const multipartMemory = 8 << 20

// EventsHandler handles event submission, editing and moderation.
type EventsHandler struct {
	events    *service.EventService
	validate  *validator.Validate
	maxUpload int64
}

// NewEventsHandler creates a new EventsHandler. maxUpload bounds the request
// body of image uploads.
func NewEventsHandler(events *service.EventService, v *validator.Validate, maxUpload int64) *EventsHandler {
	return &EventsHandler{events: events, validate: v, maxUpload: maxUpload}
}

// eventResponse is the API representation of an event.
type eventResponse struct {
	model.Event
	Image      string     `json:"image,omitempty"`
	ApprovedBy *int64     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

func toEventResponse(ev model.Event) eventResponse {
	resp := eventResponse{Event: ev}
	if p := ev.ImagePath(); p != "" {
		resp.Image = UploadsPrefix + p
	}
	if ev.ApprovedBy.Valid {
		id := ev.ApprovedBy.Int64
		resp.ApprovedBy = &id
	}
	if ev.ApprovedAt.Valid {
		at := ev.ApprovedAt.Time
		resp.ApprovedAt = &at
	}
	return resp
}

type eventListResponse struct {
	Events []eventResponse `json:"events"`
}

type moderateRequest struct {
	Decision string `json:"decision" validate:"required"`
}

// eventForm is the decoded body of a create or edit request.
type eventForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	RemoveImage bool   `json:"remove_image"`
}

// parsedEvent is an event form with its optional image part.
type parsedEvent struct {
	input  service.EventInput
	status *model.EventStatus
	file   multipart.File
}

func (p *parsedEvent) close() {
	if p.file != nil {
		_ = p.file.Close()
	}
}

// parseEventForm reads a JSON body or a multipart form with an optional
// "image" file part.
func (h *EventsHandler) parseEventForm(w http.ResponseWriter, r *http.Request) (*parsedEvent, error) {
	var form eventForm
	p := &parsedEvent{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, apperr.Wrap(err, apperr.Validation, "invalid form data")
		}
		form.Title = r.FormValue("title")
		form.Description = r.FormValue("description")
		form.Status = r.FormValue("status")
		form.RemoveImage, _ = strconv.ParseBool(r.FormValue("remove_image"))

		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			p.file = file
			p.input.Image = &service.Upload{Reader: file, Name: header.Filename}
		case !errors.Is(err, http.ErrMissingFile):
			return nil, apperr.Wrap(err, apperr.Validation, "invalid image upload")
		}
	} else if err := decodeJSON(r, nil, &form); err != nil {
		return nil, err
	}

	p.input.Title = form.Title
	p.input.Description = form.Description
	p.input.RemoveImage = form.RemoveImage
	if form.Status != "" {
		st, err := model.ParseEventStatus(form.Status)
		if err != nil {
			p.close()
			return nil, apperr.Wrap(err, apperr.Validation, "invalid status")
		}
		p.status = &st
	}
	return p, nil
}

// List handles GET /events. Query parameters: status, mine=true.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter service.EventFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := model.ParseEventStatus(raw)
		if err != nil {
			middleware.WriteError(w, r, apperr.Wrap(err, apperr.Validation, "invalid status"))
			return
		}
		filter.Status = st
	}
	filter.Mine, _ = strconv.ParseBool(r.URL.Query().Get("mine"))

	events, err := h.events.List(r.Context(), actorFrom(r), filter)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	resp := eventListResponse{Events: make([]eventResponse, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, toEventResponse(ev))
	}
	writeJSONSuccess(w, http.StatusOK, resp)
}

// Get handles GET /events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	ev, err := h.events.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, toEventResponse(ev))
}

// Create handles POST /events. New events always start pending.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseEventForm(w, r)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	defer form.close()

	ev, err := h.events.Create(r.Context(), actorFrom(r), form.input)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSONSuccess(w, http.StatusCreated, toEventResponse(ev))
}

// Update handles PUT|POST /events/{id}. Only admins may change the status
// in the same request.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	form, err := h.parseEventForm(w, r)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	defer form.close()

	ev, err := h.events.Edit(r.Context(), actorFrom(r), id, form.input, form.status)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, toEventResponse(ev))
}

// Delete handles DELETE /events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.events.Delete(r.Context(), actorFrom(r), id); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeMessage(w, "Event deleted.")
}

// Moderate handles POST /events/{id}/moderate with {"decision": "approve"|"reject"}.
func (h *EventsHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	var in moderateRequest
	if err := decodeJSON(r, h.validate, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	ev, err := h.events.Moderate(r.Context(), actorFrom(r), id, model.Decision(in.Decision))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSONSuccess(w, http.StatusOK, toEventResponse(ev))
}

// uploadsHandler serves stored event images. Directory listings are refused.
func uploadsHandler(dir string) http.Handler {
	fs := http.StripPrefix(UploadsPrefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, UploadsPrefix)
		if name == "" || strings.HasSuffix(name, "/") || strings.Contains(name, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}
