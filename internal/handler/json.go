// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/service"
)

// maxJSONBody caps request bodies for JSON endpoints.
const maxJSONBody = 1 << 20

// messageResponse is the body of endpoints that only confirm an action.
type messageResponse struct {
	Message string `json:"message"`
}

// decodeJSON reads a JSON request body into dst and validates it when a
// validator is given.
func decodeJSON(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst); err != nil {
		return apperr.Wrap(err, apperr.Validation, "request body must be valid JSON")
	}
	if v == nil {
		return nil
	}
	if err := v.Struct(dst); err != nil {
		return service.ValidationError(err)
	}
	return nil
}

// writeJSONSuccess writes data with the given status.
func writeJSONSuccess(w http.ResponseWriter, status int, data any) {
	middleware.WriteJSON(w, status, data)
}

// writeMessage writes a confirmation message with 200 OK.
func writeMessage(w http.ResponseWriter, msg string) {
	writeJSONSuccess(w, http.StatusOK, messageResponse{Message: msg})
}

// actorFrom builds the service actor for the request's session.
func actorFrom(r *http.Request) service.Actor {
	id, _ := middleware.GetIdentity(r)
	return service.Actor{
		UserID: id.UserID,
		Role:   id.Role,
		IP:     middleware.ClientIP(r),
	}
}

// idParam parses a positive integer route parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.Validation, "invalid "+name)
	}
	return id, nil
}

// queryInt returns a non-negative integer query parameter, or def when the
// parameter is missing or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
