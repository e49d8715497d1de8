// Package handler implements the HTTP endpoints. Every response uses the
// same JSON envelope: success plus optional message, data, count, valid, and
// error fields.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/keymint/keymint/internal/model"
	"github.com/keymint/keymint/internal/server/middleware"
	"github.com/keymint/keymint/internal/service"
)

// Handler carries the services and settings the endpoints need.
type Handler struct {
	keys   *service.KeyService
	auth   *service.AuthService
	logger *slog.Logger
	dev    bool
}

// New builds a Handler. With dev true, 500 responses include the underlying
// error text; otherwise clients get a generic message and the detail goes to
// the log only.
func New(keys *service.KeyService, auth *service.AuthService, logger *slog.Logger, dev bool) *Handler {
	return &Handler{keys: keys, auth: auth, logger: logger, dev: dev}
}

// writeJSON serializes v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respond writes a success envelope with optional message and data.
func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, model.Response{Success: true, Message: message, Data: data})
}

// respondList writes a success envelope carrying a collection and its count.
func respondList(w http.ResponseWriter, data interface{}, count int) {
	writeJSON(w, http.StatusOK, model.Response{Success: true, Data: data, Count: &count})
}

// fail writes a failure envelope with the given status and error message.
func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.Response{Success: false, Error: message})
}

// handleError translates service errors into HTTP responses. Validation and
// conflict problems are both client errors (400); anything unrecognized is a
// 500 whose detail is only exposed in dev mode.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case service.IsValidation(err):
		fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		fail(w, http.StatusBadRequest, "duplicate value for a unique field")
	case errors.Is(err, service.ErrNotFound):
		fail(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		fail(w, http.StatusUnauthorized, "Invalid email or password")
	default:
		h.logger.Error("request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		msg := "Internal server error"
		if h.dev {
			msg = err.Error()
		}
		fail(w, http.StatusInternalServerError, msg)
	}
}

// readJSON decodes the request body into v. The body is closed after
// decoding regardless of success.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// pathID parses the {id} URL parameter. The boolean is false when the value
// is not a positive integer, in which case a 400 was already written.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fail(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
