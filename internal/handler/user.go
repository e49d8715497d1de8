package handler

import (
	"net/http"

	"github.com/keymint/keymint/internal/model"
)

// ListUsers handles GET /api/user, returning every user with the number of
// keys ever issued to them.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.keys.ListUsers(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondList(w, users, len(users))
}

// GetUser handles GET /api/user/{id}, returning the user together with all
// their keys.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, keys, err := h.keys.GetUserWithKeys(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", struct {
		User    *model.User    `json:"user"`
		APIKeys []model.APIKey `json:"apikeys"`
	}{User: user, APIKeys: keys})
}
