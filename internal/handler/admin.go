package handler

import (
	"net/http"
)

type adminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateAdmin handles POST /api/admin. The password is hashed before
// storage and never appears in any response.
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := readJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	admin, err := h.auth.CreateAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Admin created", admin)
}

// ListAdmins handles GET /api/admin.
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.auth.ListAdmins(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondList(w, admins, len(admins))
}

// GetAdmin handles GET /api/admin/{id}.
func (h *Handler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	admin, err := h.auth.GetAdmin(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", admin)
}

// UpdateAdmin handles PUT /api/admin/{id}. Empty fields keep their current
// value.
func (h *Handler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req adminRequest
	if err := readJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	admin, err := h.auth.UpdateAdmin(r.Context(), id, req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Admin updated", admin)
}

// DeleteAdmin handles DELETE /api/admin/{id}.
func (h *Handler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.auth.DeleteAdmin(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Admin deleted", nil)
}
