package handler

import (
	"net/http"
)

// Login handles POST /api/auth/login. A successful login returns the admin
// record; issuing session tokens is left to the deployment in front of this
// service.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := readJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	admin, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Login successful", admin)
}
