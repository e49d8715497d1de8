package handler

import (
	"net/http"

	"github.com/keymint/keymint/internal/model"
	"github.com/keymint/keymint/internal/server/middleware"
	"github.com/keymint/keymint/internal/service"
)

// issueResult is the payload returned by key creation: the new key plus the
// user it was issued to.
type issueResult struct {
	APIKey *model.APIKey `json:"apikey"`
	User   *model.User   `json:"user,omitempty"`
}

// CreateKey handles POST /api/apikey. It upserts the user by email and
// issues a fresh key for them.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req service.IssueRequest
	if err := readJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	key, user, err := h.keys.Issue(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "API key created", issueResult{APIKey: key, User: user})
}

// GenerateKeyOnly handles POST /api/apikey/generate-only: a key with a
// validity window but no user attached.
func (h *Handler) GenerateKeyOnly(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate string `json:"start_date"`
		LastDate  string `json:"last_date"`
		Status    string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	key, err := h.keys.GenerateOnly(r.Context(), req.StartDate, req.LastDate, req.Status)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "API key generated", issueResult{APIKey: key})
}

// AssociateUser handles POST /api/apikey/associate-user, attaching a user to
// a previously generated key.
func (h *Handler) AssociateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key       string `json:"key"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	key, err := h.keys.AssociateUser(r.Context(), req.Key, req.FirstName, req.LastName, req.Email)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "API key associated with user", key)
}

// ListKeys handles GET /api/apikey.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondList(w, keys, len(keys))
}

// GetKey handles GET /api/apikey/{id}.
func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	key, err := h.keys.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", key)
}

// UpdateKeyStatus handles PUT /api/apikey/{id}/status.
func (h *Handler) UpdateKeyStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	key, err := h.keys.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "API key status updated", key)
}

// DeleteKey handles DELETE /api/apikey/{id}.
func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.keys.Delete(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "API key deleted", nil)
}

// ValidateKey handles POST /api/apikey/validate, the diagnostic check. It
// always answers 200; the verdict is in the valid field. The key may arrive
// in the usual headers or query parameter, or in the JSON body.
func (h *Handler) ValidateKey(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractKey(r)
	if token == "" {
		var req struct {
			APIKey string `json:"api_key"`
		}
		// Body is optional here; decode errors just mean no key was sent.
		_ = readJSON(r, &req)
		token = req.APIKey
	}

	verdict := func(valid bool, message string, data interface{}) {
		writeJSON(w, http.StatusOK, model.Response{
			Success: true,
			Valid:   &valid,
			Message: message,
			Data:    data,
		})
	}

	if token == "" {
		verdict(false, "No API key provided", nil)
		return
	}

	key, err := h.keys.CheckKey(r.Context(), token)
	switch {
	case err == nil:
		verdict(true, "API key is valid", key.Owner())
	case err == service.ErrKeyUnknown:
		verdict(false, "Invalid API key", nil)
	case err == service.ErrKeyInactive:
		verdict(false, "API key is inactive", nil)
	case err == service.ErrKeyExpired:
		verdict(false, "API key has expired", nil)
	default:
		h.handleError(w, r, err)
	}
}

// Me handles GET /api/me, a sample route behind the validation gate. It
// reports the identity the presented key resolves to.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	key := middleware.GetValidatedKey(r.Context())
	if key == nil {
		fail(w, http.StatusUnauthorized, "No API key provided")
		return
	}
	respond(w, http.StatusOK, "", struct {
		User   *model.User   `json:"user"`
		APIKey *model.APIKey `json:"apikey"`
	}{User: key.Owner(), APIKey: &key.APIKey})
}
