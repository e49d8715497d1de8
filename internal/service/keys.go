// Package service implements the business rules for issuing, managing, and
// validating API keys, and for admin account authentication.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/keymint/keymint/internal/keygen"
	"github.com/keymint/keymint/internal/model"
	"github.com/keymint/keymint/internal/store"
)

var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// KeyService issues and validates API keys. The clock is injected so expiry
// behavior can be tested against fixed dates.
type KeyService struct {
	store *store.Store
	now   func() time.Time
}

// NewKeyService returns a KeyService backed by the given store.
func NewKeyService(st *store.Store) *KeyService {
	return &KeyService{store: st, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *KeyService) WithClock(now func() time.Time) *KeyService {
	s.now = now
	return s
}

// IssueRequest carries the fields accepted by the key issuance endpoint.
type IssueRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	StartDate string `json:"start_date"`
	LastDate  string `json:"last_date"`
	Status    string `json:"status"`
}

func (r *IssueRequest) validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)

	switch {
	case r.FirstName == "":
		return Validationf("first_name is required")
	case r.LastName == "":
		return Validationf("last_name is required")
	case r.Email == "":
		return Validationf("email is required")
	case !emailRx.MatchString(r.Email):
		return Validationf("email %q is not a valid address", r.Email)
	}

	if err := checkDates(r.StartDate, r.LastDate); err != nil {
		return err
	}

	if r.Status != "" && !model.KeyStatus(r.Status).Valid() {
		return Validationf("status must be one of: %s", statusList())
	}
	return nil
}

func checkDates(startDate, lastDate string) error {
	if startDate == "" {
		return Validationf("start_date is required")
	}
	if lastDate == "" {
		return Validationf("last_date is required")
	}
	start, err := time.Parse(model.DateLayout, startDate)
	if err != nil {
		return Validationf("start_date must use format %s", model.DateLayout)
	}
	last, err := time.Parse(model.DateLayout, lastDate)
	if err != nil {
		return Validationf("last_date must use format %s", model.DateLayout)
	}
	if last.Before(start) {
		return Validationf("last_date must not be earlier than start_date")
	}
	return nil
}

func statusList() string {
	parts := make([]string, len(model.ValidStatuses))
	for i, s := range model.ValidStatuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// Issue creates a new API key for the user identified by email, creating the
// user first if needed. An existing user's name fields are overwritten with
// the submitted values. The user's denormalized apikey pointer always moves
// to the newly issued key.
func (s *KeyService) Issue(ctx context.Context, req IssueRequest) (*model.APIKey, *model.User, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}

	user, err := s.store.UpsertUserByEmail(ctx, req.FirstName, req.LastName, req.Email)
	if err != nil {
		return nil, nil, translate(err)
	}

	key, err := s.createKey(ctx, &user.ID, req.StartDate, req.LastDate, req.Status)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.SetUserCurrentKey(ctx, user.ID, key.Key); err != nil {
		return nil, nil, translate(err)
	}
	user.Apikey = &key.Key
	return key, user, nil
}

// GenerateOnly creates a key with no associated user. Such keys never pass
// validation until AssociateUser attaches an owner.
func (s *KeyService) GenerateOnly(ctx context.Context, startDate, lastDate, status string) (*model.APIKey, error) {
	if err := checkDates(startDate, lastDate); err != nil {
		return nil, err
	}
	if status != "" && !model.KeyStatus(status).Valid() {
		return nil, Validationf("status must be one of: %s", statusList())
	}
	return s.createKey(ctx, nil, startDate, lastDate, status)
}

func (s *KeyService) createKey(ctx context.Context, userID *int64, startDate, lastDate, status string) (*model.APIKey, error) {
	token, err := keygen.New()
	if err != nil {
		return nil, err
	}
	st := model.StatusActive
	if status != "" {
		st = model.KeyStatus(status)
	}
	key := &model.APIKey{
		UserID:    userID,
		Key:       token,
		StartDate: startDate,
		LastDate:  lastDate,
		OutOfDate: lastDate,
		Status:    st,
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, translate(err)
	}
	return key, nil
}

// AssociateUser attaches a user (created or resolved by email) to an
// existing key, typically one produced by GenerateOnly. Reassigning an
// already-owned key moves it to the new user.
func (s *KeyService) AssociateUser(ctx context.Context, token, firstName, lastName, email string) (*model.KeyWithOwner, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = strings.TrimSpace(email)

	switch {
	case token == "":
		return nil, Validationf("key is required")
	case firstName == "":
		return nil, Validationf("first_name is required")
	case lastName == "":
		return nil, Validationf("last_name is required")
	case email == "":
		return nil, Validationf("email is required")
	case !emailRx.MatchString(email):
		return nil, Validationf("email %q is not a valid address", email)
	}

	key, err := s.store.GetUnassociatedKeyByToken(ctx, token)
	if err != nil {
		return nil, translate(err)
	}

	user, err := s.store.UpsertUserByEmail(ctx, firstName, lastName, email)
	if err != nil {
		return nil, translate(err)
	}

	if err := s.store.SetAPIKeyUser(ctx, key.ID, user.ID); err != nil {
		return nil, translate(err)
	}
	if err := s.store.SetUserCurrentKey(ctx, user.ID, key.Key); err != nil {
		return nil, translate(err)
	}
	return s.store.GetAPIKey(ctx, key.ID)
}

// List returns all keys with owner identity, newest first.
func (s *KeyService) List(ctx context.Context) ([]model.KeyWithOwner, error) {
	return s.store.ListAPIKeys(ctx)
}

// Get returns one key by ID.
func (s *KeyService) Get(ctx context.Context, id int64) (*model.KeyWithOwner, error) {
	key, err := s.store.GetAPIKey(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return key, nil
}

// UpdateStatus sets a key's lifecycle status. Setting the current status
// again succeeds without effect.
func (s *KeyService) UpdateStatus(ctx context.Context, id int64, status string) (*model.KeyWithOwner, error) {
	if !model.KeyStatus(status).Valid() {
		return nil, Validationf("status must be one of: %s", statusList())
	}
	if err := s.store.UpdateAPIKeyStatus(ctx, id, model.KeyStatus(status)); err != nil {
		return nil, translate(err)
	}
	return s.store.GetAPIKey(ctx, id)
}

// Delete permanently removes a key.
func (s *KeyService) Delete(ctx context.Context, id int64) error {
	return translate(s.store.DeleteAPIKey(ctx, id))
}

// ListUsers returns all users with per-user key counts.
func (s *KeyService) ListUsers(ctx context.Context) ([]model.UserWithKeyCount, error) {
	return s.store.ListUsers(ctx)
}

// GetUserWithKeys returns a user together with every key issued to them.
func (s *KeyService) GetUserWithKeys(ctx context.Context, id int64) (*model.User, []model.APIKey, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, nil, translate(err)
	}
	keys, err := s.store.ListUserKeys(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return user, keys, nil
}

// CheckKey resolves a presented key string and decides whether it grants
// access. Outcomes:
//
//	nil            — key is active and inside its validity window
//	ErrKeyUnknown  — no such key attached to a user
//	ErrKeyInactive — key was administratively disabled
//	ErrKeyExpired  — key is expired, by stored status or by date
//
// An active key observed past its outofdate is flipped to expired in the
// store as a side effect, so the stored status converges with reality on the
// read path. The key is returned alongside inactive/expired errors so
// callers can report its state.
func (s *KeyService) CheckKey(ctx context.Context, token string) (*model.KeyWithOwner, error) {
	key, err := s.store.GetAPIKeyByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrKeyUnknown
		}
		return nil, err
	}

	switch key.Status {
	case model.StatusInactive:
		return key, ErrKeyInactive
	case model.StatusExpired:
		return key, ErrKeyExpired
	}

	if s.pastValidity(key.OutOfDate) {
		// Best effort: a failed flip shouldn't turn a clean denial into a 500.
		_ = s.store.UpdateAPIKeyStatus(ctx, key.ID, model.StatusExpired)
		key.Status = model.StatusExpired
		return key, ErrKeyExpired
	}
	return key, nil
}

// pastValidity reports whether today's UTC calendar date is strictly after
// the key's outofdate. A key stays valid through the whole of its last day.
func (s *KeyService) pastValidity(outofdate string) bool {
	limit, err := time.Parse(model.DateLayout, outofdate)
	if err != nil {
		return false
	}
	today, _ := time.Parse(model.DateLayout, s.now().UTC().Format(model.DateLayout))
	return today.After(limit)
}

// translate maps store sentinels to their service-level counterparts.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrConflict
	}
	return err
}
