package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/keymint/keymint/internal/model"
	"github.com/keymint/keymint/internal/store"
)

// bcryptCost matches the work factor the admin password hashes were
// originally produced with.
const bcryptCost = 10

// AuthService manages admin accounts and verifies their credentials.
type AuthService struct {
	store *store.Store
}

// NewAuthService returns an AuthService backed by the given store.
func NewAuthService(st *store.Store) *AuthService {
	return &AuthService{store: st}
}

// Login verifies an admin's email and password. Unknown email and wrong
// password both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Admin, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, Validationf("email and password are required")
	}

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}

// CreateAdmin registers a new admin account, hashing the password before it
// is stored. A duplicate email returns ErrConflict.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password string) (*model.Admin, error) {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return nil, Validationf("email is required")
	case !emailRx.MatchString(email):
		return nil, Validationf("email %q is not a valid address", email)
	case len(password) < 8:
		return nil, Validationf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	admin := &model.Admin{Email: email, Password: string(hash)}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return nil, translate(err)
	}
	return admin, nil
}

// UpdateAdmin changes an admin's email and/or password. Empty fields keep
// their current value; a new password is re-hashed.
func (s *AuthService) UpdateAdmin(ctx context.Context, id int64, email, password string) (*model.Admin, error) {
	admin, err := s.store.GetAdmin(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	email = strings.TrimSpace(email)
	if email == "" && password == "" {
		return nil, Validationf("nothing to update: provide email or password")
	}
	if email != "" {
		if !emailRx.MatchString(email) {
			return nil, Validationf("email %q is not a valid address", email)
		}
		admin.Email = email
	}
	if password != "" {
		if len(password) < 8 {
			return nil, Validationf("password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return nil, err
		}
		admin.Password = string(hash)
	}

	if err := s.store.UpdateAdmin(ctx, admin); err != nil {
		return nil, translate(err)
	}
	return admin, nil
}

// GetAdmin returns one admin account by ID.
func (s *AuthService) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	admin, err := s.store.GetAdmin(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return admin, nil
}

// ListAdmins returns all admin accounts.
func (s *AuthService) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	return s.store.ListAdmins(ctx)
}

// DeleteAdmin removes an admin account.
func (s *AuthService) DeleteAdmin(ctx context.Context, id int64) error {
	return translate(s.store.DeleteAdmin(ctx, id))
}

// HasAnyAdmin reports whether any admin account exists yet.
func (s *AuthService) HasAnyAdmin(ctx context.Context) (bool, error) {
	return s.store.HasAnyAdmin(ctx)
}
