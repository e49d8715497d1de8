package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/keymint/keymint/internal/store"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewAuthService(st)
}

func TestCreateAdminAndLogin(t *testing.T) {
	s := newTestAuth(t)
	ctx := context.Background()

	admin, err := s.CreateAdmin(ctx, "root@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if admin.Password == "correct horse battery" {
		t.Fatal("password stored in plaintext")
	}
	if !strings.HasPrefix(admin.Password, "$2") {
		t.Errorf("stored password %q is not a bcrypt hash", admin.Password)
	}

	got, err := s.Login(ctx, "root@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != admin.ID {
		t.Errorf("logged in as %d, want %d", got.ID, admin.ID)
	}

	if _, err := s.Login(ctx, "root@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := s.Login(ctx, "nobody@example.com", "correct horse battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v", err)
	}
}

func TestCreateAdminValidation(t *testing.T) {
	s := newTestAuth(t)
	ctx := context.Background()

	if _, err := s.CreateAdmin(ctx, "", "long enough pw"); !IsValidation(err) {
		t.Errorf("empty email: got %v", err)
	}
	if _, err := s.CreateAdmin(ctx, "not-an-email", "long enough pw"); !IsValidation(err) {
		t.Errorf("bad email: got %v", err)
	}
	if _, err := s.CreateAdmin(ctx, "root@example.com", "short"); !IsValidation(err) {
		t.Errorf("short password: got %v", err)
	}

	if _, err := s.CreateAdmin(ctx, "root@example.com", "long enough pw"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateAdmin(ctx, "root@example.com", "another long pw"); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate email: got %v, want ErrConflict", err)
	}
}

func TestUpdateAdmin(t *testing.T) {
	s := newTestAuth(t)
	ctx := context.Background()

	admin, err := s.CreateAdmin(ctx, "root@example.com", "original password")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.UpdateAdmin(ctx, admin.ID, "", ""); !IsValidation(err) {
		t.Errorf("empty update: got %v", err)
	}

	if _, err := s.UpdateAdmin(ctx, admin.ID, "", "replacement password"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if _, err := s.Login(ctx, "root@example.com", "original password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password still accepted")
	}
	if _, err := s.Login(ctx, "root@example.com", "replacement password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	if _, err := s.UpdateAdmin(ctx, admin.ID, "admin@example.com", ""); err != nil {
		t.Fatalf("update email: %v", err)
	}
	if _, err := s.Login(ctx, "admin@example.com", "replacement password"); err != nil {
		t.Errorf("login with new email: %v", err)
	}

	if _, err := s.UpdateAdmin(ctx, 9999, "x@example.com", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing admin: got %v", err)
	}
}

func TestDeleteAdmin(t *testing.T) {
	s := newTestAuth(t)
	ctx := context.Background()

	admin, err := s.CreateAdmin(ctx, "root@example.com", "long enough pw")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := s.HasAnyAdmin(ctx)
	if err != nil || !ok {
		t.Fatalf("HasAnyAdmin = %v, %v", ok, err)
	}
	if err := s.DeleteAdmin(ctx, admin.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteAdmin(ctx, admin.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: got %v", err)
	}
}
