package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keymint/keymint/internal/model"
	"github.com/keymint/keymint/internal/store"
)

func newTestKeys(t *testing.T) (*KeyService, *store.Store) {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewKeyService(st), st
}

func fixedClock(date string) func() time.Time {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return d }
}

func issueOne(t *testing.T, s *KeyService, email string) *model.APIKey {
	t.Helper()
	key, _, err := s.Issue(context.Background(), IssueRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		StartDate: "2024-01-01",
		LastDate:  "2024-01-31",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return key
}

func TestIssueValidation(t *testing.T) {
	s, _ := newTestKeys(t)
	base := IssueRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		StartDate: "2024-01-01",
		LastDate:  "2024-01-31",
	}

	cases := []struct {
		name   string
		mutate func(*IssueRequest)
		wantIn string
	}{
		{"missing first name", func(r *IssueRequest) { r.FirstName = " " }, "first_name"},
		{"missing last name", func(r *IssueRequest) { r.LastName = "" }, "last_name"},
		{"missing email", func(r *IssueRequest) { r.Email = "" }, "email"},
		{"bad email", func(r *IssueRequest) { r.Email = "not-an-email" }, "valid address"},
		{"missing start date", func(r *IssueRequest) { r.StartDate = "" }, "start_date"},
		{"bad date format", func(r *IssueRequest) { r.LastDate = "31/01/2024" }, "format"},
		{"inverted window", func(r *IssueRequest) { r.StartDate = "2024-02-01" }, "earlier"},
		{"bad status", func(r *IssueRequest) { r.Status = "revoked" }, "status"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := base
			c.mutate(&req)
			_, _, err := s.Issue(context.Background(), req)
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), c.wantIn) {
				t.Errorf("error %q does not mention %q", err, c.wantIn)
			}
		})
	}
}

func TestIssueCreatesUserAndKey(t *testing.T) {
	s, st := newTestKeys(t)
	ctx := context.Background()

	key, user, err := s.Issue(ctx, IssueRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		StartDate: "2024-01-01",
		LastDate:  "2024-01-31",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(key.Key, "ak_") {
		t.Errorf("key %q missing prefix", key.Key)
	}
	if key.Status != model.StatusActive {
		t.Errorf("status = %q, want active", key.Status)
	}
	if key.OutOfDate != key.LastDate {
		t.Errorf("outofdate = %q, want %q", key.OutOfDate, key.LastDate)
	}
	if user.Apikey == nil || *user.Apikey != key.Key {
		t.Errorf("user apikey pointer not updated: %v", user.Apikey)
	}

	// A second issuance for the same email reuses the user and moves the
	// pointer to the new key.
	key2, user2, err := s.Issue(ctx, IssueRequest{
		FirstName: "Augusta",
		LastName:  "King",
		Email:     "ada@example.com",
		StartDate: "2024-02-01",
		LastDate:  "2024-02-28",
	})
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if user2.ID != user.ID {
		t.Errorf("expected same user, got %d and %d", user.ID, user2.ID)
	}

	stored, err := st.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Apikey == nil || *stored.Apikey != key2.Key {
		t.Errorf("pointer should follow newest key")
	}
	if stored.FirstName != "Augusta" {
		t.Errorf("name not overwritten: %q", stored.FirstName)
	}

	keys, err := st.ListUserKeys(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("user should own 2 keys, has %d", len(keys))
	}
}

func TestCheckKeyOutcomes(t *testing.T) {
	s, _ := newTestKeys(t)
	ctx := context.Background()
	key := issueOne(t, s, "ada@example.com")

	t.Run("missing-ish token is unknown", func(t *testing.T) {
		if _, err := s.CheckKey(ctx, "ak_never_issued"); !errors.Is(err, ErrKeyUnknown) {
			t.Errorf("got %v, want ErrKeyUnknown", err)
		}
	})

	t.Run("active inside window", func(t *testing.T) {
		s.WithClock(fixedClock("2024-01-15"))
		got, err := s.CheckKey(ctx, key.Key)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if got.ID != key.ID {
			t.Errorf("resolved wrong key")
		}
	})

	t.Run("valid through the whole last day", func(t *testing.T) {
		s.WithClock(fixedClock("2024-01-31"))
		if _, err := s.CheckKey(ctx, key.Key); err != nil {
			t.Errorf("last day should still validate, got %v", err)
		}
	})

	t.Run("expired the day after and flip persists", func(t *testing.T) {
		s.WithClock(fixedClock("2024-02-01"))
		got, err := s.CheckKey(ctx, key.Key)
		if !errors.Is(err, ErrKeyExpired) {
			t.Fatalf("got %v, want ErrKeyExpired", err)
		}
		if got.Status != model.StatusExpired {
			t.Errorf("returned status = %q, want expired", got.Status)
		}

		// The flip was written: even with the clock moved back the key
		// stays expired.
		s.WithClock(fixedClock("2024-01-15"))
		if _, err := s.CheckKey(ctx, key.Key); !errors.Is(err, ErrKeyExpired) {
			t.Errorf("stored expired status should win, got %v", err)
		}
	})
}

func TestCheckKeyInactive(t *testing.T) {
	s, _ := newTestKeys(t)
	ctx := context.Background()
	key := issueOne(t, s, "ada@example.com")

	if _, err := s.UpdateStatus(ctx, key.ID, "inactive"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	s.WithClock(fixedClock("2024-01-15"))
	if _, err := s.CheckKey(ctx, key.Key); !errors.Is(err, ErrKeyInactive) {
		t.Errorf("got %v, want ErrKeyInactive", err)
	}
}

func TestGenerateOnlyAndAssociate(t *testing.T) {
	s, _ := newTestKeys(t)
	ctx := context.Background()

	key, err := s.GenerateOnly(ctx, "2024-01-01", "2024-12-31", "")
	if err != nil {
		t.Fatalf("generate-only: %v", err)
	}
	if key.UserID != nil {
		t.Fatalf("generate-only key should have no owner")
	}

	// Unattached keys never validate.
	s.WithClock(fixedClock("2024-06-01"))
	if _, err := s.CheckKey(ctx, key.Key); !errors.Is(err, ErrKeyUnknown) {
		t.Fatalf("unattached key should be unknown, got %v", err)
	}

	owned, err := s.AssociateUser(ctx, key.Key, "Grace", "Hopper", "grace@example.com")
	if err != nil {
		t.Fatalf("associate: %v", err)
	}
	if owned.Email == nil || *owned.Email != "grace@example.com" {
		t.Errorf("owner email = %v", owned.Email)
	}

	if _, err := s.CheckKey(ctx, key.Key); err != nil {
		t.Errorf("associated key should validate, got %v", err)
	}

	if _, err := s.AssociateUser(ctx, "ak_nope", "Grace", "Hopper", "grace@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("associating unknown key: got %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusAndDelete(t *testing.T) {
	s, _ := newTestKeys(t)
	ctx := context.Background()
	key := issueOne(t, s, "ada@example.com")

	if _, err := s.UpdateStatus(ctx, key.ID, "revoked"); !IsValidation(err) {
		t.Errorf("bad status: got %v, want validation error", err)
	}
	if _, err := s.UpdateStatus(ctx, 9999, "active"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key: got %v, want ErrNotFound", err)
	}

	got, err := s.UpdateStatus(ctx, key.ID, "expired")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != model.StatusExpired {
		t.Errorf("status = %q", got.Status)
	}

	if err := s.Delete(ctx, key.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: got %v, want ErrNotFound", err)
	}
}
