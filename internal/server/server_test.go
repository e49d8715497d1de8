package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/keymint/keymint/internal/model"
	"github.com/keymint/keymint/internal/service"
	"github.com/keymint/keymint/internal/store"
)

type testEnv struct {
	srv  *Server
	keys *service.KeyService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := service.NewKeyService(st)
	auth := service.NewAuthService(st)

	cfg := DefaultConfig()
	return &testEnv{
		srv:  New(cfg, st, keys, auth, logger),
		keys: keys,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) model.Response {
	t.Helper()
	var resp model.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	return resp
}

func (e *testEnv) issue(t *testing.T, email, startDate, lastDate string) string {
	t.Helper()
	rec := e.do(t, "POST", "/api/apikey", map[string]string{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      email,
		"start_date": startDate,
		"last_date":  lastDate,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue: status %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]interface{})
	key := data["apikey"].(map[string]interface{})["key"].(string)
	if !strings.HasPrefix(key, "ak_") {
		t.Fatalf("issued key %q missing prefix", key)
	}
	return key
}

func (e *testEnv) clock(date string) {
	d, _ := time.Parse(model.DateLayout, date)
	e.keys.WithClock(func() time.Time { return d })
}

func TestProbes(t *testing.T) {
	e := newTestEnv(t)

	if rec := e.do(t, "GET", "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := e.do(t, "GET", "/readyz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
	rec := e.do(t, "GET", "/", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "keymint") {
		t.Errorf("root banner: %d %s", rec.Code, rec.Body.String())
	}
	if rec := e.do(t, "GET", "/openapi.json", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("openapi.json = %d", rec.Code)
	}
}

func TestIssueAndUseKey(t *testing.T) {
	e := newTestEnv(t)
	e.clock("2024-01-15")
	key := e.issue(t, "ada@example.com", "2024-01-01", "2024-01-31")

	rec := e.do(t, "GET", "/api/me", nil, map[string]string{"X-API-Key": key})
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/me = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]interface{})
	user := data["user"].(map[string]interface{})
	if user["email"] != "ada@example.com" {
		t.Errorf("resolved user = %v", user)
	}
}

func TestGateRejections(t *testing.T) {
	e := newTestEnv(t)
	e.clock("2024-01-15")
	key := e.issue(t, "ada@example.com", "2024-01-01", "2024-01-31")

	t.Run("missing key", func(t *testing.T) {
		rec := e.do(t, "GET", "/api/me", nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		rec := e.do(t, "GET", "/api/me", nil, map[string]string{"X-API-Key": "ak_bogus"})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("expired the day after the window", func(t *testing.T) {
		e.clock("2024-02-01")
		rec := e.do(t, "GET", "/api/me", nil, map[string]string{"X-API-Key": key})
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		resp := decodeEnvelope(t, rec)
		if resp.Error != "API key has expired" {
			t.Errorf("error = %q", resp.Error)
		}
	})

	t.Run("expiry flip persisted", func(t *testing.T) {
		rec := e.do(t, "GET", "/api/apikey", nil, nil)
		resp := decodeEnvelope(t, rec)
		list := resp.Data.([]interface{})
		if len(list) != 1 {
			t.Fatalf("expected 1 key, got %d", len(list))
		}
		if st := list[0].(map[string]interface{})["status"]; st != "expired" {
			t.Errorf("stored status = %v, want expired", st)
		}
	})
}

func TestDiagnosticValidate(t *testing.T) {
	e := newTestEnv(t)
	e.clock("2024-01-15")
	key := e.issue(t, "ada@example.com", "2024-01-01", "2024-01-31")

	check := func(t *testing.T, body interface{}, header map[string]string, wantValid bool, wantMsg string) {
		t.Helper()
		rec := e.do(t, "POST", "/api/apikey/validate", body, header)
		if rec.Code != http.StatusOK {
			t.Fatalf("diagnostic endpoint must answer 200, got %d", rec.Code)
		}
		resp := decodeEnvelope(t, rec)
		if resp.Valid == nil || *resp.Valid != wantValid {
			t.Errorf("valid = %v, want %v", resp.Valid, wantValid)
		}
		if resp.Message != wantMsg {
			t.Errorf("message = %q, want %q", resp.Message, wantMsg)
		}
	}

	t.Run("valid via header", func(t *testing.T) {
		check(t, nil, map[string]string{"X-API-Key": key}, true, "API key is valid")
	})
	t.Run("valid via body", func(t *testing.T) {
		check(t, map[string]string{"api_key": key}, nil, true, "API key is valid")
	})
	t.Run("no key", func(t *testing.T) {
		check(t, nil, nil, false, "No API key provided")
	})
	t.Run("unknown key", func(t *testing.T) {
		check(t, map[string]string{"api_key": "ak_bogus"}, nil, false, "Invalid API key")
	})
}

func TestIssueValidationFailure(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/api/apikey", map[string]string{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"start_date": "2024-01-01",
		"last_date":  "2024-01-31",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Success || !strings.Contains(resp.Error, "email") {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestStatusUpdateAndDelete(t *testing.T) {
	e := newTestEnv(t)
	e.issue(t, "ada@example.com", "2024-01-01", "2024-01-31")

	rec := e.do(t, "PUT", "/api/apikey/1/status", map[string]string{"status": "revoked"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad enum: status = %d, want 400", rec.Code)
	}

	rec = e.do(t, "PUT", "/api/apikey/999/status", map[string]string{"status": "inactive"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing key: status = %d, want 404", rec.Code)
	}

	rec = e.do(t, "PUT", "/api/apikey/1/status", map[string]string{"status": "inactive"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, "DELETE", "/api/apikey/999", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing: status = %d, want 404", rec.Code)
	}
	rec = e.do(t, "DELETE", "/api/apikey/1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete: status = %d", rec.Code)
	}
}

func TestGenerateOnlyAndAssociateOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	e.clock("2024-06-01")

	rec := e.do(t, "POST", "/api/apikey/generate-only", map[string]string{
		"start_date": "2024-01-01",
		"last_date":  "2024-12-31",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate-only: %d %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	key := resp.Data.(map[string]interface{})["apikey"].(map[string]interface{})["key"].(string)

	// Unattached keys are rejected as unknown.
	rec = e.do(t, "GET", "/api/me", nil, map[string]string{"X-API-Key": key})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unattached key: status = %d, want 401", rec.Code)
	}

	rec = e.do(t, "POST", "/api/apikey/associate-user", map[string]string{
		"key":        key,
		"first_name": "Grace",
		"last_name":  "Hopper",
		"email":      "grace@example.com",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("associate: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, "GET", "/api/me", nil, map[string]string{"X-API-Key": key})
	if rec.Code != http.StatusOK {
		t.Errorf("associated key: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestUsersEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.issue(t, "ada@example.com", "2024-01-01", "2024-01-31")
	e.issue(t, "ada@example.com", "2024-02-01", "2024-02-28")

	rec := e.do(t, "GET", "/api/user", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list users: %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Count == nil || *resp.Count != 1 {
		t.Errorf("count = %v, want 1 (same email reuses the user)", resp.Count)
	}
	users := resp.Data.([]interface{})
	if n := users[0].(map[string]interface{})["total_apikeys"].(float64); n != 2 {
		t.Errorf("total_apikeys = %v, want 2", n)
	}

	rec = e.do(t, "GET", "/api/user/1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get user: %d", rec.Code)
	}
	resp = decodeEnvelope(t, rec)
	keys := resp.Data.(map[string]interface{})["apikeys"].([]interface{})
	if len(keys) != 2 {
		t.Errorf("user keys = %d, want 2", len(keys))
	}

	rec = e.do(t, "GET", "/api/user/999", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing user: %d, want 404", rec.Code)
	}
}

func TestAdminLifecycle(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/api/admin", map[string]string{
		"email":    "root@example.com",
		"password": "long enough pw",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create admin: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") || strings.Contains(rec.Body.String(), "$2") {
		t.Error("admin response leaks the password field")
	}

	rec = e.do(t, "POST", "/api/admin", map[string]string{
		"email":    "root@example.com",
		"password": "another long pw",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate admin: %d, want 400", rec.Code)
	}

	rec = e.do(t, "POST", "/api/auth/login", map[string]string{
		"email":    "root@example.com",
		"password": "long enough pw",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("login: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, "POST", "/api/auth/login", map[string]string{
		"email":    "root@example.com",
		"password": "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login: %d, want 401", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error != "Invalid email or password" {
		t.Errorf("error = %q", resp.Error)
	}

	rec = e.do(t, "GET", "/api/admin", nil, nil)
	resp = decodeEnvelope(t, rec)
	if resp.Count == nil || *resp.Count != 1 {
		t.Errorf("admin count = %v", resp.Count)
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Success || resp.Error != "Route not found" {
		t.Errorf("envelope = %+v", resp)
	}
}
