package openapi

import (
	"encoding/json"
	"testing"
)

func TestBuildCoversRoutes(t *testing.T) {
	doc := Build()

	wantPaths := []string{
		"/api/apikey",
		"/api/apikey/generate-only",
		"/api/apikey/associate-user",
		"/api/apikey/validate",
		"/api/apikey/{id}",
		"/api/apikey/{id}/status",
		"/api/user",
		"/api/user/{id}",
		"/api/admin",
		"/api/admin/{id}",
		"/api/auth/login",
		"/api/me",
		"/healthz",
		"/readyz",
	}
	for _, p := range wantPaths {
		if doc.Paths.Find(p) == nil {
			t.Errorf("path %s missing from document", p)
		}
	}

	for _, name := range []string{"Envelope", "APIKey", "User", "Admin"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("schema %s missing from components", name)
		}
	}

	if _, ok := doc.Components.SecuritySchemes["apiKey"]; !ok {
		t.Error("apiKey security scheme missing")
	}
}

func TestDocumentMarshals(t *testing.T) {
	data, err := Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed["openapi"] != "3.1.0" {
		t.Errorf("openapi version = %v", parsed["openapi"])
	}
	info, ok := parsed["info"].(map[string]interface{})
	if !ok || info["title"] != "keymint API" {
		t.Errorf("info block = %v", parsed["info"])
	}
}

func TestKeyPathMethods(t *testing.T) {
	doc := Build()

	item := doc.Paths.Find("/api/apikey/{id}")
	if item.Get == nil || item.Delete == nil {
		t.Error("/api/apikey/{id} should define GET and DELETE")
	}
	if item.Put != nil {
		t.Error("status updates live under /status, not the bare id path")
	}

	status := doc.Paths.Find("/api/apikey/{id}/status")
	if status.Put == nil {
		t.Error("/api/apikey/{id}/status should define PUT")
	}

	me := doc.Paths.Find("/api/me")
	if me.Get.Security == nil {
		t.Error("/api/me should declare the apiKey security requirement")
	}
}
