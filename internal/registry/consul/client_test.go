package consul

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/riverbend/flexgate/internal/registry"
)

func TestListServiceNamesExcludesNothingItself(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/catalog/services" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string][]string{
			"consul": {},
			"web":    {"primary"},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	names, err := c.ListServiceNames(t.Context())
	if err != nil {
		t.Fatalf("ListServiceNames returned error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("got %d names, want 2 (filtering happens in the Builder, not the client)", len(names))
	}
}

func TestListHealthyInstancesFallsBackToNodeAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"Node":    map[string]any{"Address": "10.0.0.9"},
				"Service": map[string]any{"ID": "web-1", "Service": "web", "Address": "", "Port": 8080},
			},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	instances, err := c.ListHealthyInstances(t.Context(), "web")
	if err != nil {
		t.Fatalf("ListHealthyInstances returned error: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(instances))
	}
	if instances[0].Address != "10.0.0.9" {
		t.Errorf("Address = %q, want fallback to node address 10.0.0.9", instances[0].Address)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	registrations := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/agent/service/register" {
			registrations++
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	rec := registry.RegistrationRecord{ID: "web-1", Name: "web", Address: "10.0.0.1", Port: 8080}
	if err := c.Register(t.Context(), rec); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}
	if err := c.Register(t.Context(), rec); err != nil {
		t.Fatalf("second Register returned error: %v", err)
	}
	if registrations != 2 {
		t.Fatalf("expected two HTTP calls (idempotence is observable-state, not call-count), got %d", registrations)
	}
}
