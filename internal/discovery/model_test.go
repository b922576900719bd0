package discovery

import (
	"testing"

	"github.com/riverbend/flexgate/internal/registry"
)

func TestDeriveInstanceDefaults(t *testing.T) {
	raw := registry.ServiceInstance{ServiceID: "svc-1", Address: "10.0.0.5", Port: 8080}
	inst := deriveInstance(raw)

	if inst.Scheme != "https" {
		t.Errorf("default scheme = %q, want https", inst.Scheme)
	}
	if inst.Protocol != "http" {
		t.Errorf("default protocol = %q, want http", inst.Protocol)
	}
	if inst.Weight != 1 {
		t.Errorf("default weight = %d, want 1", inst.Weight)
	}
	if inst.PathPrefix != "" {
		t.Errorf("default pathPrefix = %q, want empty", inst.PathPrefix)
	}
}

func TestDeriveInstanceFromMeta(t *testing.T) {
	raw := registry.ServiceInstance{
		ServiceID: "svc-1",
		Address:   "10.0.0.5",
		Port:      8080,
		Meta: map[string]string{
			"pathPrefix": "/svc",
			"weight":     "5",
			"scheme":     "HTTP",
			"protocol":   "GRPC",
		},
	}
	inst := deriveInstance(raw)

	if inst.PathPrefix != "/svc" {
		t.Errorf("pathPrefix = %q, want /svc", inst.PathPrefix)
	}
	if inst.Weight != 5 {
		t.Errorf("weight = %d, want 5", inst.Weight)
	}
	if inst.Scheme != "http" {
		t.Errorf("scheme = %q, want http", inst.Scheme)
	}
	if inst.Protocol != "grpc" {
		t.Errorf("protocol = %q, want grpc", inst.Protocol)
	}
}

func TestDeriveInstanceIgnoresInvalidMeta(t *testing.T) {
	raw := registry.ServiceInstance{
		ServiceID: "svc-1",
		Address:   "10.0.0.5",
		Port:      8080,
		Meta: map[string]string{
			"weight":   "not-a-number",
			"scheme":   "ftp",
			"protocol": "carrier-pigeon",
		},
	}
	inst := deriveInstance(raw)

	if inst.Weight != 1 {
		t.Errorf("non-numeric weight should fall back to 1, got %d", inst.Weight)
	}
	if inst.Scheme != "https" {
		t.Errorf("invalid scheme should fall back to https, got %q", inst.Scheme)
	}
	if inst.Protocol != "http" {
		t.Errorf("invalid protocol should fall back to http, got %q", inst.Protocol)
	}
}

func TestNewServiceMapOrdering(t *testing.T) {
	raw := map[string][]ServiceInstance{
		"zeta": {
			{ServiceInstance: registry.ServiceInstance{ServiceID: "z-2"}},
			{ServiceInstance: registry.ServiceInstance{ServiceID: "z-1"}},
		},
		"alpha": {
			{ServiceInstance: registry.ServiceInstance{ServiceID: "a-1"}},
		},
		"empty": {},
	}

	m := NewServiceMap(raw)

	names := m.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("Names() = %v, want [alpha zeta]", names)
	}

	zeta := m.Instances("zeta")
	if len(zeta) != 2 || zeta[0].ServiceID != "z-1" || zeta[1].ServiceID != "z-2" {
		t.Fatalf("zeta instances not sorted by ServiceID: %+v", zeta)
	}

	if m.Instances("empty") != nil {
		t.Errorf("services with zero instances should be dropped")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}
