package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/riverbend/flexgate/internal/registry"
)

// fakeClient is an in-memory registry.Client for Builder/Reconciler tests.
type fakeClient struct {
	names     []string
	instances map[string][]registry.ServiceInstance
	listErr   error
}

func (f *fakeClient) Register(ctx context.Context, rec registry.RegistrationRecord) error { return nil }
func (f *fakeClient) Deregister(ctx context.Context, id string) error                      { return nil }

func (f *fakeClient) ListServiceNames(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.names, nil
}

func (f *fakeClient) ListHealthyInstances(ctx context.Context, name string) ([]registry.ServiceInstance, error) {
	return f.instances[name], nil
}

func TestBuilderExcludesConsulAndEmptyServices(t *testing.T) {
	client := &fakeClient{
		names: []string{"consul", "web", "empty"},
		instances: map[string][]registry.ServiceInstance{
			"web":   {{ServiceID: "web-1", Address: "10.0.0.1", Port: 80}},
			"empty": {},
		},
	}
	b := &Builder{Client: client}

	m, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if m.Len() != 1 || m.Names()[0] != "web" {
		t.Fatalf("Names() = %v, want [web]", m.Names())
	}
}

func TestBuilderAppliesAllowList(t *testing.T) {
	client := &fakeClient{
		names: []string{"web", "worker"},
		instances: map[string][]registry.ServiceInstance{
			"web":    {{ServiceID: "w-1", Address: "10.0.0.1", Port: 80}},
			"worker": {{ServiceID: "wk-1", Address: "10.0.0.2", Port: 81}},
		},
	}
	b := &Builder{Client: client, AllowList: []string{"web"}}

	m, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if m.Len() != 1 || m.Names()[0] != "web" {
		t.Fatalf("Names() = %v, want [web]", m.Names())
	}
}

func TestBuilderDropsMalformedInstances(t *testing.T) {
	client := &fakeClient{
		names: []string{"web"},
		instances: map[string][]registry.ServiceInstance{
			"web": {
				{ServiceID: "", Address: "10.0.0.1", Port: 80},
				{ServiceID: "w-2", Address: "", Port: 80},
				{ServiceID: "w-3", Address: "10.0.0.3", Port: 80},
			},
		},
	}
	b := &Builder{Client: client}

	m, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	got := m.Instances("web")
	if len(got) != 1 || got[0].ServiceID != "w-3" {
		t.Fatalf("Instances(web) = %+v, want only w-3", got)
	}
}

func TestBuilderPropagatesListError(t *testing.T) {
	b := &Builder{Client: &fakeClient{listErr: errors.New("boom")}}
	if _, err := b.Build(context.Background()); err == nil {
		t.Fatal("expected an error when ListServiceNames fails")
	}
}
