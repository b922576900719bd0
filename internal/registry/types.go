// Package registry defines the thin, capability-set interface the control
// plane uses to talk to the service registry, independent of which
// registry backend implements it (the core ships a Consul implementation
// under registry/consul).
package registry

import "context"

// ServiceInstance is a raw registry record: one backend endpoint as the
// registry itself reports it, before any gateway-side defaults are
// derived from its metadata.
type ServiceInstance struct {
	ServiceID   string
	ServiceName string
	Address     string
	Port        int
	Tags        []string
	Meta        map[string]string
}

// HealthCheck describes how the registry should probe this process.
type HealthCheck struct {
	HTTP                            string
	Interval                        string
	Timeout                         string
	DeregisterCriticalServiceAfter  string
	TLSSkipVerify                   bool
}

// RegistrationRecord is what the Registration Agent publishes on startup.
type RegistrationRecord struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Meta    map[string]string
	Check   HealthCheck
}

// Client is the capability set every registry backend must satisfy. Every
// call reports a transport error to the caller; the client performs no
// retries of its own — the caller decides whether and when to retry.
type Client interface {
	// Register publishes rec, keyed by rec.ID. Registering the same ID
	// twice is a no-op observable-state-wise (idempotent).
	Register(ctx context.Context, rec RegistrationRecord) error

	// Deregister removes the service with the given ID. Deregistering an
	// unknown or already-deregistered ID still succeeds.
	Deregister(ctx context.Context, id string) error

	// ListServiceNames returns every service name currently known to the
	// registry, including the registry's own service.
	ListServiceNames(ctx context.Context) ([]string, error)

	// ListHealthyInstances returns only the instances of name that are
	// currently passing their health check.
	ListHealthyInstances(ctx context.Context, name string) ([]ServiceInstance, error)
}
