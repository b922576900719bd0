// Package consul implements registry.Client against the HashiCorp Consul
// HTTP API.
package consul

import (
	"context"
	"fmt"
	"net/http"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/riverbend/flexgate/internal/registry"
)

// headerRoundTripper stamps every outbound request with the JSON headers
// Consul's agent API expects, mirroring the teacher's own transport.
type headerRoundTripper struct {
	rt http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return h.rt.RoundTrip(req)
}

// Client adapts *consulapi.Client to registry.Client.
type Client struct {
	api *consulapi.Client
}

var _ registry.Client = (*Client)(nil)

// New builds a Client against the given base URL, e.g. "http://localhost:8500".
func New(addr string) (*Client, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr
	cfg.HttpClient = &http.Client{
		Transport: &headerRoundTripper{rt: http.DefaultTransport},
	}
	api, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul: creating client for %s: %w", addr, err)
	}
	return &Client{api: api}, nil
}

func (c *Client) Register(ctx context.Context, rec registry.RegistrationRecord) error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      rec.ID,
		Name:    rec.Name,
		Address: rec.Address,
		Port:    rec.Port,
		Tags:    rec.Tags,
		Meta:    rec.Meta,
	}
	if rec.Check.HTTP != "" {
		reg.Check = &consulapi.AgentServiceCheck{
			HTTP:                           rec.Check.HTTP,
			Interval:                       rec.Check.Interval,
			Timeout:                        rec.Check.Timeout,
			DeregisterCriticalServiceAfter: rec.Check.DeregisterCriticalServiceAfter,
			TLSSkipVerify:                  rec.Check.TLSSkipVerify,
		}
	}
	if err := c.api.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("consul: registering service %s: %w", rec.ID, err)
	}
	return nil
}

func (c *Client) Deregister(ctx context.Context, id string) error {
	if err := c.api.Agent().ServiceDeregister(id); err != nil {
		return fmt.Errorf("consul: deregistering service %s: %w", id, err)
	}
	return nil
}

func (c *Client) ListServiceNames(ctx context.Context) ([]string, error) {
	opts := (&consulapi.QueryOptions{}).WithContext(ctx)
	services, _, err := c.api.Catalog().Services(opts)
	if err != nil {
		return nil, fmt.Errorf("consul: listing services: %w", err)
	}
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	return names, nil
}

func (c *Client) ListHealthyInstances(ctx context.Context, name string) ([]registry.ServiceInstance, error) {
	opts := (&consulapi.QueryOptions{}).WithContext(ctx)
	entries, _, err := c.api.Health().Service(name, "", true, opts)
	if err != nil {
		return nil, fmt.Errorf("consul: listing healthy instances of %s: %w", name, err)
	}

	instances := make([]registry.ServiceInstance, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.Service == nil {
			continue
		}
		addr := e.Service.Address
		if addr == "" && e.Node != nil {
			addr = e.Node.Address
		}
		if addr == "" {
			continue
		}
		instances = append(instances, registry.ServiceInstance{
			ServiceID:   e.Service.ID,
			ServiceName: e.Service.Service,
			Address:     addr,
			Port:        e.Service.Port,
			Tags:        e.Service.Tags,
			Meta:        e.Service.Meta,
		})
	}
	return instances, nil
}
