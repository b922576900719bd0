// Package agent implements the Registration Agent (§4.C): it publishes this
// process's identity into the registry once its listener is accepting
// requests, and retracts it on graceful shutdown.
package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/riverbend/flexgate/internal/common/config"
	"github.com/riverbend/flexgate/internal/common/telemetry"
	"github.com/riverbend/flexgate/internal/registry"
	"github.com/riverbend/flexgate/internal/resolver"
)

// State is one of the four Registration Agent lifecycle states.
type State int

const (
	Idle State = iota
	Registered
	Deregistering
	Terminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Registered:
		return "Registered"
	case Deregistering:
		return "Deregistering"
	case Terminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}

// Agent drives the Idle -> Registered -> Deregistering -> Terminal
// lifecycle described in §4.C.
type Agent struct {
	cfg    config.GatewayConfig
	client registry.Client
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	recordID string
}

// New builds an Agent bound to cfg and client. cfg is treated as immutable.
func New(cfg config.GatewayConfig, client registry.Client, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{cfg: cfg, client: client, logger: logger, state: Idle}
}

// State reports the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start resolves this process's externally reachable address and registers
// it with the registry. It must be called only after the process's own
// HTTP listener is already accepting requests, so the registry's first
// health probe can succeed. On a transport error it logs and leaves the
// agent Idle — the core performs no automatic retry.
func (a *Agent) Start(ctx context.Context, boundHost string, boundPort int) error {
	a.mu.Lock()
	if a.state != Idle {
		a.mu.Unlock()
		return fmt.Errorf("agent: Start called from state %s, want Idle", a.state)
	}
	a.mu.Unlock()

	resolved, err := resolver.Resolve(a.logger, resolver.Config{
		Address:           a.cfg.Consul.ServiceAddress,
		Port:              a.cfg.Consul.ServicePort,
		Scheme:            registrationScheme(a.cfg.Consul.HTTPScheme),
		PreferredNetworks: a.cfg.Consul.PreferredNetworks,
	}, boundHost, boundPort, registrationScheme(a.cfg.Consul.HTTPScheme))
	if err != nil {
		a.logger.Error("agent: address resolution failed, staying Idle", "error", err)
		return nil
	}

	name := a.cfg.Consul.ServiceName
	id, err := newRecordID(name, resolved.Host, resolved.Port)
	if err != nil {
		a.logger.Error("agent: building registration id failed, staying Idle", "error", err)
		return nil
	}

	rec := registry.RegistrationRecord{
		ID:      id,
		Name:    name,
		Address: resolved.Host,
		Port:    resolved.Port,
		Tags:    a.cfg.Consul.Tags,
		Meta:    buildMeta(a.cfg, resolved.Scheme),
		Check: registry.HealthCheck{
			HTTP:                           fmt.Sprintf("%s://%s:%d%s", resolved.Scheme, resolved.Host, resolved.Port, a.cfg.Consul.HealthCheckPath),
			Interval:                       durationString(a.cfg.HealthCheckInterval()),
			Timeout:                        durationString(a.cfg.HealthCheckTimeout()),
			DeregisterCriticalServiceAfter: durationString(a.cfg.DeregisterCriticalServiceAfter()),
			TLSSkipVerify:                  true,
		},
	}

	if err := a.client.Register(ctx, rec); err != nil {
		a.logger.Error("agent: registration failed, staying Idle", "error", err, "id", id)
		return nil
	}

	a.mu.Lock()
	a.state = Registered
	a.recordID = id
	a.mu.Unlock()
	telemetry.RegistrationState.Set(float64(Registered))

	a.logger.Info("agent: registered", "id", id, "address", resolved.Host, "port", resolved.Port)
	return nil
}

// Stop deregisters the process. Deregistration errors are logged but never
// block termination.
func (a *Agent) Stop(ctx context.Context) {
	a.mu.Lock()
	if a.state != Registered {
		a.mu.Unlock()
		return
	}
	a.state = Deregistering
	id := a.recordID
	a.mu.Unlock()
	telemetry.RegistrationState.Set(float64(Deregistering))

	if err := a.client.Deregister(ctx, id); err != nil {
		a.logger.Error("agent: deregistration failed", "error", err, "id", id)
	} else {
		a.logger.Info("agent: deregistered", "id", id)
	}

	a.mu.Lock()
	a.state = Terminal
	a.mu.Unlock()
	telemetry.RegistrationState.Set(float64(Terminal))
}

func registrationScheme(configured string) string {
	if configured == "" {
		return "http"
	}
	return configured
}

func buildMeta(cfg config.GatewayConfig, scheme string) map[string]string {
	meta := make(map[string]string, len(cfg.Consul.Meta)+5)
	for k, v := range cfg.Consul.Meta {
		meta[k] = v
	}
	meta["pathPrefix"] = cfg.Consul.PathPrefix
	meta["weight"] = weightString(cfg.Consul.Weight)
	meta["scheme"] = scheme
	meta["protocol"] = protocolOrDefault(cfg.Consul.Protocol)
	if _, ok := meta["environment"]; !ok {
		meta["environment"] = ""
	}
	return meta
}

func protocolOrDefault(p string) string {
	if p == "" {
		return "http"
	}
	return p
}

func weightString(w int) string {
	if w <= 0 {
		w = 1
	}
	return fmt.Sprintf("%d", w)
}

func durationString(d interface{ Seconds() float64 }) string {
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

// newRecordID builds "{name}-{address}-{port}-{random}" with a fresh
// 128-bit random suffix, guaranteeing uniqueness by construction.
func newRecordID(name, address string, port int) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("agent: generating random id suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%d-%s", name, address, port, hex.EncodeToString(buf)), nil
}
