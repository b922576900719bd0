// Package config holds the immutable configuration value the gateway is
// built from. A GatewayConfig is constructed once at boot and passed by
// reference into every component; nothing here is a package-level mutable
// singleton.
package config

import "time"

// ConsulConfig groups every Consul.* / CONSUL_* input from the environment
// or an optional YAML overlay.
type ConsulConfig struct {
	// Address is the base URL of the registry, e.g. "http://localhost:8500".
	Address string `yaml:"address"`

	// ServiceName defaults to the process name when empty.
	ServiceName string `yaml:"serviceName"`

	// ServiceAddress and ServicePort override address resolution (§4.B step 1).
	ServiceAddress string `yaml:"serviceAddress"`
	ServicePort    int    `yaml:"servicePort"`

	// PreferredNetworks is a list of prefixes or regular expressions used to
	// pick a bound IP when ServiceAddress is not set.
	PreferredNetworks []string `yaml:"preferredNetworks"`

	PathPrefix string `yaml:"pathPrefix"`
	Weight     int    `yaml:"weight"`
	HTTPScheme string `yaml:"httpScheme"` // http|https, registration-side default is http
	Protocol   string `yaml:"protocol"`   // http|grpc|websocket|tcp|udp

	HealthCheckPath                        string `yaml:"healthCheckPath"`
	HealthCheckIntervalSeconds              int    `yaml:"healthCheckIntervalSeconds"`
	HealthCheckTimeoutSeconds               int    `yaml:"healthCheckTimeoutSeconds"`
	DeregisterCriticalServiceAfterSeconds   int    `yaml:"deregisterCriticalServiceAfterSeconds"`

	Tags []string          `yaml:"tags"`
	Meta map[string]string `yaml:"meta"`

	RefreshIntervalSeconds int `yaml:"refreshIntervalSeconds"`

	// ServiceNames is an optional discovery allow-list; when empty every
	// service (other than the registry's own) is eligible.
	ServiceNames []string `yaml:"serviceNames"`

	// ServiceRouteMappings overrides the derived route path per service name.
	ServiceRouteMappings map[string]string `yaml:"serviceRouteMappings"`
}

// GatewayConfig is the top-level, immutable configuration value.
type GatewayConfig struct {
	Consul ConsulConfig `yaml:"consul"`

	LogLevel string `yaml:"logLevel"`

	ADSPort       int      `yaml:"adsPort"`
	AdminPort     int      `yaml:"adminPort"`
	ListenerPorts []uint32 `yaml:"listenerPorts"`
}

// RefreshInterval returns Consul.RefreshIntervalSeconds as a time.Duration,
// defaulting to 10s per spec.
func (c GatewayConfig) RefreshInterval() time.Duration {
	if c.Consul.RefreshIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Consul.RefreshIntervalSeconds) * time.Second
}

// HealthCheckInterval mirrors RefreshInterval for the Consul health check
// cadence, defaulting to 10s per spec.
func (c GatewayConfig) HealthCheckInterval() time.Duration {
	if c.Consul.HealthCheckIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Consul.HealthCheckIntervalSeconds) * time.Second
}

// HealthCheckTimeout defaults to 5s per spec.
func (c GatewayConfig) HealthCheckTimeout() time.Duration {
	if c.Consul.HealthCheckTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Consul.HealthCheckTimeoutSeconds) * time.Second
}

// DeregisterCriticalServiceAfter defaults to 30s per spec.
func (c GatewayConfig) DeregisterCriticalServiceAfter() time.Duration {
	if c.Consul.DeregisterCriticalServiceAfterSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Consul.DeregisterCriticalServiceAfterSeconds) * time.Second
}
