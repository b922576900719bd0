package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v2"
)

// envLookup abstracts os.LookupEnv so tests can supply a fake environment.
type envLookup func(key string) (string, bool)

// Load builds a GatewayConfig from the environment, then applies an optional
// YAML overlay file on top of it. overlayPath may be empty.
func Load(lookup envLookup, overlayPath string) (GatewayConfig, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := defaultConfig()

	if v, ok := lookup("CONSUL_ADDRESS"); ok && v != "" {
		cfg.Consul.Address = v
	}
	if v, ok := lookup("CONSUL_SERVICE_NAME"); ok && v != "" {
		cfg.Consul.ServiceName = v
	}
	if v, ok := lookup("CONSUL_SERVICE_ADDRESS"); ok && v != "" {
		cfg.Consul.ServiceAddress = v
	}
	if v, ok := lookup("CONSUL_SERVICE_PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CONSUL_SERVICE_PORT %q: %w", v, err)
		}
		cfg.Consul.ServicePort = p
	}
	if v, ok := lookup("CONSUL_PREFERRED_NETWORKS"); ok && v != "" {
		cfg.Consul.PreferredNetworks = splitCSV(v)
	}
	if v, ok := lookup("CONSUL_PATH_PREFIX"); ok {
		cfg.Consul.PathPrefix = v
	}
	if v, ok := lookup("CONSUL_WEIGHT"); ok && v != "" {
		w, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CONSUL_WEIGHT %q: %w", v, err)
		}
		cfg.Consul.Weight = w
	}
	if v, ok := lookup("CONSUL_HTTP_SCHEME"); ok && v != "" {
		cfg.Consul.HTTPScheme = v
	}
	if v, ok := lookup("CONSUL_PROTOCOL"); ok && v != "" {
		cfg.Consul.Protocol = v
	}
	if v, ok := lookup("CONSUL_HEALTH_CHECK_PATH"); ok && v != "" {
		cfg.Consul.HealthCheckPath = v
	}
	if v, ok := lookup("CONSUL_HEALTH_CHECK_INTERVAL_SECONDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CONSUL_HEALTH_CHECK_INTERVAL_SECONDS %q: %w", v, err)
		}
		cfg.Consul.HealthCheckIntervalSeconds = n
	}
	if v, ok := lookup("CONSUL_HEALTH_CHECK_TIMEOUT_SECONDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CONSUL_HEALTH_CHECK_TIMEOUT_SECONDS %q: %w", v, err)
		}
		cfg.Consul.HealthCheckTimeoutSeconds = n
	}
	if v, ok := lookup("CONSUL_DEREGISTER_CRITICAL_SERVICE_AFTER_SECONDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CONSUL_DEREGISTER_CRITICAL_SERVICE_AFTER_SECONDS %q: %w", v, err)
		}
		cfg.Consul.DeregisterCriticalServiceAfterSeconds = n
	}
	if v, ok := lookup("CONSUL_TAGS"); ok && v != "" {
		cfg.Consul.Tags = splitCSV(v)
	}
	if v, ok := lookup("CONSUL_META"); ok && v != "" {
		m, err := splitKV(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CONSUL_META %q: %w", v, err)
		}
		cfg.Consul.Meta = m
	}
	if v, ok := lookup("CONSUL_REFRESH_INTERVAL_SECONDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CONSUL_REFRESH_INTERVAL_SECONDS %q: %w", v, err)
		}
		cfg.Consul.RefreshIntervalSeconds = n
	}
	if v, ok := lookup("CONSUL_SERVICE_NAMES"); ok && v != "" {
		cfg.Consul.ServiceNames = splitCSV(v)
	}
	if v, ok := lookup("CONSUL_SERVICE_ROUTE_MAPPINGS"); ok && v != "" {
		m, err := splitKV(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CONSUL_SERVICE_ROUTE_MAPPINGS %q: %w", v, err)
		}
		cfg.Consul.ServiceRouteMappings = m
	}

	if overlayPath != "" {
		if err := applyYAMLOverlay(&cfg, overlayPath); err != nil {
			return cfg, err
		}
	}

	if cfg.Consul.ServiceName == "" {
		cfg.Consul.ServiceName = filepath.Base(os.Args[0])
	}

	return cfg, nil
}

func defaultConfig() GatewayConfig {
	return GatewayConfig{
		Consul: ConsulConfig{
			Address:                               "http://localhost:8500",
			HTTPScheme:                             "http",
			Protocol:                               "http",
			HealthCheckPath:                        "/healthz",
			HealthCheckIntervalSeconds:             10,
			HealthCheckTimeoutSeconds:              5,
			DeregisterCriticalServiceAfterSeconds:  30,
			RefreshIntervalSeconds:                 10,
			Weight:                                 1,
		},
		LogLevel:      "info",
		ADSPort:       18000,
		AdminPort:     19005,
		ListenerPorts: []uint32{18080},
	}
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitKV parses a comma-separated list of key=value pairs, as used for
// CONSUL_TAGS-adjacent CONSUL_META and CONSUL_SERVICE_ROUTE_MAPPINGS.
func splitKV(v string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out, nil
}

// yamlOverlay is a partial view of GatewayConfig accepting human-friendly
// duration strings; zero-value fields are left untouched.
type yamlOverlay struct {
	Consul struct {
		Address                         string            `yaml:"address"`
		ServiceName                     string            `yaml:"serviceName"`
		ServiceAddress                  string            `yaml:"serviceAddress"`
		ServicePort                     int               `yaml:"servicePort"`
		PreferredNetworks               []string          `yaml:"preferredNetworks"`
		PathPrefix                      string            `yaml:"pathPrefix"`
		Weight                          int               `yaml:"weight"`
		HTTPScheme                      string            `yaml:"httpScheme"`
		Protocol                        string            `yaml:"protocol"`
		HealthCheckPath                 string            `yaml:"healthCheckPath"`
		HealthCheckInterval             *Duration         `yaml:"healthCheckInterval"`
		HealthCheckTimeout              *Duration         `yaml:"healthCheckTimeout"`
		DeregisterCriticalServiceAfter  *Duration         `yaml:"deregisterCriticalServiceAfter"`
		Tags                            []string          `yaml:"tags"`
		Meta                            map[string]string `yaml:"meta"`
		RefreshInterval                 *Duration         `yaml:"refreshInterval"`
		ServiceNames                    []string          `yaml:"serviceNames"`
		ServiceRouteMappings            map[string]string `yaml:"serviceRouteMappings"`
	} `yaml:"consul"`
	LogLevel      string   `yaml:"logLevel"`
	ADSPort       int      `yaml:"adsPort"`
	AdminPort     int      `yaml:"adminPort"`
	ListenerPorts []uint32 `yaml:"listenerPorts"`
}

func applyYAMLOverlay(cfg *GatewayConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading overlay %s: %w", path, err)
	}

	var overlay yamlOverlay
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("config: parsing overlay %s: %w", path, err)
	}

	if overlay.Consul.Address != "" {
		cfg.Consul.Address = overlay.Consul.Address
	}
	if overlay.Consul.ServiceName != "" {
		cfg.Consul.ServiceName = overlay.Consul.ServiceName
	}
	if overlay.Consul.ServiceAddress != "" {
		cfg.Consul.ServiceAddress = overlay.Consul.ServiceAddress
	}
	if overlay.Consul.ServicePort != 0 {
		cfg.Consul.ServicePort = overlay.Consul.ServicePort
	}
	if len(overlay.Consul.PreferredNetworks) > 0 {
		cfg.Consul.PreferredNetworks = overlay.Consul.PreferredNetworks
	}
	if overlay.Consul.PathPrefix != "" {
		cfg.Consul.PathPrefix = overlay.Consul.PathPrefix
	}
	if overlay.Consul.Weight != 0 {
		cfg.Consul.Weight = overlay.Consul.Weight
	}
	if overlay.Consul.HTTPScheme != "" {
		cfg.Consul.HTTPScheme = overlay.Consul.HTTPScheme
	}
	if overlay.Consul.Protocol != "" {
		cfg.Consul.Protocol = overlay.Consul.Protocol
	}
	if overlay.Consul.HealthCheckPath != "" {
		cfg.Consul.HealthCheckPath = overlay.Consul.HealthCheckPath
	}
	if overlay.Consul.HealthCheckInterval != nil {
		cfg.Consul.HealthCheckIntervalSeconds = int(overlay.Consul.HealthCheckInterval.ToDuration().Seconds())
	}
	if overlay.Consul.HealthCheckTimeout != nil {
		cfg.Consul.HealthCheckTimeoutSeconds = int(overlay.Consul.HealthCheckTimeout.ToDuration().Seconds())
	}
	if overlay.Consul.DeregisterCriticalServiceAfter != nil {
		cfg.Consul.DeregisterCriticalServiceAfterSeconds = int(overlay.Consul.DeregisterCriticalServiceAfter.ToDuration().Seconds())
	}
	if len(overlay.Consul.Tags) > 0 {
		cfg.Consul.Tags = overlay.Consul.Tags
	}
	if len(overlay.Consul.Meta) > 0 {
		cfg.Consul.Meta = overlay.Consul.Meta
	}
	if overlay.Consul.RefreshInterval != nil {
		cfg.Consul.RefreshIntervalSeconds = int(overlay.Consul.RefreshInterval.ToDuration().Seconds())
	}
	if len(overlay.Consul.ServiceNames) > 0 {
		cfg.Consul.ServiceNames = overlay.Consul.ServiceNames
	}
	if len(overlay.Consul.ServiceRouteMappings) > 0 {
		cfg.Consul.ServiceRouteMappings = overlay.Consul.ServiceRouteMappings
	}
	if overlay.LogLevel != "" {
		cfg.LogLevel = overlay.LogLevel
	}
	if overlay.ADSPort != 0 {
		cfg.ADSPort = overlay.ADSPort
	}
	if overlay.AdminPort != 0 {
		cfg.AdminPort = overlay.AdminPort
	}
	if len(overlay.ListenerPorts) > 0 {
		cfg.ListenerPorts = overlay.ListenerPorts
	}

	return nil
}
