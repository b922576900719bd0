// Package discovery implements the Discovery Snapshot Builder (§4.D) and
// the Reconciler (§4.E): it turns registry responses into a normalized
// ServiceMap and, on change, a new forwarding ConfigSnapshot.
package discovery

import (
	"sort"
	"strconv"
	"strings"

	"github.com/riverbend/flexgate/internal/registry"
)

// ServiceInstance is a registry.ServiceInstance with the gateway-side
// fields derived from its metadata (§3), with explicit defaults applied.
type ServiceInstance struct {
	registry.ServiceInstance

	PathPrefix string
	Weight     int
	Scheme     string
	Protocol   string
}

// deriveInstance applies the §3 default rules to a raw registry instance.
func deriveInstance(raw registry.ServiceInstance) ServiceInstance {
	inst := ServiceInstance{
		ServiceInstance: raw,
		Scheme:          "https",
		Protocol:        "http",
		Weight:          1,
	}

	if v, ok := raw.Meta["pathPrefix"]; ok {
		inst.PathPrefix = v
	}
	if v, ok := raw.Meta["weight"]; ok {
		if w, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			inst.Weight = w
		}
	}
	if v, ok := raw.Meta["scheme"]; ok {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "http" || v == "https" {
			inst.Scheme = v
		}
	}
	if v, ok := raw.Meta["protocol"]; ok {
		v = strings.ToLower(strings.TrimSpace(v))
		switch v {
		case "http", "grpc", "websocket", "tcp", "udp":
			inst.Protocol = v
		}
	}

	return inst
}

// ServiceMap is an immutable, normalized snapshot of the registry at one
// instant: service name -> instances ordered by ServiceID ascending.
type ServiceMap struct {
	names     []string
	instances map[string][]ServiceInstance
}

// NewServiceMap builds a ServiceMap from raw per-service instance lists,
// sorting each service's instances by ServiceID ascending.
func NewServiceMap(raw map[string][]ServiceInstance) ServiceMap {
	names := make([]string, 0, len(raw))
	instances := make(map[string][]ServiceInstance, len(raw))

	for name, list := range raw {
		if len(list) == 0 {
			continue
		}
		sorted := make([]ServiceInstance, len(list))
		copy(sorted, list)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].ServiceID < sorted[j].ServiceID
		})
		instances[name] = sorted
		names = append(names, name)
	}
	sort.Strings(names)

	return ServiceMap{names: names, instances: instances}
}

// Names returns the service names present in the map, sorted.
func (m ServiceMap) Names() []string {
	return append([]string(nil), m.names...)
}

// Instances returns the ordered instance list for name, or nil.
func (m ServiceMap) Instances(name string) []ServiceInstance {
	return m.instances[name]
}

// Len reports the number of services in the map.
func (m ServiceMap) Len() int {
	return len(m.names)
}
