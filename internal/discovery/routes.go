package discovery

import (
	"fmt"

	"github.com/riverbend/flexgate/internal/gateway"
)

// BuildClusters converts a ServiceMap into one Cluster per service, with
// one Destination per instance keyed by its destinationId (§3).
func BuildClusters(m ServiceMap) []gateway.Cluster {
	clusters := make([]gateway.Cluster, 0, m.Len())
	for _, name := range m.Names() {
		instances := m.Instances(name)
		destinations := make(map[string]gateway.Destination, len(instances))
		for _, inst := range instances {
			destID := fmt.Sprintf("%s-%s-%d-%s", name, inst.Address, inst.Port, inst.ServiceID)
			destinations[destID] = gateway.Destination{
				Address:  fmt.Sprintf("%s://%s:%d", inst.Scheme, inst.Address, inst.Port),
				Weight:   inst.Weight,
				Protocol: inst.Protocol,
			}
		}
		clusters = append(clusters, gateway.Cluster{
			ClusterID:           clusterID(name),
			Destinations:        destinations,
			LoadBalancingPolicy: gateway.LoadBalancingRoundRobin,
			ServiceName:         name,
		})
	}
	return clusters
}

// BuildRoutes converts a ServiceMap into one Route per service. The path
// pattern follows the three-tier precedence: an explicit override from the
// mapping configuration, else the first instance's derived PathPrefix with
// a catch-all suffix, else "/api/{name}/{**catch-all}".
func BuildRoutes(m ServiceMap, overrides map[string]string) []gateway.Route {
	routes := make([]gateway.Route, 0, m.Len())
	for _, name := range m.Names() {
		routes = append(routes, gateway.Route{
			RouteID:     routeID(name),
			ClusterID:   clusterID(name),
			PathPattern: pathPattern(name, m.Instances(name), overrides),
			Protocol:    m.Instances(name)[0].Protocol,
		})
	}
	return routes
}

func clusterID(serviceName string) string {
	return "cluster-" + serviceName
}

func routeID(serviceName string) string {
	return "route-" + serviceName
}

func pathPattern(name string, instances []ServiceInstance, overrides map[string]string) string {
	if override, ok := overrides[name]; ok && override != "" {
		return override
	}
	if len(instances) > 0 && instances[0].PathPrefix != "" {
		return instances[0].PathPrefix + "/{**catch-all}"
	}
	return "/api/" + name + "/{**catch-all}"
}
