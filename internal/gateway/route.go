// Package gateway holds the forwarding configuration model — Route,
// Cluster, Destination, ConfigSnapshot — and the Config Snapshot Store
// (§4.F) that publishes it to the data plane.
package gateway

// Destination is one backing URL inside a Cluster.
type Destination struct {
	Address  string
	Weight   int
	Protocol string
}

// Cluster is a named set of destinations plus a selection policy.
type Cluster struct {
	ClusterID           string
	Destinations        map[string]Destination
	LoadBalancingPolicy string
	ServiceName         string
}

// Route is one path-matching rule selecting a Cluster.
type Route struct {
	RouteID     string
	ClusterID   string
	PathPattern string
	Protocol    string
}

const LoadBalancingRoundRobin = "RoundRobin"
