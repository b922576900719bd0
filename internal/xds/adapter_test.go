package xds

import (
	"context"
	"testing"

	clusterpb "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	"github.com/envoyproxy/go-control-plane/pkg/resource/v3"

	"github.com/riverbend/flexgate/internal/gateway"
)

func TestPushEmptySnapshotDoesNotPanic(t *testing.T) {
	cache := cachev3.NewSnapshotCache(true, cachev3.IDHash{}, nil)
	a := &Adapter{Cache: cache, ListenerPorts: []uint32{18080}}

	if err := a.Push(context.Background(), gateway.NewConfigSnapshot(nil, nil)); err != nil {
		t.Fatalf("Push returned error on empty snapshot: %v", err)
	}

	snap, err := cache.GetSnapshot(referenceNodeID)
	if err != nil {
		t.Fatalf("GetSnapshot returned error: %v", err)
	}
	if len(snap.GetResources(resource.ClusterType)) != 0 {
		t.Error("empty ConfigSnapshot should yield zero Envoy clusters")
	}
}

func TestPushOneClusterPerGatewayCluster(t *testing.T) {
	cache := cachev3.NewSnapshotCache(true, cachev3.IDHash{}, nil)
	a := &Adapter{Cache: cache, ListenerPorts: []uint32{18080}}

	snap := gateway.NewConfigSnapshot(
		[]gateway.Route{{RouteID: "route-web", ClusterID: "cluster-web", PathPattern: "/web/{**catch-all}"}},
		[]gateway.Cluster{{
			ClusterID: "cluster-web",
			Destinations: map[string]gateway.Destination{
				"web-10.0.0.1-8080": {Address: "https://10.0.0.1:8080", Weight: 1, Protocol: "http"},
			},
			LoadBalancingPolicy: gateway.LoadBalancingRoundRobin,
			ServiceName:         "web",
		}},
	)

	if err := a.Push(context.Background(), snap); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}

	envoySnap, err := cache.GetSnapshot(referenceNodeID)
	if err != nil {
		t.Fatalf("GetSnapshot returned error: %v", err)
	}

	clusters := envoySnap.GetResources(resource.ClusterType)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}
	for _, res := range clusters {
		c := res.(*clusterpb.Cluster)
		if c.LbPolicy != clusterpb.Cluster_ROUND_ROBIN {
			t.Errorf("LbPolicy = %v, want ROUND_ROBIN", c.LbPolicy)
		}
		if c.GetClusterDiscoveryType() == nil || c.GetType() != clusterpb.Cluster_STATIC {
			t.Errorf("cluster discovery type = %v, want STATIC", c.GetClusterDiscoveryType())
		}
	}

	routes := envoySnap.GetResources(resource.RouteType)
	if len(routes) != 1 {
		t.Fatalf("got %d route configs, want 1", len(routes))
	}
}

func TestRoutePrefixStripsCatchAll(t *testing.T) {
	if got := routePrefix("/web/{**catch-all}"); got != "/web" {
		t.Errorf("routePrefix = %q, want /web", got)
	}
	if got := routePrefix("/exact"); got != "/exact" {
		t.Errorf("routePrefix should pass through patterns with no catch-all suffix, got %q", got)
	}
}
