// Package xds adapts a published gateway.ConfigSnapshot into Envoy xDS
// resources and serves them over ADS.
package xds

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	clusterpb "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	corepb "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	endpointpb "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	listenerpb "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	routepb "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	hcm "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	upstreamhttp "github.com/envoyproxy/go-control-plane/envoy/extensions/upstreams/http/v3"
	"github.com/envoyproxy/go-control-plane/pkg/cache/types"
	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	"github.com/envoyproxy/go-control-plane/pkg/resource/v3"
	xdstype "github.com/envoyproxy/go-control-plane/pkg/wellknown"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/riverbend/flexgate/internal/common/telemetry"
	"github.com/riverbend/flexgate/internal/gateway"
)

const referenceNodeID = "__REFERENCE_SNAPSHOT__"

// catchAllSuffix is stripped from a Route's PathPattern before it becomes
// an Envoy prefix match: Envoy's own router already matches every path
// under a prefix, so the "{**catch-all}" marker carries no information for
// it.
const catchAllSuffix = "/{**catch-all}"

// Adapter pushes gateway.ConfigSnapshot resources into an Envoy
// SnapshotCache. It enforces no policy of its own: it translates whatever
// the Reconciler already decided.
type Adapter struct {
	Cache         cachev3.SnapshotCache
	ListenerPorts []uint32
	Logger        *slog.Logger

	version uint64
}

// Run subscribes to store's change token and pushes a translated Envoy
// snapshot on every change, until ctx is canceled.
func (a *Adapter) Run(ctx context.Context, store *gateway.Store) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		snap := store.GetConfig()
		if err := a.Push(ctx, snap); err != nil {
			logger.Error("xds: push failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-snap.ChangeToken.Stale():
		}
	}
}

// Push translates snap into Envoy Cluster/ClusterLoadAssignment/
// RouteConfiguration/Listener resources and installs them as the reference
// snapshot, then replicates it to every node currently streaming.
func (a *Adapter) Push(ctx context.Context, snap *gateway.ConfigSnapshot) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clusters := make([]types.Resource, 0, len(snap.Clusters))
	endpoints := make([]types.Resource, 0, len(snap.Clusters))

	clusterIndex := make(map[string]*gateway.Cluster, len(snap.Clusters))
	for i := range snap.Clusters {
		c := snap.Clusters[i]
		clusterIndex[c.ClusterID] = &c

		lbEndpoints := make([]*endpointpb.LbEndpoint, 0, len(c.Destinations))
		isGRPC := false
		for _, dest := range c.Destinations {
			if dest.Protocol == "grpc" {
				isGRPC = true
			}
			host, port, err := splitAddress(dest.Address)
			if err != nil {
				logger.Warn("xds: skipping malformed destination", "cluster", c.ClusterID, "address", dest.Address, "error", err)
				continue
			}
			lbEndpoints = append(lbEndpoints, &endpointpb.LbEndpoint{
				HostIdentifier: &endpointpb.LbEndpoint_Endpoint{
					Endpoint: &endpointpb.Endpoint{
						Address: socketAddress(host, port),
					},
				},
			})
		}

		cla := &endpointpb.ClusterLoadAssignment{
			ClusterName: c.ClusterID,
			Endpoints:   []*endpointpb.LocalityLbEndpoints{{LbEndpoints: lbEndpoints}},
		}
		endpoints = append(endpoints, cla)

		envoyCluster := &clusterpb.Cluster{
			Name: c.ClusterID,
			ClusterDiscoveryType: &clusterpb.Cluster_Type{
				Type: clusterpb.Cluster_STATIC,
			},
			LoadAssignment: cla,
			LbPolicy:       clusterpb.Cluster_ROUND_ROBIN,
		}
		if isGRPC {
			httpOptsAny, err := anypb.New(&upstreamhttp.HttpProtocolOptions{
				UpstreamProtocolOptions: &upstreamhttp.HttpProtocolOptions_ExplicitHttpConfig_{
					ExplicitHttpConfig: &upstreamhttp.HttpProtocolOptions_ExplicitHttpConfig{
						ProtocolConfig: &upstreamhttp.HttpProtocolOptions_ExplicitHttpConfig_Http2ProtocolOptions{
							Http2ProtocolOptions: &corepb.Http2ProtocolOptions{},
						},
					},
				},
			})
			if err != nil {
				return fmt.Errorf("xds: marshaling http/2 protocol options: %w", err)
			}
			envoyCluster.TypedExtensionProtocolOptions = map[string]*anypb.Any{
				"envoy.upstreams.http.http_protocol_options": httpOptsAny,
			}
		}

		clusters = append(clusters, envoyCluster)
	}

	if len(clusters) == 0 {
		logger.Warn("xds: no clusters in snapshot, pushing empty snapshot")
		if err := a.setSnapshot(ctx, map[resource.Type][]types.Resource{}); err != nil {
			return err
		}
		telemetry.XDSSnapshotsPushed.Inc()
		return nil
	}

	envoyRoutes := make([]*routepb.Route, 0, len(snap.Routes))
	for _, r := range snap.Routes {
		if _, ok := clusterIndex[r.ClusterID]; !ok {
			continue
		}
		envoyRoutes = append(envoyRoutes, &routepb.Route{
			Match: &routepb.RouteMatch{
				PathSpecifier: &routepb.RouteMatch_Prefix{Prefix: routePrefix(r.PathPattern)},
			},
			Action: &routepb.Route_Route{
				Route: &routepb.RouteAction{
					ClusterSpecifier: &routepb.RouteAction_Cluster{Cluster: r.ClusterID},
				},
			},
		})
	}

	routeConfig := &routepb.RouteConfiguration{
		Name: "local_route",
		VirtualHosts: []*routepb.VirtualHost{{
			Name:    "default",
			Domains: []string{"*"},
			Routes:  envoyRoutes,
		}},
	}

	hcmAny, err := anypb.New(&hcm.HttpConnectionManager{
		StatPrefix: "ingress_http",
		CodecType:  hcm.HttpConnectionManager_AUTO,
		RouteSpecifier: &hcm.HttpConnectionManager_Rds{
			Rds: &hcm.Rds{
				ConfigSource: &corepb.ConfigSource{
					ResourceApiVersion: corepb.ApiVersion_V3,
					ConfigSourceSpecifier: &corepb.ConfigSource_Ads{
						Ads: &corepb.AggregatedConfigSource{},
					},
				},
				RouteConfigName: "local_route",
			},
		},
		HttpFilters: []*hcm.HttpFilter{{
			Name: "envoy.filters.http.router",
			ConfigType: &hcm.HttpFilter_TypedConfig{
				TypedConfig: &anypb.Any{
					TypeUrl: "type.googleapis.com/envoy.extensions.filters.http.router.v3.Router",
				},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("xds: marshaling http connection manager: %w", err)
	}

	// A single listener_0 binds the first configured port, matching the
	// teacher's BuildAndPushSnapshot.
	var listeners []types.Resource
	if len(a.ListenerPorts) > 0 {
		listeners = []types.Resource{&listenerpb.Listener{
			Name:    "listener_0",
			Address: socketAddress("0.0.0.0", a.ListenerPorts[0]),
			FilterChains: []*listenerpb.FilterChain{{
				Filters: []*listenerpb.Filter{{
					Name:       xdstype.HTTPConnectionManager,
					ConfigType: &listenerpb.Filter_TypedConfig{TypedConfig: hcmAny},
				}},
			}},
		}}
	}

	err = a.setSnapshot(ctx, map[resource.Type][]types.Resource{
		resource.ClusterType:  clusters,
		resource.EndpointType: endpoints,
		resource.RouteType:    {routeConfig},
		resource.ListenerType: listeners,
	})
	if err != nil {
		return err
	}

	telemetry.XDSSnapshotsPushed.Inc()
	logger.Info("xds: pushed snapshot", "clusters", len(clusters), "routes", len(envoyRoutes), "listeners", len(listeners))
	return nil
}

func (a *Adapter) setSnapshot(ctx context.Context, resources map[resource.Type][]types.Resource) error {
	version := atomic.AddUint64(&a.version, 1)
	snap, err := cachev3.NewSnapshot(strconv.FormatUint(version, 10), resources)
	if err != nil {
		return fmt.Errorf("xds: building snapshot: %w", err)
	}

	if err := a.Cache.SetSnapshot(ctx, referenceNodeID, snap); err != nil {
		return fmt.Errorf("xds: setting reference snapshot: %w", err)
	}
	for _, nodeID := range a.Cache.GetStatusKeys() {
		if err := a.Cache.SetSnapshot(ctx, nodeID, snap); err != nil {
			return fmt.Errorf("xds: setting snapshot for node %s: %w", nodeID, err)
		}
	}
	return nil
}

func routePrefix(pathPattern string) string {
	if trimmed, ok := strings.CutSuffix(pathPattern, catchAllSuffix); ok {
		return trimmed
	}
	return pathPattern
}

func socketAddress(host string, port uint32) *corepb.Address {
	return &corepb.Address{
		Address: &corepb.Address_SocketAddress{
			SocketAddress: &corepb.SocketAddress{
				Address:       host,
				PortSpecifier: &corepb.SocketAddress_PortValue{PortValue: port},
			},
		},
	}
}

func splitAddress(raw string) (string, uint32, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", 0, fmt.Errorf("invalid address %q", raw)
	}
	portStr := u.Port()
	if portStr == "" {
		return "", 0, fmt.Errorf("address %q has no port", raw)
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("address %q has invalid port: %w", raw, err)
	}
	return u.Hostname(), uint32(port), nil
}
