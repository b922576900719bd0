package xds

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	core "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	clusterservice "github.com/envoyproxy/go-control-plane/envoy/service/cluster/v3"
	discovery "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	endpointservice "github.com/envoyproxy/go-control-plane/envoy/service/endpoint/v3"
	listenerservice "github.com/envoyproxy/go-control-plane/envoy/service/listener/v3"
	routeservice "github.com/envoyproxy/go-control-plane/envoy/service/route/v3"
	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	serverv3 "github.com/envoyproxy/go-control-plane/pkg/server/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/riverbend/flexgate/internal/common/telemetry"
)

// RunGRPC starts the ADS gRPC server and blocks until ctx is canceled or
// the server fails. logger may be nil, in which case slog.Default is used.
func RunGRPC(ctx context.Context, adsServer serverv3.Server, port int, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error("xds: failed to listen", "port", port, "error", err)
		os.Exit(1)
	}

	grpcOptions := []grpc.ServerOption{
		grpc.MaxConcurrentStreams(1000000),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	grpcServer := grpc.NewServer(grpcOptions...)

	discovery.RegisterAggregatedDiscoveryServiceServer(grpcServer, adsServer)
	clusterservice.RegisterClusterDiscoveryServiceServer(grpcServer, adsServer)
	endpointservice.RegisterEndpointDiscoveryServiceServer(grpcServer, adsServer)
	listenerservice.RegisterListenerDiscoveryServiceServer(grpcServer, adsServer)
	routeservice.RegisterRouteDiscoveryServiceServer(grpcServer, adsServer)

	logger.Info("xds: registered discovery services", "port", port)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("xds: ADS server listening", "port", port)
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("xds: context canceled, stopping gRPC server")
		grpcServer.GracefulStop()
		<-serveErr
		logger.Info("xds: gRPC server stopped")
	case err := <-serveErr:
		logger.Error("xds: serve error", "error", err)
		os.Exit(1)
	}
}

// ServerCallbacks seeds the requesting node with the current reference
// snapshot on every stream request and logs stream lifecycle events. Logger may be nil,
// in which case slog.Default is used.
type ServerCallbacks struct {
	serverv3.CallbackFuncs
	Cache  cachev3.SnapshotCache
	Logger *slog.Logger
}

func (cb *ServerCallbacks) logger() *slog.Logger {
	if cb.Logger != nil {
		return cb.Logger
	}
	return slog.Default()
}

func (cb *ServerCallbacks) OnStreamOpen(ctx context.Context, streamID int64, typeURL string) error {
	cb.logger().Debug("xds: stream open", "streamID", streamID, "typeURL", typeURL)
	return nil
}

func (cb *ServerCallbacks) OnStreamClosed(streamID int64, node *core.Node) {
	cb.logger().Debug("xds: stream closed", "streamID", streamID, "nodeID", node.Id)
}

// OnStreamRequest copies the reference snapshot to the requesting node on
// every request, so a newly-connected Envoy gets the current config
// instead of waiting for the next reconcile tick.
func (cb *ServerCallbacks) OnStreamRequest(streamID int64, req *discovery.DiscoveryRequest) error {
	logger := cb.logger()
	logger.Debug("xds: stream request",
		"streamID", streamID,
		"nodeID", req.Node.Id,
		"typeURL", req.TypeUrl,
		"resourceNames", req.ResourceNames,
		"responseNonce", req.ResponseNonce,
		"versionInfo", req.VersionInfo)

	snapshot, err := cb.Cache.GetSnapshot(referenceNodeID)
	if err != nil {
		logger.Error("xds: fetching reference snapshot", "error", err)
		return err
	}
	if err := cb.Cache.SetSnapshot(context.Background(), req.Node.Id, snapshot); err != nil {
		logger.Error("xds: seeding snapshot for node", "nodeID", req.Node.Id, "error", err)
		return err
	}
	telemetry.XDSNodesSeeded.Inc()
	return nil
}

func (cb *ServerCallbacks) OnStreamResponse(ctx context.Context, streamID int64, req *discovery.DiscoveryRequest, resp *discovery.DiscoveryResponse) {
	logger := cb.logger()
	if resp != nil {
		logger.Debug("xds: stream response",
			"streamID", streamID,
			"nodeID", req.Node.Id,
			"typeURL", req.TypeUrl,
			"resources", len(resp.Resources),
			"nonce", resp.Nonce,
			"version", resp.VersionInfo)
	} else {
		logger.Debug("xds: stream response (nil)", "streamID", streamID, "nodeID", req.Node.Id, "typeURL", req.TypeUrl)
	}
}

func (cb *ServerCallbacks) OnDeltaStreamOpen(ctx context.Context, streamID int64, typeURL string) error {
	cb.logger().Debug("xds: delta stream open", "streamID", streamID, "typeURL", typeURL)
	return nil
}

func (cb *ServerCallbacks) OnDeltaStreamClosed(streamID int64, node *core.Node) {
	cb.logger().Debug("xds: delta stream closed", "streamID", streamID, "nodeID", node.Id)
}

func (cb *ServerCallbacks) OnStreamDeltaRequest(streamID int64, req *discovery.DeltaDiscoveryRequest) error {
	cb.logger().Debug("xds: stream delta request", "streamID", streamID, "nodeID", req.Node.Id, "typeURL", req.TypeUrl)
	return nil
}

func (cb *ServerCallbacks) OnStreamDeltaResponse(streamID int64, req *discovery.DeltaDiscoveryRequest, resp *discovery.DeltaDiscoveryResponse) {
	cb.logger().Debug("xds: stream delta response", "streamID", streamID, "nodeID", req.Node.Id, "typeURL", resp.TypeUrl)
}
