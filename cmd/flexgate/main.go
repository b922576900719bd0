package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	serverv3 "github.com/envoyproxy/go-control-plane/pkg/server/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riverbend/flexgate/internal/agent"
	"github.com/riverbend/flexgate/internal/common/config"
	"github.com/riverbend/flexgate/internal/common/telemetry"
	"github.com/riverbend/flexgate/internal/discovery"
	"github.com/riverbend/flexgate/internal/gateway"
	"github.com/riverbend/flexgate/internal/registry/consul"
	"github.com/riverbend/flexgate/internal/xds"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "optional YAML config overlay path")

	var adsPort int
	var adminPort int
	logLevel := config.LogLevelFlag(slog.LevelInfo)
	var listenerPorts config.Uint32SliceFlag
	var serviceNames config.StringSliceFlag

	flag.IntVar(&adsPort, "ads-port", 0, "ADS gRPC port (overrides config)")
	flag.IntVar(&adminPort, "admin-port", 0, "admin HTTP port (overrides config)")
	flag.Var(&logLevel, "log-level", "log level: debug, info, warn, error (default: info)")
	flag.Var(&listenerPorts, "listener-ports", "comma-separated list of Envoy listener ports")
	flag.Var(&serviceNames, "service-names", "comma-separated allow-list of service names to discover")
	flag.Parse()

	cfg, err := config.Load(os.LookupEnv, configFile)
	if err != nil {
		slog.Error("config: load failed", "error", err)
		os.Exit(1)
	}
	if adsPort != 0 {
		cfg.ADSPort = adsPort
	}
	if adminPort != 0 {
		cfg.AdminPort = adminPort
	}
	if len(listenerPorts) > 0 {
		cfg.ListenerPorts = listenerPorts
	}
	if len(serviceNames) > 0 {
		cfg.Consul.ServiceNames = serviceNames
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" {
			cfg.LogLevel = f.Value.String()
		}
	})

	level := parseLogLevel(cfg.LogLevel)
	logger := telemetry.NewLogger(level)
	slog.SetDefault(logger)

	telemetry.InitMetrics()

	registryClient, err := consul.New(cfg.Consul.Address)
	if err != nil {
		slog.Error("registry: failed to build consul client", "error", err)
		os.Exit(1)
	}

	store := gateway.NewStore()

	snapshotCache := cachev3.NewSnapshotCache(true, cachev3.IDHash{}, nil)
	adapter := &xds.Adapter{
		Cache:         snapshotCache,
		ListenerPorts: cfg.ListenerPorts,
		Logger:        logger,
	}

	callbacks := &xds.ServerCallbacks{Cache: snapshotCache, Logger: logger}
	adsServer := serverv3.NewServer(context.Background(), snapshotCache, callbacks)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		xds.RunGRPC(ctx, adsServer, cfg.ADSPort, logger)
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc(cfg.Consul.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	admin := &http.Server{Addr: fmt.Sprintf(":%d", cfg.AdminPort), Handler: mux}

	adminReady := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		lis, err := net.Listen("tcp", admin.Addr)
		if err != nil {
			slog.Error("admin: failed to listen", "addr", admin.Addr, "error", err)
			os.Exit(1)
		}
		close(adminReady)
		slog.Info("admin: serving", "addr", admin.Addr)
		if err := admin.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin: serve failed", "error", err)
			os.Exit(1)
		}
	}()
	<-adminReady

	// The admin listener doubles as the gateway's own health check target
	// (§4.C's ordering requirement: it must be accepting before the
	// Registration Agent runs).
	registrationAgent := agent.New(cfg, registryClient, logger)
	if err := registrationAgent.Start(ctx, "", cfg.AdminPort); err != nil {
		slog.Error("agent: start failed", "error", err)
		os.Exit(1)
	}

	builder := &discovery.Builder{Client: registryClient, Logger: logger, AllowList: cfg.Consul.ServiceNames}
	reconciler := &discovery.Reconciler{
		Builder:         builder,
		Store:           store,
		RefreshInterval: cfg.RefreshInterval(),
		Logger:          logger,
		RouteOverrides:  cfg.Consul.ServiceRouteMappings,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		adapter.Run(ctx, store)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutdown signal received")

	// §5 shutdown ordering: stop accepting -> deregister -> cancel
	// reconciler -> drain -> exit.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	if err := admin.Shutdown(shutdownCtx); err != nil {
		slog.Error("admin: shutdown error", "error", err)
	}
	cancelShutdown()

	registrationAgent.Stop(context.Background())

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("all services stopped gracefully")
	case <-time.After(5 * time.Second):
		slog.Warn("shutdown timeout exceeded, forcing exit")
	}

	slog.Info("exiting")
}

func parseLogLevel(level string) slog.Level {
	var f config.LogLevelFlag
	if err := f.Set(level); err != nil {
		return slog.LevelInfo
	}
	return f.Level()
}
