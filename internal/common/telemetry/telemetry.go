// Package telemetry wires up the process-wide structured logger and the
// Prometheus metrics the control plane exposes on the admin server.
package telemetry

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SnapshotsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flexgate_snapshots_published_total",
		Help: "Total number of config snapshots published by the reconciler.",
	})
	ReconcileTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flexgate_reconcile_ticks_total",
		Help: "Total number of reconciler ticks, successful or not.",
	})
	ReconcileErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flexgate_reconcile_errors_total",
		Help: "Total number of reconciler ticks that failed with a transport error.",
	})
	ServicesDiscovered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flexgate_services_discovered",
		Help: "Number of services in the most recently built ServiceMap.",
	})
	RegistrationState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flexgate_registration_state",
		Help: "Current Registration Agent state (0=Idle, 1=Registered, 2=Deregistering, 3=Terminal).",
	})
	XDSSnapshotsPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flexgate_xds_snapshots_pushed_total",
		Help: "Total number of Envoy snapshots pushed to the ADS cache.",
	})
	XDSNodesSeeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flexgate_xds_nodes_seeded_total",
		Help: "Total number of ADS stream requests whose node was seeded from the reference snapshot.",
	})
)

// InitMetrics registers every collector with the default Prometheus registry.
func InitMetrics() {
	prometheus.MustRegister(
		SnapshotsPublished,
		ReconcileTicks,
		ReconcileErrors,
		ServicesDiscovered,
		RegistrationState,
		XDSSnapshotsPushed,
		XDSNodesSeeded,
	)
}

// NewLogger builds the process-wide slog.Logger, matching the teacher's
// text-handler-to-stdout convention.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
