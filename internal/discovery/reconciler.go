package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverbend/flexgate/internal/common/telemetry"
	"github.com/riverbend/flexgate/internal/gateway"
)

// Reconciler implements the §4.E control loop: poll the registry, diff
// against the last published ServiceMap, and publish a fresh ConfigSnapshot
// only when something actually changed.
type Reconciler struct {
	Builder         *Builder
	Store           *gateway.Store
	RefreshInterval time.Duration
	Logger          *slog.Logger

	// RouteOverrides maps service name -> explicit path pattern override.
	RouteOverrides map[string]string

	last ServiceMap
}

// Run blocks until ctx is canceled. It attempts a reconciliation
// immediately, then on every tick of a single, non-overlapping ticker.
// Build errors are logged and do not stop the loop.
func (r *Reconciler) Run(ctx context.Context) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.tick(ctx, logger)

	ticker := time.NewTicker(r.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, logger)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context, logger *slog.Logger) {
	telemetry.ReconcileTicks.Inc()

	next, err := r.Builder.Build(ctx)
	if err != nil {
		telemetry.ReconcileErrors.Inc()
		logger.Error("reconcile: build failed", "error", err)
		return
	}

	telemetry.ServicesDiscovered.Set(float64(next.Len()))

	if Equal(r.last, next) {
		return
	}

	routes := BuildRoutes(next, r.RouteOverrides)
	clusters := BuildClusters(next)
	r.Store.Publish(gateway.NewConfigSnapshot(routes, clusters))
	telemetry.SnapshotsPublished.Inc()

	r.last = next
	logger.Info("reconcile: published new snapshot", "services", next.Len())
}
