package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/riverbend/flexgate/internal/registry"
)

// Builder implements the Discovery Snapshot Builder (§4.D). It is pure
// relative to the registry's responses: no caching, no side effects.
type Builder struct {
	Client registry.Client
	Logger *slog.Logger

	// AllowList, when non-empty, restricts discovery to these service
	// names (case-sensitive, per §9's open question).
	AllowList []string
}

// Build fetches every eligible service's healthy instances and returns a
// normalized ServiceMap.
func (b *Builder) Build(ctx context.Context) (ServiceMap, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	names, err := b.Client.ListServiceNames(ctx)
	if err != nil {
		return ServiceMap{}, fmt.Errorf("discovery: listing service names: %w", err)
	}

	allow := allowListSet(b.AllowList)

	raw := make(map[string][]ServiceInstance, len(names))
	for _, name := range names {
		if strings.EqualFold(name, "consul") {
			continue
		}
		if allow != nil {
			if _, ok := allow[name]; !ok {
				continue
			}
		}

		entries, err := b.Client.ListHealthyInstances(ctx, name)
		if err != nil {
			return ServiceMap{}, fmt.Errorf("discovery: listing healthy instances of %s: %w", name, err)
		}
		if len(entries) == 0 {
			continue
		}

		instances := make([]ServiceInstance, 0, len(entries))
		for _, e := range entries {
			if e.ServiceID == "" || e.Address == "" {
				logger.Warn("discovery: dropping malformed instance", "service", name)
				continue
			}
			instances = append(instances, deriveInstance(e))
		}
		if len(instances) == 0 {
			continue
		}
		raw[name] = instances
	}

	return NewServiceMap(raw), nil
}

func allowListSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
