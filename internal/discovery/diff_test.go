package discovery

import (
	"testing"

	"github.com/riverbend/flexgate/internal/registry"
)

func instMap(ids ...string) map[string][]ServiceInstance {
	out := make([]ServiceInstance, len(ids))
	for i, id := range ids {
		out[i] = ServiceInstance{ServiceInstance: registry.ServiceInstance{ServiceID: id}}
	}
	return map[string][]ServiceInstance{"svc": out}
}

func TestEqualIdenticalMaps(t *testing.T) {
	a := NewServiceMap(instMap("i1", "i2"))
	b := NewServiceMap(instMap("i1", "i2"))
	if !Equal(a, b) {
		t.Error("identical service maps should be Equal")
	}
}

func TestEqualDetectsAddedInstance(t *testing.T) {
	a := NewServiceMap(instMap("i1"))
	b := NewServiceMap(instMap("i1", "i2"))
	if Equal(a, b) {
		t.Error("adding an instance should not be Equal")
	}
}

func TestEqualDetectsRemovedService(t *testing.T) {
	a := NewServiceMap(instMap("i1"))
	b := NewServiceMap(map[string][]ServiceInstance{})
	if Equal(a, b) {
		t.Error("removing a service should not be Equal")
	}
}

func TestEqualIgnoresMetaOnlyChange(t *testing.T) {
	a := NewServiceMap(map[string][]ServiceInstance{
		"svc": {{ServiceInstance: registry.ServiceInstance{ServiceID: "i1"}, Weight: 1, Scheme: "https"}},
	})
	b := NewServiceMap(map[string][]ServiceInstance{
		"svc": {{ServiceInstance: registry.ServiceInstance{ServiceID: "i1"}, Weight: 9, Scheme: "http"}},
	})
	if !Equal(a, b) {
		t.Error("a weight/scheme-only change on the same ServiceID should still be Equal per the current diff rule")
	}
}
