package gateway

import "sync/atomic"

// ChangeToken is a one-shot "became stale" flag attached to a
// ConfigSnapshot. It carries no reference back to its snapshot — a waiting
// consumer that observes staleness calls Store.GetConfig() to fetch the
// snapshot that superseded it, which breaks what would otherwise be a
// snapshot<->token reference cycle.
type ChangeToken struct {
	stale atomic.Bool
	done  chan struct{}
}

func newChangeToken() *ChangeToken {
	return &ChangeToken{done: make(chan struct{})}
}

// IsStale reports whether this token has already transitioned.
func (t *ChangeToken) IsStale() bool {
	return t.stale.Load()
}

// Stale returns a channel that closes exactly once, the moment a newer
// snapshot is published.
func (t *ChangeToken) Stale() <-chan struct{} {
	return t.done
}

// markStale transitions the token from fresh to stale exactly once.
func (t *ChangeToken) markStale() {
	if t.stale.CompareAndSwap(false, true) {
		close(t.done)
	}
}

// ConfigSnapshot is the immutable (Routes, Clusters) pair published to the
// data plane. Once published, a snapshot is never mutated.
type ConfigSnapshot struct {
	Routes      []Route
	Clusters    []Cluster
	ChangeToken *ChangeToken
}

// NewConfigSnapshot builds a snapshot with a fresh ChangeToken. routes and
// clusters are taken by reference and must not be mutated afterward by the
// caller.
func NewConfigSnapshot(routes []Route, clusters []Cluster) *ConfigSnapshot {
	return &ConfigSnapshot{
		Routes:      routes,
		Clusters:    clusters,
		ChangeToken: newChangeToken(),
	}
}
