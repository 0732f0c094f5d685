// Package registry implements the de-duplicating, reference-counted
// store of counter clusters keyed by (component kind, id, instance).
//
// All structural operations — registration, unregistration, iteration,
// removal — require the registry lock, which is exposed so producers can
// batch many registrations under one acquisition. Once a producer holds
// a cell handle, counting is lock-free; the lock never sits on the
// steady-state throughput path.
package registry

import (
	"sync"
	"sync/atomic"

	"tally"
	"tally/internal/check"
)

// Registry owns every cluster. Producers hold borrowed cell handles that
// stay valid while their registration is outstanding; unregistering
// releases the reference and the handle must not be used afterwards.
type Registry struct {
	mu   sync.Mutex
	held atomic.Bool
	opts atomic.Pointer[Options]

	clusters map[tally.Key]*Cluster
}

// New allocates a registry with the given options.
func New(opts Options) *Registry {
	r := &Registry{clusters: make(map[tally.Key]*Cluster)}
	r.opts.Store(&opts)
	return r
}

// Lock acquires the registry lock. The lock is not reentrant.
func (r *Registry) Lock() {
	r.mu.Lock()
	r.held.Store(true)
}

// Unlock releases the registry lock.
func (r *Registry) Unlock() {
	r.held.Store(false)
	r.mu.Unlock()
}

// Options returns the current options. Safe without the lock.
func (r *Registry) Options() Options {
	return *r.opts.Load()
}

// SetOptions atomically swaps the options. Safe without the lock; the
// scheduler picks the new cadence up on its next rearm.
func (r *Registry) SetOptions(opts Options) {
	r.opts.Store(&opts)
}

// Len returns the number of clusters. Requires the lock.
func (r *Registry) Len() int {
	r.assertHeld("Len")
	return len(r.clusters)
}

// RegisterCounter registers a counter of the given kind for key, creating
// the cluster on first use. It returns nil when the configured statistics
// level is below level; callers count into the nil handle as a no-op.
func (r *Registry) RegisterCounter(level int, key tally.Key, kind tally.CounterKind) *Counter {
	r.assertHeld("RegisterCounter")
	check.Assertf(kind.Valid(), "RegisterCounter: counter kind %d out of range", kind)

	if r.opts.Load().Level < level {
		return nil
	}

	c := r.clusters[key]
	if c == nil {
		c = newCluster(key)
		r.clusters[key] = c
	}
	c.refs++
	c.live |= 1 << kind
	return &c.cells[kind]
}

// RegisterDynamicCounter is RegisterCounter for clusters that expire. The
// returned cluster handle makes associating further kinds cheap. created
// is true when the cluster was just made or revived from refs==0.
//
// Registering a key that already exists as a static cluster is a
// contract violation.
func (r *Registry) RegisterDynamicCounter(level int, key tally.Key, kind tally.CounterKind) (cluster *Cluster, cnt *Counter, created bool) {
	r.assertHeld("RegisterDynamicCounter")
	check.Assertf(kind.Valid(), "RegisterDynamicCounter: counter kind %d out of range", kind)

	if r.opts.Load().Level < level {
		return nil, nil, false
	}

	c := r.clusters[key]
	if c == nil {
		c = newCluster(key)
		c.dynamic = true
		r.clusters[key] = c
		created = true
	} else {
		check.Assertf(c.dynamic, "RegisterDynamicCounter: cluster %s is static", key)
		created = c.refs == 0
	}
	c.refs++
	c.live |= 1 << kind
	return c, &c.cells[kind], created
}

// RegisterAssociatedCounter registers an additional kind inside a cluster
// obtained from RegisterDynamicCounter, skipping the key lookup. A nil
// cluster (the gated path) yields a nil handle.
func (r *Registry) RegisterAssociatedCounter(c *Cluster, kind tally.CounterKind) *Counter {
	r.assertHeld("RegisterAssociatedCounter")
	check.Assertf(kind.Valid(), "RegisterAssociatedCounter: counter kind %d out of range", kind)

	if c == nil {
		return nil
	}
	check.Assert(c.dynamic, "RegisterAssociatedCounter: cluster is static")

	c.refs++
	c.live |= 1 << kind
	return &c.cells[kind]
}

// UnregisterCounter releases one registration of kind for key. The handle
// must be the one returned at registration. A nil handle is a tolerated
// no-op (the gated path); anything else that doesn't match is a contract
// violation. The cluster is never destroyed here — pruning does that.
func (r *Registry) UnregisterCounter(key tally.Key, kind tally.CounterKind, handle *Counter) {
	r.assertHeld("UnregisterCounter")
	check.Assertf(kind.Valid(), "UnregisterCounter: counter kind %d out of range", kind)

	if handle == nil {
		return
	}

	c := r.clusters[key]
	check.Assertf(c != nil, "UnregisterCounter: no cluster for key %s", key)
	r.release(c, kind, handle)
}

// UnregisterDynamicCounter releases a registration through the cluster
// handle, skipping the key lookup.
func (r *Registry) UnregisterDynamicCounter(c *Cluster, kind tally.CounterKind, handle *Counter) {
	r.assertHeld("UnregisterDynamicCounter")
	check.Assertf(kind.Valid(), "UnregisterDynamicCounter: counter kind %d out of range", kind)

	if handle == nil {
		return
	}
	check.Assert(c != nil, "UnregisterDynamicCounter: nil cluster with live handle")
	r.release(c, kind, handle)
}

func (r *Registry) release(c *Cluster, kind tally.CounterKind, handle *Counter) {
	check.Assertf(c.live&(1<<kind) != 0, "release: kind %s not live on cluster %s", kind, c.key)
	check.Assertf(handle == &c.cells[kind], "release: handle does not belong to cluster %s kind %s", c.key, kind)
	check.Assertf(c.refs > 0, "release: cluster %s has no outstanding registrations", c.key)
	c.refs--
}

// RegisterAndIncrementDynamicCounter counts a single-shot classification
// event: it registers Processed, increments it, and when stamp is
// nonnegative also registers Stamp and sets it. All registrations are
// released before returning, so the cluster is immediately orphaned and
// lives on until its stamp expires.
func (r *Registry) RegisterAndIncrementDynamicCounter(level int, key tally.Key, stamp int64) {
	c, cnt, _ := r.RegisterDynamicCounter(level, key, tally.Processed)
	cnt.Inc()
	if stamp >= 0 {
		sc := r.RegisterAssociatedCounter(c, tally.Stamp)
		sc.Set(stamp)
		r.UnregisterDynamicCounter(c, tally.Stamp, sc)
	}
	r.UnregisterDynamicCounter(c, tally.Processed, cnt)
}

// ForEachCluster visits every cluster. Requires the lock; the visitor
// must not mutate the registry.
func (r *Registry) ForEachCluster(fn func(c *Cluster)) {
	r.assertHeld("ForEachCluster")
	for _, c := range r.clusters {
		fn(c)
	}
}

// ForEachClusterRemove visits every cluster and removes those for which
// the predicate returns true, in a single pass. Requires the lock.
func (r *Registry) ForEachClusterRemove(pred func(c *Cluster) bool) {
	r.assertHeld("ForEachClusterRemove")
	for key, c := range r.clusters {
		if pred(c) {
			delete(r.clusters, key)
		}
	}
}

// ForEachCounter visits every live (cluster, kind, cell) triple.
// Requires the lock.
func (r *Registry) ForEachCounter(fn func(c *Cluster, kind tally.CounterKind, cnt *Counter)) {
	r.assertHeld("ForEachCounter")
	for _, c := range r.clusters {
		c.ForEach(func(kind tally.CounterKind, cnt *Counter) {
			fn(c, kind, cnt)
		})
	}
}

func (r *Registry) assertHeld(op string) {
	check.Assertf(r.held.Load(), "%s: registry lock not held", op)
}
