package registry

import "tally"

// Cluster groups the counter cells sharing one key. Structural fields —
// the live mask, reference count and dynamic flag — are owned by the
// Registry and only touched under its lock; the cells themselves mutate
// lock-free.
type Cluster struct {
	key     tally.Key
	cells   [tally.NumCounterKinds]Counter
	live    uint8
	refs    int
	dynamic bool
}

func newCluster(key tally.Key) *Cluster {
	return &Cluster{key: key}
}

// Key returns the cluster's identifying key.
func (c *Cluster) Key() tally.Key {
	return c.key
}

// Dynamic reports whether the cluster is eligible for expiration pruning.
func (c *Cluster) Dynamic() bool {
	return c.dynamic
}

// Refs returns the number of outstanding (kind, registration) pairs.
func (c *Cluster) Refs() int {
	return c.refs
}

// Live reports whether the cell for kind has ever been registered.
func (c *Cluster) Live(kind tally.CounterKind) bool {
	return kind.Valid() && c.live&(1<<kind) != 0
}

// Counter returns the cell for kind, or nil when the kind was never
// registered. A cell outside the live mask reads as zero but its value
// is meaningless for publication.
func (c *Cluster) Counter(kind tally.CounterKind) *Counter {
	if !c.Live(kind) {
		return nil
	}
	return &c.cells[kind]
}

// ForEach calls fn for every live (kind, cell) pair in kind order.
// Callers must hold the registry lock.
func (c *Cluster) ForEach(fn func(kind tally.CounterKind, cnt *Counter)) {
	for kind := tally.CounterKind(0); kind.Valid(); kind++ {
		if c.live&(1<<kind) != 0 {
			fn(kind, &c.cells[kind])
		}
	}
}
