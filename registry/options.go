package registry

import "time"

const (
	// DefaultLogFreq is the publish cadence when none is configured.
	DefaultLogFreq = 600 * time.Second
	// DefaultLifetime is the expiration horizon for dynamic clusters.
	DefaultLifetime = 600 * time.Second
)

// Options govern level gating, publish cadence and dynamic-counter
// expiration. The registry holds them behind an atomic pointer so a
// reload swaps them without touching the lock.
type Options struct {
	// Level gates registrations: a counter declared at a level above
	// this threshold is not materialized.
	Level int

	// LogFreq is the periodic publish cadence. Zero disables publishing
	// but not pruning.
	LogFreq time.Duration

	// Lifetime is how long an orphaned dynamic cluster survives past its
	// last stamp before the pruner drops it.
	Lifetime time.Duration
}

// DefaultOptions returns the options used when nothing is configured:
// level 0, 600s cadence, 600s lifetime.
func DefaultOptions() Options {
	return Options{
		Level:    0,
		LogFreq:  DefaultLogFreq,
		Lifetime: DefaultLifetime,
	}
}
