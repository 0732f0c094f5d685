// Package publish walks the registry on a configured cadence, emits the
// live counter set to the logging facility, and prunes expired dynamic
// clusters in the same pass.
package publish

import (
	"strconv"
	"time"

	"tally"
	"tally/internal/check"
	"tally/registry"
)

// Clock abstracts wall-clock reads so expiration is testable.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Result summarizes one publish-and-prune pass.
type Result struct {
	// Dropped is the number of clusters pruned.
	Dropped int
	// Oldest is the smallest stamp among pruned clusters (unix seconds),
	// zero when nothing was pruned.
	Oldest int64
}

// Publisher runs the publish-and-prune pass. The scheduler drives it
// periodically; administrative commands may invoke Run directly.
type Publisher struct {
	Registry *registry.Registry
	Sink     Sink
	Clock    Clock // nil means RealClock
}

func (p *Publisher) getClock() Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return RealClock{}
}

// Run performs one pass: under a single lock acquisition it renders a
// tag per live counter into a "Log statistics" event (when publishing is
// enabled) and drops every expired dynamic cluster. Events are emitted
// after the lock is released.
func (p *Publisher) Run() Result {
	check.Assert(p.Registry != nil, "Publisher.Run: Registry must not be nil")

	opts := p.Registry.Options()
	now := p.getClock().Now()
	deadline := now.Unix() - int64(opts.Lifetime/time.Second)

	var ev *Event
	if opts.LogFreq > 0 {
		ev = &Event{Message: "Log statistics", Priority: PriorityInfo}
	}

	var res Result

	p.Registry.Lock()
	p.Registry.ForEachClusterRemove(func(c *registry.Cluster) bool {
		if ev != nil {
			c.ForEach(func(kind tally.CounterKind, cnt *registry.Counter) {
				ev.Tags = append(ev.Tags, Tag{
					Name:  kind.String(),
					Value: c.Key().String() + "=" + strconv.FormatInt(cnt.Load(), 10),
				})
			})
		}
		if !expired(c, deadline) {
			return false
		}
		stamp := c.Counter(tally.Stamp).Load()
		res.Dropped++
		if res.Oldest == 0 || stamp < res.Oldest {
			res.Oldest = stamp
		}
		return true
	})
	p.Registry.Unlock()

	if p.Sink != nil {
		if ev != nil {
			p.Sink.Emit(*ev)
		}
		if res.Dropped > 0 {
			p.Sink.Emit(Event{
				Message:  "Pruning stats-counters have finished",
				Priority: PriorityNotice,
				Tags: []Tag{
					{Name: "dropped", Value: strconv.Itoa(res.Dropped)},
					{Name: "oldest-timestamp", Value: strconv.FormatInt(res.Oldest, 10)},
				},
			})
		}
	}
	return res
}

// expired applies the keep/drop ladder: static clusters and clusters in
// active use are kept, as are dynamic clusters that never registered a
// stamp (nothing to decide on).
func expired(c *registry.Cluster, deadline int64) bool {
	if !c.Dynamic() || c.Refs() > 0 {
		return false
	}
	stampCell := c.Counter(tally.Stamp)
	if stampCell == nil {
		return false
	}
	return stampCell.Load() <= deadline
}
