// Package tally holds the shared vocabulary of the statistics engine:
// counter kinds, component kinds with their direction flags, and the
// key that identifies a counter cluster.
//
// The registry itself lives in tally/registry; publishing and pruning in
// tally/publish. Producers register counters against a Registry, keep the
// returned cell handles, and count on the hot path without any lock.
package tally
