// Package query renders the live counter set for external consumers:
// a CSV dump with glob filtering for the control socket, and a
// Prometheus collector for scrapers. Both walk the registry through its
// iteration hooks under the registry lock.
package query

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/gobwas/glob"

	"tally"
	"tally/registry"
)

// csvHeader names the columns of the dump, one row per live counter.
var csvHeader = []string{"kind", "source", "id", "instance", "state", "value"}

// WriteCSV writes every live counter as a semicolon-separated row.
// pattern, when non-empty, is a glob matched against the rendered key
// (e.g. "dst.file(*)" or "src.*"); rows whose key doesn't match are
// skipped. The registry lock is held for the duration of the walk.
func WriteCSV(w io.Writer, reg *registry.Registry, pattern string) error {
	var matcher glob.Glob
	if pattern != "" {
		m, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compile filter %q: %w", pattern, err)
		}
		matcher = m
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	reg.Lock()
	reg.ForEachCounter(func(c *registry.Cluster, kind tally.CounterKind, cnt *registry.Counter) {
		if matcher != nil && !matcher.Match(c.Key().String()) {
			return
		}
		key := c.Key()
		_ = cw.Write([]string{
			kind.String(),
			key.Label(),
			key.ID,
			key.Instance,
			state(c),
			strconv.FormatInt(cnt.Load(), 10),
		})
	})
	reg.Unlock()

	cw.Flush()
	return cw.Error()
}

// state classifies a cluster the way operators expect to read it:
// orphaned dynamic clusters are awaiting expiration, live dynamic ones
// are in use, everything else is a static active counter.
func state(c *registry.Cluster) string {
	switch {
	case c.Dynamic() && c.Refs() == 0:
		return "orphaned"
	case c.Dynamic():
		return "dynamic"
	default:
		return "active"
	}
}
