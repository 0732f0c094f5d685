package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"tally/pkg/sdk/types"
)

const (
	defaultNTPPool      = "pool.ntp.org"
	defaultNTPInterval  = 15 * time.Minute
	defaultNTPThreshold = 2 * time.Second
)

// ClockChecker probes NTP periodically and reports the local clock
// offset. Dynamic-counter expiration compares stamps against the wall
// clock, so a skewed clock can prune counters early or keep them alive
// past their lifetime; the daemon warns when the offset crosses the
// threshold.
type ClockChecker struct {
	mu     sync.RWMutex
	status types.ClockStatus

	pool      string
	interval  time.Duration
	threshold time.Duration

	// QueryFunc overrides real NTP queries for testing.
	QueryFunc func() (offset time.Duration, err error)
}

// NewClockChecker creates a checker against the default NTP pool.
func NewClockChecker() *ClockChecker {
	return &ClockChecker{
		pool:      defaultNTPPool,
		interval:  defaultNTPInterval,
		threshold: defaultNTPThreshold,
	}
}

// Run probes once immediately, then on every interval tick until ctx is
// cancelled.
func (c *ClockChecker) Run(ctx context.Context) {
	c.check()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check()
		}
	}
}

func (c *ClockChecker) check() {
	offset, err := c.query()

	status := types.ClockStatus{CheckedAt: time.Now()}
	if err != nil {
		status.Error = err.Error()
	} else {
		status.OffsetMillis = offset.Milliseconds()
		status.Healthy = offset.Abs() < c.threshold
	}

	c.mu.Lock()
	wasSkewed := !c.status.Healthy && c.status.Error == "" && !c.status.CheckedAt.IsZero()
	c.status = status
	c.mu.Unlock()

	if !wasSkewed && !status.Healthy && err == nil {
		slog.Warn("Clock offset exceeds threshold; dynamic-counter expiration may misfire.",
			"offset", offset, "threshold", c.threshold)
	}
}

func (c *ClockChecker) query() (time.Duration, error) {
	if c.QueryFunc != nil {
		return c.QueryFunc()
	}
	resp, err := ntp.Query(c.pool)
	if err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Status returns the most recent probe result.
func (c *ClockChecker) Status() types.ClockStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
