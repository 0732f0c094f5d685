package registry

import "sync/atomic"

// Counter is one 64-bit statistics cell. Inc, Dec, Add and Load are
// lock-free and safe from any goroutine; Set is advisory and may race
// with concurrent loads (the Stamp cell has a single writer in practice).
//
// Every method tolerates a nil receiver: a level-gated registration
// returns a nil handle and producers count into it unconditionally.
type Counter struct {
	v atomic.Int64
}

// Inc adds one to the cell.
func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.v.Add(1)
}

// Dec subtracts one from the cell.
func (c *Counter) Dec() {
	if c == nil {
		return
	}
	c.v.Add(-1)
}

// Add adds delta to the cell.
func (c *Counter) Add(delta int64) {
	if c == nil {
		return
	}
	c.v.Add(delta)
}

// Set stores value into the cell.
func (c *Counter) Set(value int64) {
	if c == nil {
		return
	}
	c.v.Store(value)
}

// Load returns the current value, or zero on a nil handle.
func (c *Counter) Load() int64 {
	if c == nil {
		return 0
	}
	return c.v.Load()
}
