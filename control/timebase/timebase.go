// Package timebase is the millisecond counter that all of the clock's scheduling is derived from.
package timebase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Period is how often the counter is expected to tick.
const Period = time.Millisecond

// Counter is a free-running millisecond counter.  It wraps after about 49 days; compare
// timestamps with Elapsed, never with < or >.
type Counter struct {
	n atomic.Uint32
}

// Tick advances the counter by one millisecond.
func (c *Counter) Tick() {
	c.n.Add(1)
}

// Now returns the current count.
func (c *Counter) Now() uint32 {
	return c.n.Load()
}

// Elapsed returns the number of milliseconds from since to now, tolerating one wraparound.
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// Run ticks the counter every period until the context is cancelled.
func (c *Counter) Run(ctx context.Context, period time.Duration) error {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Tick()
		case <-ctx.Done():
			return fmt.Errorf("time base: %w", ctx.Err())
		}
	}
}
