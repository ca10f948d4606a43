package live

import "sync/atomic"

// EndGuard is a one-shot latch around the end sequence.
// Only the caller that wins TryLatch runs the sequence.
type EndGuard struct {
	latched atomic.Bool
}

// TryLatch sets the latch and reports whether this call set it.
func (g *EndGuard) TryLatch() bool {
	return g.latched.CompareAndSwap(false, true)
}

// Release clears the latch so a failed end attempt can be retried.
func (g *EndGuard) Release() {
	g.latched.Store(false)
}

// Latched reports whether the end sequence has begun.
func (g *EndGuard) Latched() bool {
	return g.latched.Load()
}
