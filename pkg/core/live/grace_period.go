package live

import (
	"sync"
	"time"
)

// GraceTimer defers the automatic end so trailing speech can finish.
// Starting it again replaces the pending callback.
type GraceTimer struct {
	mu     sync.Mutex
	timer  *time.Timer
	active bool
	gen    uint64
}

// Start schedules fn after d. A non-positive d runs fn on a new goroutine immediately.
func (g *GraceTimer) Start(d time.Duration, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.gen++
	gen := g.gen
	g.active = true

	fire := func() {
		g.mu.Lock()
		if !g.active || g.gen != gen {
			g.mu.Unlock()
			return
		}
		g.active = false
		g.timer = nil
		g.mu.Unlock()
		fn()
	}

	if d <= 0 {
		go fire()
		return
	}
	g.timer = time.AfterFunc(d, fire)
}

// Cancel stops a pending callback without running it.
func (g *GraceTimer) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.active = false
	g.gen++
}

// Active reports whether a callback is pending.
func (g *GraceTimer) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}
