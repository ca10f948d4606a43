package transcript

import (
	"context"
	"sync"
	"time"
)

// Timer counts whole seconds since the session mounted.
// It is deterministic given a tick channel; pass nil to use a real one-second ticker.
type Timer struct {
	tick <-chan time.Time

	mu      sync.Mutex
	seconds int
	frozen  bool
	cancel  context.CancelFunc
	done    chan struct{}
	onTick  func(seconds int)
}

// NewTimer creates a stopped timer.
func NewTimer(tick <-chan time.Time) *Timer {
	return &Timer{tick: tick}
}

// OnTick registers a callback invoked after every counted second.
func (t *Timer) OnTick(fn func(seconds int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = fn
}

// Start begins counting. Calling Start on a running timer is a no-op.
func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	go t.run(ctx, done)
}

func (t *Timer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := t.tick
	if tick == nil {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			t.mu.Lock()
			if t.frozen {
				t.mu.Unlock()
				continue
			}
			t.seconds++
			seconds := t.seconds
			fn := t.onTick
			t.mu.Unlock()
			if fn != nil {
				fn(seconds)
			}
		}
	}
}

// Stop cancels the ticking goroutine and waits for it to exit.
// Safe to call when never started.
func (t *Timer) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Freeze stops the count from advancing without stopping the goroutine.
func (t *Timer) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Resume lets a frozen timer advance again.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = false
}

// Seconds returns the elapsed whole seconds.
func (t *Timer) Seconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seconds
}
