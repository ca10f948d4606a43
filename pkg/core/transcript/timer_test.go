package transcript

import (
	"context"
	"testing"
	"time"
)

func TestTimer_CountsEachTick(t *testing.T) {
	t.Parallel()

	tick := make(chan time.Time)
	timer := NewTimer(tick)
	seen := make(chan int, 16)
	timer.OnTick(func(seconds int) { seen <- seconds })
	timer.Start(context.Background())
	defer timer.Stop()

	const T = 5
	last := 0
	for i := 0; i < T; i++ {
		tick <- time.Now()
		got := <-seen
		if got < last {
			t.Fatalf("seconds decreased: %d after %d", got, last)
		}
		last = got
	}
	if got := timer.Seconds(); got != T {
		t.Fatalf("Seconds()=%d, want %d", got, T)
	}
}

func TestTimer_FreezeStopsCounting(t *testing.T) {
	t.Parallel()

	tick := make(chan time.Time)
	timer := NewTimer(tick)
	seen := make(chan int, 16)
	timer.OnTick(func(seconds int) { seen <- seconds })
	timer.Start(context.Background())

	tick <- time.Now()
	<-seen
	timer.Freeze()
	for i := 0; i < 3; i++ {
		tick <- time.Now()
	}
	timer.Stop()

	if got := timer.Seconds(); got != 1 {
		t.Fatalf("Seconds()=%d after freeze, want 1", got)
	}
	select {
	case s := <-seen:
		t.Fatalf("unexpected tick callback while frozen: %d", s)
	default:
	}
}

func TestTimer_ResumeAfterFreeze(t *testing.T) {
	t.Parallel()

	tick := make(chan time.Time)
	timer := NewTimer(tick)
	seen := make(chan int, 16)
	timer.OnTick(func(seconds int) { seen <- seconds })
	timer.Start(context.Background())
	defer timer.Stop()

	tick <- time.Now()
	<-seen
	timer.Freeze()
	timer.Resume()
	tick <- time.Now()
	if got := <-seen; got != 2 {
		t.Fatalf("seconds=%d after resume, want 2", got)
	}
}

func TestTimer_StopWithoutStart(t *testing.T) {
	t.Parallel()

	timer := NewTimer(nil)
	timer.Stop()
	timer.Stop()
	if got := timer.Seconds(); got != 0 {
		t.Fatalf("Seconds()=%d, want 0", got)
	}
}

func TestTimer_StartIsIdempotent(t *testing.T) {
	t.Parallel()

	tick := make(chan time.Time)
	timer := NewTimer(tick)
	seen := make(chan int, 16)
	timer.OnTick(func(seconds int) { seen <- seconds })
	timer.Start(context.Background())
	timer.Start(context.Background())
	defer timer.Stop()

	tick <- time.Now()
	if got := <-seen; got != 1 {
		t.Fatalf("seconds=%d, want 1", got)
	}
	select {
	case tick <- time.Now():
		if got := <-seen; got != 2 {
			t.Fatalf("seconds=%d, want 2", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timer goroutine not receiving ticks")
	}
}
