package speaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePlayer struct {
	mu       sync.Mutex
	started  bool
	paused   bool
	closed   bool
	finishAt time.Time
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = true
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.paused && time.Now().Before(p.finishAt)
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestPlay_WaitsForCompletion(t *testing.T) {
	t.Parallel()

	p := &fakePlayer{finishAt: time.Now().Add(30 * time.Millisecond)}
	start := time.Now()
	if err := play(context.Background(), p); err != nil {
		t.Fatalf("play() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("play returned after %v, want it to wait for playback", elapsed)
	}
	if !p.closed || p.paused {
		t.Fatalf("player=%+v, want closed and not paused", p)
	}
}

func TestPlay_CancelStopsImmediately(t *testing.T) {
	t.Parallel()

	p := &fakePlayer{finishAt: time.Now().Add(time.Hour)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := play(ctx, p)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if !p.paused || !p.closed {
		t.Fatalf("player=%+v, want paused and closed", p)
	}
}

func TestSpeaker_EmptyPCMIsNoop(t *testing.T) {
	t.Parallel()

	s := New(24000, 1, nil)
	s.newPlayer = func([]byte) player {
		t.Fatal("player created for empty pcm")
		return nil
	}
	if err := s.Play(context.Background(), nil); err != nil {
		t.Fatalf("Play(nil) error = %v", err)
	}
}
