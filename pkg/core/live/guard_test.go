package live

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEndGuard_OnlyOneWinner(t *testing.T) {
	t.Parallel()

	var g EndGuard
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryLatch() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := winners.Load(); got != 1 {
		t.Fatalf("winners=%d, want 1", got)
	}
	g.Release()
	if g.Latched() || !g.TryLatch() {
		t.Fatal("Release should allow a new latch")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateInitializing: "INITIALIZING",
		StateActive:       "ACTIVE",
		StateEnding:       "ENDING",
		StateEnded:        "ENDED",
		State(42):         "UNKNOWN",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Fatalf("State(%d).String()=%q, want %q", int(st), got, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig("s1").Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if err := DefaultConfig("").Validate(); err == nil {
		t.Fatal("expected error for missing session id")
	}
	cfg := DefaultConfig("s1")
	cfg.GraceDelay = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative grace delay")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordSessionStart()
	m.RecordSubmission("ok")
	m.RecordEndAttempt(TriggerUser, "ok", time.Second)
	m.RecordDegradation("camera")
	m.RecordTurnSpoken()
	m.RecordNotification()
	m.RecordSessionClose()
}
