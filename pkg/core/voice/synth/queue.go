// Package synth speaks interviewer turns sentence by sentence through a
// cancellable playback queue.
package synth

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
)

// Engine plays one unit of text to completion.
type Engine interface {
	// Speak blocks until the unit finished, failed, or ctx was cancelled.
	Speak(ctx context.Context, text string, voice *Voice) error
}

// Status is the observable queue state.
type Status struct {
	Enabled  bool
	Speaking bool
	Busy     bool
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithCatalog sets the voice catalog consulted on first use.
func WithCatalog(c VoiceCatalog) QueueOption {
	return func(q *Queue) {
		q.catalog = c
	}
}

// WithLocale sets the user locale used as the selection fallback.
func WithLocale(locale string) QueueOption {
	return func(q *Queue) {
		q.locale = locale
	}
}

// WithPreferFemale fixes the otherwise random gender preference.
func WithPreferFemale(preferFemale bool) QueueOption {
	return func(q *Queue) {
		q.preferFemale = preferFemale
	}
}

// Queue serializes speech units. At most one unit plays at a time.
type Queue struct {
	engine       Engine
	catalog      VoiceCatalog
	logger       *slog.Logger
	locale       string
	preferFemale bool

	mu         sync.Mutex
	enabled    bool
	aborted    bool
	generation uint64
	speaking   bool
	busy       bool
	cancelUnit context.CancelFunc
	lastRun    chan struct{}
	selection  *VoiceSelection
	onChange   func(Status)
}

// NewQueue creates a queue, enabled unless engine is nil.
func NewQueue(engine Engine, opts ...QueueOption) *Queue {
	q := &Queue{
		engine:       engine,
		logger:       slog.Default(),
		preferFemale: rand.IntN(2) == 0,
		enabled:      engine != nil,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// OnChange registers the observer invoked after every status change.
func (q *Queue) OnChange(fn func(Status)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onChange = fn
}

// Speak cancels current playback and plays text's sentences in order.
// It does not block; the returned channel closes when the run ends.
func (q *Queue) Speak(ctx context.Context, text string) <-chan struct{} {
	done := make(chan struct{})
	units := SplitSentences(text)

	q.mu.Lock()
	if !q.enabled || len(units) == 0 {
		q.mu.Unlock()
		close(done)
		return done
	}
	if q.cancelUnit != nil {
		q.cancelUnit()
		q.cancelUnit = nil
	}
	q.generation++
	gen := q.generation
	q.aborted = false
	q.speaking = false
	q.busy = true
	prev := q.lastRun
	q.lastRun = done
	q.mu.Unlock()
	q.changed()

	go q.run(ctx, gen, units, prev, done)
	return done
}

// run plays units once the previous run has returned from the engine, so two
// units never overlap even when the engine is slow to honour cancellation.
func (q *Queue) run(ctx context.Context, gen uint64, units []string, prev <-chan struct{}, done chan struct{}) {
	defer close(done)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			q.finish(gen)
			return
		}
	}

	voice := q.voice(ctx)
	for i, unit := range units {
		q.mu.Lock()
		if q.aborted || gen != q.generation {
			q.mu.Unlock()
			return
		}
		unitCtx, cancel := context.WithCancel(ctx)
		q.cancelUnit = cancel
		q.speaking = true
		q.mu.Unlock()
		q.changed()

		err := q.engine.Speak(unitCtx, unit, voice)
		if err != nil && unitCtx.Err() == nil {
			// Failed units advance like completed ones.
			q.logger.Debug("speech unit failed", "index", i, "error", err)
		}
		cancel()

		q.mu.Lock()
		current := gen == q.generation
		if current {
			q.speaking = false
			q.cancelUnit = nil
		}
		q.mu.Unlock()
		if current {
			q.changed()
		}
	}

	q.finish(gen)
}

// finish clears the busy flag if gen is still the current run.
func (q *Queue) finish(gen uint64) {
	q.mu.Lock()
	current := gen == q.generation
	if current {
		q.busy = false
	}
	q.mu.Unlock()
	if current {
		q.changed()
	}
}

// Cancel sets the aborted latch and stops the playing unit. Idempotent.
func (q *Queue) Cancel() {
	q.mu.Lock()
	wasActive := q.busy || q.speaking
	q.aborted = true
	q.generation++
	q.speaking = false
	q.busy = false
	if q.cancelUnit != nil {
		q.cancelUnit()
		q.cancelUnit = nil
	}
	q.mu.Unlock()
	if wasActive {
		q.changed()
	}
}

// SetEnabled toggles synthesis. Disabling cancels any speech in progress.
// A queue without an engine stays disabled.
func (q *Queue) SetEnabled(enabled bool) {
	q.mu.Lock()
	if q.engine == nil {
		enabled = false
	}
	changed := q.enabled != enabled
	q.enabled = enabled
	q.mu.Unlock()

	if !enabled {
		q.Cancel()
	}
	if changed {
		q.changed()
	}
}

// Enabled reports whether synthesis is enabled.
func (q *Queue) Enabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enabled
}

// Speaking reports whether a unit is playing.
func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Busy reports whether a Speak run is in progress, including gaps between units.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Status returns the current status.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

// Selection returns the session voice. ok is false until a catalog lookup succeeded;
// IsFemale then reflects the random preference.
func (q *Queue) Selection() (sel VoiceSelection, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.selection == nil {
		return VoiceSelection{IsFemale: q.preferFemale}, false
	}
	return *q.selection, true
}

// voice selects once per queue. An empty or failing catalog is retried on the next run.
func (q *Queue) voice(ctx context.Context) *Voice {
	q.mu.Lock()
	if q.selection != nil {
		v := q.selection.Voice
		q.mu.Unlock()
		return v
	}
	catalog := q.catalog
	q.mu.Unlock()

	if catalog == nil {
		return nil
	}
	voices, err := catalog.Voices(ctx)
	if err != nil {
		q.logger.Warn("voice catalog unavailable, using engine default", "error", err)
		return nil
	}
	if len(voices) == 0 {
		return nil
	}

	sel := SelectVoice(voices, q.preferFemale, q.locale)
	q.mu.Lock()
	if q.selection == nil {
		q.selection = &sel
		q.logger.Debug("voice selected", "voice", sel.Voice.Name, "female", sel.IsFemale)
	}
	v := q.selection.Voice
	q.mu.Unlock()
	return v
}

func (q *Queue) changed() {
	q.mu.Lock()
	st := q.statusLocked()
	fn := q.onChange
	q.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (q *Queue) statusLocked() Status {
	return Status{Enabled: q.enabled, Speaking: q.speaking, Busy: q.busy}
}
