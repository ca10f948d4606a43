package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/transcript"
	"github.com/vango-go/vai-interview/pkg/core/video"
	"github.com/vango-go/vai-interview/pkg/core/voice/capture"
	"github.com/vango-go/vai-interview/pkg/core/voice/synth"
)

// ErrNotActive is returned when an interactive operation is attempted outside
// the Active state.
var ErrNotActive = errors.New("live: session is not active")

const (
	endFailedMessage    = "Failed to end the interview. Please try again."
	unsupportedMessage  = "Speech recognition is not supported on this device."
	listenFailedMessage = "Could not start voice input."
)

// EndBackend generates the post-interview artifacts.
type EndBackend interface {
	CreateReview(ctx context.Context, sessionID string) error
	CreateSummary(ctx context.Context, sessionID string) error
	PersistElapsedTime(ctx context.Context, sessionID string, seconds int) error
}

// Navigator receives the session once it ended.
type Navigator interface {
	Navigate(ctx context.Context, sessionID string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, sessionID string) error

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, sessionID string) error {
	return f(ctx, sessionID)
}

// Identity supplies the participant that user turns are tagged with.
type Identity interface {
	ParticipantID() string
}

// StaticIdentity is a fixed participant identifier.
type StaticIdentity string

// ParticipantID implements Identity.
func (s StaticIdentity) ParticipantID() string { return string(s) }

// Dependencies are the components a Session coordinates.
// Store, Speech, Capture and Video are owned by the session once passed in.
type Dependencies struct {
	Store     *transcript.Store
	Speech    *synth.Queue
	Capture   *capture.Controller
	Video     *video.Controller
	Backend   EndBackend
	Navigator Navigator
	Identity  Identity
	Notifier  core.Notifier
	Logger    *slog.Logger
	Metrics   *Metrics
}

// Session orchestrates one mounted interview.
type Session struct {
	config Config
	deps   Dependencies
	logger *slog.Logger

	guard EndGuard
	grace GraceTimer

	mu                  sync.Mutex
	state               State
	answer              string
	lastSpoken          string
	elapsed             int
	unsupportedReported bool
	cameraDegraded      bool

	events  chan Event
	done    chan struct{}
	started atomic.Bool
	closed  atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSession creates a session. Store, Speech, Capture, Video and Backend are required.
func NewSession(config Config, deps Dependencies) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Speech == nil || deps.Capture == nil || deps.Video == nil || deps.Backend == nil {
		return nil, fmt.Errorf("live: store, speech, capture, video and backend are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = core.Discard
	}
	if deps.Identity == nil {
		deps.Identity = StaticIdentity("")
	}
	if deps.Navigator == nil {
		deps.Navigator = NavigatorFunc(func(context.Context, string) error { return nil })
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		config: config,
		deps:   deps,
		logger: logger.With("session_id", config.SessionID),
		state:  StateInitializing,
		events: make(chan Event, config.EventBuffer),
		done:   make(chan struct{}),
	}, nil
}

// SessionID returns the interview identifier.
func (s *Session) SessionID() string {
	return s.config.SessionID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the event stream. It is never closed; select on Done.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Guard exposes the end latch.
func (s *Session) Guard() *EndGuard {
	return &s.guard
}

// Start mounts the session: opens the camera, starts the timer and loads the
// transcript. The session becomes Active even when the camera or the load fails.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrNotActive
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("live: session already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.deps.Metrics.RecordSessionStart()

	s.deps.Store.OnChange(s.onTranscript)
	s.deps.Store.Timer().OnTick(s.onTick)
	s.deps.Speech.OnChange(s.onSpeech)
	s.deps.Capture.OnChange(s.onCapture)
	s.deps.Video.OnChange(s.onVideo)

	if s.config.StartCamera {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.deps.Video.StartCamera(s.ctx)
		}()
	}

	s.deps.Store.Mount(s.ctx)
	if err := s.deps.Store.Load(s.ctx); err != nil {
		s.logger.Warn("starting with empty transcript", "error", err)
	}

	s.setState(StateActive)
	s.checkAutoEnd()
	return nil
}

// CanSubmit reports whether the submit control should be enabled.
func (s *Session) CanSubmit() bool {
	return s.State() == StateActive && !s.deps.Store.Loading()
}

// Submit sends a typed or transcribed answer. Blank answers are ignored.
func (s *Session) Submit(ctx context.Context, text string) error {
	if s.State() != StateActive {
		return ErrNotActive
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if s.deps.Store.Loading() {
		return transcript.ErrSubmitInFlight
	}

	if s.deps.Capture.State().IsRecordingAudio {
		s.deps.Capture.StopListening()
	}
	s.mu.Lock()
	s.answer = ""
	s.mu.Unlock()

	err := s.deps.Store.Submit(ctx, text, s.deps.Identity.ParticipantID())
	switch {
	case err == nil:
		s.deps.Metrics.RecordSubmission("ok")
	case errors.Is(err, transcript.ErrSubmitInFlight):
		s.deps.Metrics.RecordSubmission("rejected")
	default:
		s.deps.Metrics.RecordSubmission("error")
		s.deps.Metrics.RecordNotification()
	}
	return err
}

// SubmitAnswer submits the current answer buffer.
func (s *Session) SubmitAnswer(ctx context.Context) error {
	return s.Submit(ctx, s.Answer())
}

// Answer returns the answer buffer, mirrored from the live voice transcript.
func (s *Session) Answer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer
}

// SetAnswer replaces the answer buffer.
func (s *Session) SetAnswer(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = text
}

// StartListening begins voice input. An unsupported recognizer is reported
// to the user once per session.
func (s *Session) StartListening(ctx context.Context) error {
	if s.State() != StateActive {
		return ErrNotActive
	}
	if !s.deps.Capture.Supported() {
		s.mu.Lock()
		first := !s.unsupportedReported
		s.unsupportedReported = true
		s.mu.Unlock()
		if first {
			s.deps.Metrics.RecordDegradation("recognizer")
			s.notify("recognition_unsupported", unsupportedMessage)
		}
		return capture.ErrRecognitionUnsupported
	}
	if err := s.deps.Capture.StartListening(ctx); err != nil {
		s.logger.Error("start listening failed", "error", err)
		s.notify("listen_failed", listenFailedMessage)
		return err
	}
	return nil
}

// StopListening ends voice input, keeping the answer buffer.
func (s *Session) StopListening() {
	s.deps.Capture.StopListening()
}

// SetSpeechEnabled mutes or unmutes the interviewer voice.
func (s *Session) SetSpeechEnabled(enabled bool) {
	s.deps.Speech.SetEnabled(enabled)
}

// SpeechEnabled reports whether the interviewer voice is on.
func (s *Session) SpeechEnabled() bool {
	return s.deps.Speech.Enabled()
}

// CaptureState returns the voice input flags.
func (s *Session) CaptureState() capture.State {
	return s.deps.Capture.State()
}

// VideoState returns the camera flags.
func (s *Session) VideoState() video.State {
	return s.deps.Video.State()
}

// Elapsed returns the session timer in seconds.
func (s *Session) Elapsed() int {
	return s.deps.Store.Timer().Seconds()
}

// End runs the end sequence on explicit user confirmation. A call while
// another end attempt is running, or after the session ended, is a no-op.
func (s *Session) End(ctx context.Context) error {
	return s.end(ctx, TriggerUser)
}

func (s *Session) end(ctx context.Context, trigger Trigger) error {
	if s.closed.Load() {
		return nil
	}
	if !s.guard.TryLatch() {
		return nil
	}
	if st := s.State(); st != StateActive {
		s.guard.Release()
		if st == StateInitializing {
			return ErrNotActive
		}
		return nil
	}

	s.setState(StateEnding)
	s.grace.Cancel()
	timer := s.deps.Store.Timer()
	timer.Freeze()

	if trigger != TriggerAuto {
		s.deps.Speech.Cancel()
	}
	s.deps.Video.StopCamera()
	s.deps.Capture.StopListening()

	logger := s.logger.With("trigger", string(trigger))
	logger.Info("ending session")

	if err := s.runEndCalls(ctx, timer); err != nil {
		logger.Error("end sequence failed", "error", err)
		s.deps.Metrics.RecordEndAttempt(trigger, "error", 0)
		s.notify("end_failed", endFailedMessage)
		timer.Resume()
		s.setState(StateActive)
		s.guard.Release()
		return err
	}

	elapsed := s.recordedElapsed()
	s.deps.Metrics.RecordEndAttempt(trigger, "ok", time.Duration(elapsed)*time.Second)
	s.setState(StateEnded)
	s.emit(&SessionEndedEvent{
		SessionID:      s.config.SessionID,
		Trigger:        trigger,
		ElapsedSeconds: elapsed,
	})
	logger.Info("session ended", "elapsed_seconds", elapsed)

	if err := s.deps.Navigator.Navigate(ctx, s.config.SessionID); err != nil {
		logger.Error("navigation failed", "error", err)
	}
	return nil
}

// runEndCalls performs review, summary and elapsed-time persistence in order.
// A failure aborts the remaining calls.
func (s *Session) runEndCalls(ctx context.Context, timer *transcript.Timer) error {
	id := s.config.SessionID
	if err := s.deps.Backend.CreateReview(ctx, id); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	if err := s.deps.Backend.CreateSummary(ctx, id); err != nil {
		return fmt.Errorf("create summary: %w", err)
	}

	seconds := timer.Seconds()
	s.mu.Lock()
	s.elapsed = seconds
	s.mu.Unlock()

	if err := s.deps.Backend.PersistElapsedTime(ctx, id, seconds); err != nil {
		return fmt.Errorf("persist elapsed time: %w", err)
	}
	return nil
}

func (s *Session) recordedElapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Close tears the session down: camera, speech, audio capture and timer are
// released. The backend end calls are never run from here.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.guard.TryLatch()
	s.grace.Cancel()
	if s.cancel != nil {
		s.cancel()
	}

	s.deps.Video.StopCamera()
	s.deps.Speech.Cancel()
	s.deps.Capture.StopListening()
	s.deps.Store.Close()
	s.wg.Wait()
	// A camera open racing with teardown is released by the controller itself.
	s.deps.Video.StopCamera()

	if s.started.Load() {
		s.deps.Metrics.RecordSessionClose()
	}
	s.emit(&SessionClosedEvent{Reason: "closed"})
	close(s.done)
	return nil
}

func (s *Session) onTranscript(snap transcript.Snapshot) {
	s.emit(&TranscriptUpdatedEvent{Turns: snap.Turns, Loading: snap.Loading, Ended: snap.Ended})
	s.speakLatest(snap)
	if snap.Ended {
		s.checkAutoEnd()
	}
}

// speakLatest forwards the newest interviewer turn to synthesis once.
func (s *Session) speakLatest(snap transcript.Snapshot) {
	turn, ok := snap.LastInterviewerTurn()
	if !ok || s.closed.Load() {
		return
	}
	s.mu.Lock()
	if turn.Text == s.lastSpoken || s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.lastSpoken = turn.Text
	s.mu.Unlock()

	if !s.deps.Speech.Enabled() {
		return
	}
	s.deps.Metrics.RecordTurnSpoken()
	s.deps.Speech.Speak(s.ctx, turn.Text)
}

func (s *Session) onSpeech(st synth.Status) {
	s.emit(&SpeakingChangedEvent{Speaking: st.Speaking, Busy: st.Busy, Enabled: st.Enabled})
	if st.Busy {
		s.grace.Cancel()
		return
	}
	s.checkAutoEnd()
}

// checkAutoEnd starts the automatic end once the interviewer signalled the end
// and speech has finished or is disabled.
func (s *Session) checkAutoEnd() {
	if s.closed.Load() || s.guard.Latched() || s.State() != StateActive {
		return
	}
	if !s.deps.Store.Ended() {
		return
	}
	if !s.deps.Speech.Enabled() {
		s.grace.Cancel()
		s.goAutoEnd()
		return
	}
	if s.deps.Speech.Busy() {
		return
	}
	s.grace.Start(s.config.GraceDelay, func() {
		if s.deps.Speech.Enabled() && s.deps.Speech.Busy() {
			return
		}
		s.goAutoEnd()
	})
}

func (s *Session) goAutoEnd() {
	go func() {
		if err := s.end(s.ctx, TriggerAuto); err != nil {
			s.logger.Debug("automatic end failed", "error", err)
		}
	}()
}

func (s *Session) onCapture(st capture.State, text string) {
	if st.IsRecordingAudio && text != "" {
		s.mu.Lock()
		s.answer = text
		s.mu.Unlock()
	}
	s.emit(&CaptureChangedEvent{
		IsRecordingAudio: st.IsRecordingAudio,
		IsUserSpeaking:   st.IsUserSpeaking,
		Transcript:       text,
	})
}

func (s *Session) onVideo(st video.State) {
	if st.HasPermissionError {
		s.mu.Lock()
		first := !s.cameraDegraded
		s.cameraDegraded = true
		s.mu.Unlock()
		if first {
			s.deps.Metrics.RecordDegradation("camera")
		}
	}
	s.emit(&VideoChangedEvent{IsRecordingVideo: st.IsRecordingVideo, HasPermissionError: st.HasPermissionError})
}

func (s *Session) onTick(seconds int) {
	s.emit(&TimerTickEvent{Seconds: seconds})
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from != to {
		s.logger.Debug("state changed", "from", from.String(), "to", to.String())
		s.emit(&StateChangedEvent{From: from, To: to})
	}
}

func (s *Session) notify(code, message string) {
	s.deps.Metrics.RecordNotification()
	s.deps.Notifier.Notify(message)
	s.emit(&ErrorEvent{Code: code, Message: message})
}

func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	default:
		// Channel full, drop event
	}
}
