package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/transcript"
	"github.com/vango-go/vai-interview/pkg/core/types"
	"github.com/vango-go/vai-interview/pkg/core/video"
	"github.com/vango-go/vai-interview/pkg/core/voice/capture"
	"github.com/vango-go/vai-interview/pkg/core/voice/synth"
)

type turnBackend struct {
	mu           sync.Mutex
	turns        []types.ChatTurn
	replies      []types.Reply
	submits      int
	participants []string
}

func (b *turnBackend) FetchTurns(context.Context, string) ([]types.ChatTurn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.ChatTurn(nil), b.turns...), nil
}

func (b *turnBackend) SubmitTurn(_ context.Context, turn types.ChatTurn) (*types.Reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.participants = append(b.participants, turn.ParticipantID)
	reply := types.Reply{Text: fmt.Sprintf("Question %d?", b.submits+1)}
	if b.submits < len(b.replies) {
		reply = b.replies[b.submits]
	}
	b.submits++
	b.turns = append(b.turns, turn, reply.Turn(turn.SessionID))
	return &reply, nil
}

type endBackend struct {
	mu          sync.Mutex
	reviews     int
	summaries   int
	persists    int
	seconds     []int
	order       []string
	summaryErrs []error
	reviewGate  chan struct{}
}

func (b *endBackend) CreateReview(context.Context, string) error {
	if b.reviewGate != nil {
		<-b.reviewGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reviews++
	b.order = append(b.order, "review")
	return nil
}

func (b *endBackend) CreateSummary(context.Context, string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summaries++
	b.order = append(b.order, "summary")
	if len(b.summaryErrs) > 0 {
		err := b.summaryErrs[0]
		b.summaryErrs = b.summaryErrs[1:]
		return err
	}
	return nil
}

func (b *endBackend) PersistElapsedTime(_ context.Context, _ string, seconds int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.persists++
	b.seconds = append(b.seconds, seconds)
	b.order = append(b.order, "elapsed")
	return nil
}

func (b *endBackend) counts() (int, int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reviews, b.summaries, b.persists
}

// recordingEngine completes each unit immediately unless gated.
type recordingEngine struct {
	mu      sync.Mutex
	spoken  []string
	gate    chan struct{}
	entered chan string
}

func (e *recordingEngine) Speak(ctx context.Context, text string, _ *synth.Voice) error {
	e.mu.Lock()
	e.spoken = append(e.spoken, text)
	e.mu.Unlock()
	if e.entered != nil {
		e.entered <- text
	}
	if e.gate == nil {
		return nil
	}
	select {
	case <-e.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *recordingEngine) texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.spoken...)
}

type stubTrack struct {
	mu      sync.Mutex
	stopped bool
}

func (t *stubTrack) Kind() string { return "video" }

func (t *stubTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

func (t *stubTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type stubStream struct{ track *stubTrack }

func (s stubStream) Tracks() []video.Track { return []video.Track{s.track} }
func (s stubStream) Frames() io.Reader     { return strings.NewReader("") }

type notes struct {
	mu       sync.Mutex
	messages []string
}

func (n *notes) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *notes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type harness struct {
	session   *Session
	turns     *turnBackend
	end       *endBackend
	engine    *recordingEngine
	speech    *synth.Queue
	track     *stubTrack
	notes     *notes
	navigated chan string
	tick      chan time.Time
}

type harnessOptions struct {
	graceDelay  time.Duration
	cameraErr   error
	recognizer  capture.Recognizer
	initial     []types.ChatTurn
	replies     []types.Reply
	engine      *recordingEngine
	speechOff   bool
	end         *endBackend
	startCamera bool
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	h := &harness{
		turns:     &turnBackend{turns: opts.initial, replies: opts.replies},
		end:       opts.end,
		engine:    opts.engine,
		track:     &stubTrack{},
		notes:     &notes{},
		navigated: make(chan string, 4),
		tick:      make(chan time.Time),
	}
	if h.end == nil {
		h.end = &endBackend{}
	}
	if h.engine == nil {
		h.engine = &recordingEngine{}
	}

	store := transcript.NewStore("s1", h.turns, transcript.WithNotifier(h.notes), transcript.WithTick(h.tick))
	h.speech = synth.NewQueue(h.engine, synth.WithPreferFemale(true))
	if opts.speechOff {
		h.speech.SetEnabled(false)
	}
	camera := video.CameraFunc(func(context.Context) (video.Stream, error) {
		if opts.cameraErr != nil {
			return nil, opts.cameraErr
		}
		return stubStream{track: h.track}, nil
	})

	cfg := DefaultConfig("s1")
	cfg.GraceDelay = opts.graceDelay
	cfg.StartCamera = opts.startCamera

	session, err := NewSession(cfg, Dependencies{
		Store:    store,
		Speech:   h.speech,
		Capture:  capture.NewController(opts.recognizer),
		Video:    video.NewController(camera),
		Backend:  h.end,
		Identity: StaticIdentity("p1"),
		Notifier: h.notes,
		Navigator: NavigatorFunc(func(_ context.Context, id string) error {
			h.navigated <- id
			return nil
		}),
		Metrics: NewMetrics("test"),
	})
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	h.session = session
	t.Cleanup(func() { _ = session.Close() })
	return h
}

func (h *harness) waitNavigated(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case id := <-h.navigated:
		if id != "s1" {
			t.Fatalf("navigated to %q, want s1", id)
		}
	case <-time.After(within):
		t.Fatal("session did not end")
	}
}

func TestSession_EndTwiceRunsOnce(t *testing.T) {
	t.Parallel()

	end := &endBackend{reviewGate: make(chan struct{})}
	h := newHarness(t, harnessOptions{end: end})
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	first := make(chan error, 1)
	go func() { first <- h.session.End(context.Background()) }()
	for !h.session.Guard().Latched() {
		time.Sleep(time.Millisecond)
	}
	if err := h.session.End(context.Background()); err != nil {
		t.Fatalf("second End error: %v", err)
	}
	close(end.reviewGate)
	if err := <-first; err != nil {
		t.Fatalf("first End error: %v", err)
	}
	if err := h.session.End(context.Background()); err != nil {
		t.Fatalf("End after ended error: %v", err)
	}

	h.waitNavigated(t, time.Second)
	reviews, summaries, persists := end.counts()
	if reviews != 1 || summaries != 1 || persists != 1 {
		t.Fatalf("calls=(%d,%d,%d), want (1,1,1)", reviews, summaries, persists)
	}
	if got := strings.Join(end.order, ","); got != "review,summary,elapsed" {
		t.Fatalf("order=%s", got)
	}
	if h.session.State() != StateEnded {
		t.Fatalf("State()=%v, want ENDED", h.session.State())
	}
	select {
	case id := <-h.navigated:
		t.Fatalf("navigated twice (%s)", id)
	default:
	}
}

func TestSession_EndFailureIsRetryable(t *testing.T) {
	t.Parallel()

	end := &endBackend{summaryErrs: []error{&core.Error{Type: core.ErrAPI, Message: "summary unavailable"}}}
	h := newHarness(t, harnessOptions{end: end})
	_ = h.session.Start(context.Background())

	err := h.session.End(context.Background())
	if !core.IsType(err, core.ErrAPI) {
		t.Fatalf("End error=%v, want api_error", err)
	}
	if h.session.State() != StateActive || h.session.Guard().Latched() {
		t.Fatalf("state=%v latched=%v, want ACTIVE and released", h.session.State(), h.session.Guard().Latched())
	}
	if _, _, persists := end.counts(); persists != 0 {
		t.Fatalf("persist calls=%d after summary failure, want 0", persists)
	}
	if msgs := h.notes.all(); len(msgs) != 1 || msgs[0] != endFailedMessage {
		t.Fatalf("notifications=%q", msgs)
	}

	if err := h.session.End(context.Background()); err != nil {
		t.Fatalf("retry End error: %v", err)
	}
	h.waitNavigated(t, time.Second)
	reviews, summaries, persists := end.counts()
	if reviews != 2 || summaries != 2 || persists != 1 {
		t.Fatalf("calls=(%d,%d,%d), want (2,2,1)", reviews, summaries, persists)
	}
}

func TestSession_PersistsFrozenElapsedTime(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{})
	_ = h.session.Start(context.Background())

	ticks := make(chan int, 8)
	h.session.deps.Store.Timer().OnTick(func(s int) { ticks <- s })
	for i := 0; i < 3; i++ {
		h.tick <- time.Now()
		<-ticks
	}
	if err := h.session.End(context.Background()); err != nil {
		t.Fatalf("End error: %v", err)
	}
	select {
	case h.tick <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("timer goroutine stopped receiving")
	}

	if got := h.end.seconds; len(got) != 1 || got[0] != 3 {
		t.Fatalf("persisted seconds=%v, want [3]", got)
	}
	if got := h.session.Elapsed(); got != 3 {
		t.Fatalf("Elapsed()=%d after end, want 3", got)
	}
}

func TestSession_AutoEndWithoutSpeechSkipsGrace(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		graceDelay: time.Hour,
		speechOff:  true,
		replies:    []types.Reply{{Text: "Thank you, we are done.", IsEnd: true}},
	})
	_ = h.session.Start(context.Background())

	if err := h.session.Submit(context.Background(), "My final answer."); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	h.waitNavigated(t, 2*time.Second)

	if reviews, _, _ := h.end.counts(); reviews != 1 {
		t.Fatalf("reviews=%d, want 1", reviews)
	}
	if len(h.engine.texts()) != 0 {
		t.Fatalf("spoken=%q with speech disabled", h.engine.texts())
	}
}

func TestSession_AutoEndWaitsForSpeechThenGrace(t *testing.T) {
	t.Parallel()

	engine := &recordingEngine{gate: make(chan struct{}), entered: make(chan string, 4)}
	const grace = 50 * time.Millisecond
	h := newHarness(t, harnessOptions{
		graceDelay: grace,
		engine:     engine,
		replies:    []types.Reply{{Text: "That concludes our interview.", IsEnd: true}},
	})
	_ = h.session.Start(context.Background())

	if err := h.session.Submit(context.Background(), "Here is my answer."); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got := <-engine.entered; got != "That concludes our interview." {
		t.Fatalf("spoken=%q", got)
	}

	time.Sleep(4 * grace)
	if reviews, _, _ := h.end.counts(); reviews != 0 {
		t.Fatal("end sequence started while speech was playing")
	}
	if h.session.State() != StateActive {
		t.Fatalf("State()=%v, want ACTIVE", h.session.State())
	}

	released := time.Now()
	close(engine.gate)
	h.waitNavigated(t, 2*time.Second)
	if waited := time.Since(released); waited < grace {
		t.Fatalf("ended after %v, want at least the grace delay %v", waited, grace)
	}
}

func TestSession_StartWithEndedTranscriptDoesNotEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		speechOff: true,
		initial: []types.ChatTurn{
			{SessionID: "s1", Text: "I led the payments migration.", Role: types.RoleUser},
			{SessionID: "s1", Text: "Thanks, that is all for today.", Role: types.RoleInterviewer, IsEnd: true},
		},
	})
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if reviews, summaries, persists := h.end.counts(); reviews != 0 || summaries != 0 || persists != 0 {
		t.Fatalf("calls=(%d,%d,%d), want none", reviews, summaries, persists)
	}
	if h.session.State() != StateActive {
		t.Fatalf("State()=%v, want ACTIVE", h.session.State())
	}
	select {
	case id := <-h.navigated:
		t.Fatalf("navigated to %s without an end", id)
	default:
	}
}

func TestSession_UserEndDuringGraceRunsOnce(t *testing.T) {
	t.Parallel()

	const grace = 200 * time.Millisecond
	h := newHarness(t, harnessOptions{
		graceDelay: grace,
		replies:    []types.Reply{{Text: "We are out of time.", IsEnd: true}},
	})
	_ = h.session.Start(context.Background())

	if err := h.session.Submit(context.Background(), "One last thing."); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for !h.session.grace.Active() {
		if time.Now().After(deadline) {
			t.Fatal("grace delay never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.session.End(context.Background()); err != nil {
		t.Fatalf("End error: %v", err)
	}
	h.waitNavigated(t, time.Second)

	time.Sleep(2 * grace)
	reviews, summaries, persists := h.end.counts()
	if reviews != 1 || summaries != 1 || persists != 1 {
		t.Fatalf("calls=(%d,%d,%d), want (1,1,1)", reviews, summaries, persists)
	}
	select {
	case id := <-h.navigated:
		t.Fatalf("navigated twice (%s)", id)
	default:
	}
}

func TestSession_SpeaksEachInterviewerTurnOnce(t *testing.T) {
	t.Parallel()

	engine := &recordingEngine{entered: make(chan string, 16)}
	h := newHarness(t, harnessOptions{
		engine: engine,
		initial: []types.ChatTurn{
			{SessionID: "s1", Text: "Welcome. Tell me about yourself.", Role: types.RoleInterviewer},
		},
	})
	_ = h.session.Start(context.Background())
	<-engine.entered
	<-engine.entered

	if err := h.session.Submit(context.Background(), "I build distributed systems."); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got := <-engine.entered; got != "Question 1?" {
		t.Fatalf("spoken=%q, want Question 1?", got)
	}

	time.Sleep(20 * time.Millisecond)
	want := []string{"Welcome.", "Tell me about yourself.", "Question 1?"}
	if got := engine.texts(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("spoken=%q, want %q", got, want)
	}
	if got := h.turns.participants; len(got) != 1 || got[0] != "p1" {
		t.Fatalf("participants=%v, want [p1]", got)
	}
}

func TestSession_CameraFailureDegrades(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{startCamera: true, cameraErr: errors.New("NotAllowedError")})
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if h.session.State() != StateActive {
		t.Fatalf("State()=%v, want ACTIVE", h.session.State())
	}

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-h.session.Events():
			if v, ok := ev.(*VideoChangedEvent); ok {
				if !v.HasPermissionError || v.IsRecordingVideo {
					t.Fatalf("video event=%+v", v)
				}
				return
			}
		case <-deadline:
			t.Fatal("no video event")
		}
	}
}

func TestSession_CloseReleasesDevicesWithoutEndCalls(t *testing.T) {
	t.Parallel()

	rec := &stubRecognizer{}
	h := newHarness(t, harnessOptions{startCamera: true, recognizer: rec})
	_ = h.session.Start(context.Background())
	for !h.session.deps.Video.IsRecording() {
		time.Sleep(time.Millisecond)
	}
	if err := h.session.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening error: %v", err)
	}

	if err := h.session.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if !h.track.isStopped() {
		t.Fatal("camera track still live after Close")
	}
	if h.session.deps.Capture.State().IsRecordingAudio || !rec.stopped() {
		t.Fatal("recognition still running after Close")
	}
	if reviews, summaries, persists := h.end.counts(); reviews+summaries+persists != 0 {
		t.Fatal("Close ran end-of-session calls")
	}
	if err := h.session.End(context.Background()); err != nil {
		t.Fatalf("End after Close error: %v", err)
	}
	if reviews, _, _ := h.end.counts(); reviews != 0 {
		t.Fatal("End after Close ran the end sequence")
	}
	select {
	case <-h.session.Done():
	default:
		t.Fatal("Done() not closed")
	}
}

func TestSession_UnsupportedRecognitionReportedOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{})
	_ = h.session.Start(context.Background())

	for i := 0; i < 3; i++ {
		if err := h.session.StartListening(context.Background()); !errors.Is(err, capture.ErrRecognitionUnsupported) {
			t.Fatalf("StartListening error=%v", err)
		}
	}
	if msgs := h.notes.all(); len(msgs) != 1 || msgs[0] != unsupportedMessage {
		t.Fatalf("notifications=%q, want one unsupported message", msgs)
	}
	if err := h.session.Submit(context.Background(), "typing still works"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
}

func TestSession_VoiceAnswerMirrorsTranscript(t *testing.T) {
	t.Parallel()

	rec := &stubRecognizer{}
	h := newHarness(t, harnessOptions{recognizer: rec})
	_ = h.session.Start(context.Background())
	_ = h.session.StartListening(context.Background())

	rec.emit("I led the migration.", true)
	if got := h.session.Answer(); got != "I led the migration." {
		t.Fatalf("Answer()=%q", got)
	}
	if err := h.session.SubmitAnswer(context.Background()); err != nil {
		t.Fatalf("SubmitAnswer error: %v", err)
	}
	if h.session.Answer() != "" || h.session.deps.Capture.State().IsRecordingAudio {
		t.Fatal("submit should clear the answer and stop listening")
	}
	if h.turns.submits != 1 {
		t.Fatalf("submits=%d, want 1", h.turns.submits)
	}
}

func TestSession_BlankSubmitAndInactive(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{})
	if err := h.session.Submit(context.Background(), "early"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Submit before Start error=%v, want ErrNotActive", err)
	}
	_ = h.session.Start(context.Background())
	if err := h.session.Submit(context.Background(), "  \n"); err != nil {
		t.Fatalf("blank Submit error: %v", err)
	}
	if h.turns.submits != 0 {
		t.Fatalf("submits=%d, want 0", h.turns.submits)
	}
	if !h.session.CanSubmit() {
		t.Fatal("CanSubmit() should be true when idle")
	}
}

type stubRecognition struct {
	mu      sync.Mutex
	stopped bool
}

func (r *stubRecognition) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

type stubRecognizer struct {
	mu       sync.Mutex
	onResult func(string, bool)
	current  *stubRecognition
}

func (r *stubRecognizer) Start(_ context.Context, onResult func(string, bool)) (capture.Recognition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResult = onResult
	r.current = &stubRecognition{}
	return r.current, nil
}

func (r *stubRecognizer) emit(text string, final bool) {
	r.mu.Lock()
	fn := r.onResult
	r.mu.Unlock()
	fn(text, final)
}

func (r *stubRecognizer) stopped() bool {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()
	if cur == nil {
		return false
	}
	cur.mu.Lock()
	defer cur.mu.Unlock()
	return cur.stopped
}
