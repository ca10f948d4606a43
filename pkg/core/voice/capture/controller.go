// Package capture turns a continuous speech recognizer and a raw microphone
// stream into a single listening controller with a per-frame voice-activity
// signal.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vango-go/vai-interview/pkg/core"
)

// ErrRecognitionUnsupported is returned by StartListening when no recognizer
// is configured.
var ErrRecognitionUnsupported = core.NewUnsupportedError("speech recognition is not supported")

// DefaultFrameInterval approximates one display frame.
const DefaultFrameInterval = 16 * time.Millisecond

// Recognizer performs continuous speech-to-text.
type Recognizer interface {
	// Start begins recognition. onResult receives interim (final=false) and
	// finalized (final=true) segments until the returned Recognition is stopped.
	Start(ctx context.Context, onResult func(text string, final bool)) (Recognition, error)
}

// Recognition is a running recognition.
type Recognition interface {
	Stop() error
}

// AudioSource exposes the most recent time-domain window of a live microphone.
type AudioSource interface {
	// TimeDomain copies the latest PCM s16le window into dst and returns the
	// byte count written.
	TimeDomain(dst []byte) int
	Close() error
}

// Microphone opens raw audio streams for amplitude sampling.
type Microphone interface {
	Open(ctx context.Context) (AudioSource, error)
}

// MicrophoneFunc adapts a function to Microphone.
type MicrophoneFunc func(ctx context.Context) (AudioSource, error)

// Open implements Microphone.
func (f MicrophoneFunc) Open(ctx context.Context) (AudioSource, error) {
	return f(ctx)
}

// State is the capture state other components render from.
type State struct {
	IsRecordingAudio bool
	IsUserSpeaking   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMicrophone sets the raw stream used for the voice-activity signal.
func WithMicrophone(m Microphone) Option {
	return func(c *Controller) {
		c.mic = m
	}
}

// WithThreshold overrides DefaultActivityThreshold.
func WithThreshold(threshold float64) Option {
	return func(c *Controller) {
		if threshold > 0 {
			c.threshold = threshold
		}
	}
}

// WithFrameTick drives the sampling loop from tick instead of a real ticker.
func WithFrameTick(tick <-chan time.Time) Option {
	return func(c *Controller) {
		c.frameTick = tick
	}
}

// WithWindowBytes sets the sampled window size.
func WithWindowBytes(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.windowBytes = n
		}
	}
}

// Controller owns one recognition and one microphone stream at a time.
type Controller struct {
	recognizer  Recognizer
	mic         Microphone
	logger      *slog.Logger
	threshold   float64
	frameTick   <-chan time.Time
	windowBytes int

	mu          sync.Mutex
	generation  uint64
	listening   bool
	speaking    bool
	recognition Recognition
	source      AudioSource
	stopLoop    context.CancelFunc
	loopDone    chan struct{}
	finals      []string
	interim     string
	onChange    func(State, string)
}

// NewController creates a controller. A nil recognizer yields an unsupported controller.
func NewController(recognizer Recognizer, opts ...Option) *Controller {
	c := &Controller{
		recognizer:  recognizer,
		logger:      slog.Default(),
		threshold:   DefaultActivityThreshold,
		windowBytes: DefaultFormat().BytesForDurationMs(32),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supported reports whether continuous recognition is available.
func (c *Controller) Supported() bool {
	return c.recognizer != nil
}

// OnChange registers the observer invoked when state or transcript change.
func (c *Controller) OnChange(fn func(State, string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// StartListening resets the transcript and begins recognition. The microphone
// stream is opened independently; its failure only disables the activity signal.
func (c *Controller) StartListening(ctx context.Context) error {
	if !c.Supported() {
		return ErrRecognitionUnsupported
	}
	c.StopListening()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.finals = nil
	c.interim = ""
	c.mu.Unlock()

	rec, err := c.recognizer.Start(ctx, func(text string, final bool) {
		c.handleResult(gen, text, final)
	})
	if err != nil {
		return fmt.Errorf("start recognition: %w", err)
	}

	var source AudioSource
	if c.mic != nil {
		source, err = c.mic.Open(ctx)
		if err != nil {
			c.logger.Warn("microphone unavailable, voice activity disabled", "error", err)
			source = nil
		}
	}

	c.mu.Lock()
	if c.generation != gen {
		// StopListening raced with startup.
		c.mu.Unlock()
		_ = rec.Stop()
		if source != nil {
			_ = source.Close()
		}
		return nil
	}
	c.listening = true
	c.recognition = rec
	if source != nil {
		loopCtx, cancel := context.WithCancel(context.Background())
		c.source = source
		c.stopLoop = cancel
		c.loopDone = make(chan struct{})
		go c.sample(loopCtx, gen, source, c.loopDone)
	}
	c.mu.Unlock()

	c.changed()
	return nil
}

// StopListening stops recognition, cancels sampling, and releases the
// microphone. Safe to call when never started.
func (c *Controller) StopListening() {
	c.mu.Lock()
	c.generation++
	rec, source := c.recognition, c.source
	stopLoop, loopDone := c.stopLoop, c.loopDone
	wasActive := c.listening || c.speaking
	c.listening = false
	c.speaking = false
	c.recognition = nil
	c.source = nil
	c.stopLoop = nil
	c.loopDone = nil
	c.mu.Unlock()

	if stopLoop != nil {
		stopLoop()
		<-loopDone
	}
	if rec != nil {
		if err := rec.Stop(); err != nil {
			c.logger.Debug("stop recognition", "error", err)
		}
	}
	if source != nil {
		if err := source.Close(); err != nil {
			c.logger.Debug("close microphone", "error", err)
		}
	}
	if wasActive {
		c.changed()
	}
}

// State returns the current capture state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Transcript returns the finalized segments followed by the current interim text.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcriptLocked()
}

func (c *Controller) handleResult(gen uint64, text string, final bool) {
	text = strings.TrimSpace(text)
	c.mu.Lock()
	if gen != c.generation || !c.listening {
		c.mu.Unlock()
		return
	}
	if final {
		if text != "" {
			c.finals = append(c.finals, text)
		}
		c.interim = ""
	} else {
		c.interim = text
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) sample(ctx context.Context, gen uint64, source AudioSource, done chan struct{}) {
	defer close(done)

	tick := c.frameTick
	if tick == nil {
		ticker := time.NewTicker(DefaultFrameInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	buf := make([]byte, c.windowBytes)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}

		n := source.TimeDomain(buf)
		active := IsActive(buf[:n], c.threshold)

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		changed := c.speaking != active
		c.speaking = active
		c.mu.Unlock()
		if changed {
			c.changed()
		}
	}
}

func (c *Controller) changed() {
	c.mu.Lock()
	state := c.stateLocked()
	transcript := c.transcriptLocked()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(state, transcript)
	}
}

func (c *Controller) stateLocked() State {
	return State{
		IsRecordingAudio: c.listening,
		IsUserSpeaking:   c.speaking,
	}
}

func (c *Controller) transcriptLocked() string {
	parts := append([]string(nil), c.finals...)
	if c.interim != "" {
		parts = append(parts, c.interim)
	}
	return strings.Join(parts, " ")
}
