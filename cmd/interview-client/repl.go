package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vango-go/vai-interview/internal/otel"
	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/live"
	"github.com/vango-go/vai-interview/pkg/core/transcript"
	"github.com/vango-go/vai-interview/pkg/core/types"
	"github.com/vango-go/vai-interview/pkg/core/voice/capture"
)

const helpText = `Type an answer and press enter to send it.
  /voice    start or stop answering by voice
  /send     send the voice answer
  /mute     silence the interviewer
  /unmute   let the interviewer speak
  /status   show session status
  /end      end the interview
  /quit     leave without ending the interview`

// syncWriter serializes writes from the REPL and the event printer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func run(ctx context.Context, cfg cliConfig, in io.Reader, out io.Writer, errOut io.Writer) error {
	if cfg.Config == nil {
		return errors.New("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	out = &syncWriter{w: out}
	errOut = &syncWriter{w: errOut}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errOut)

	shutdownTracing, err := otel.Setup(ctx, "interview-client", cfg.OTel.Endpoint, cfg.OTel.Enabled)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	metrics := live.NewMetrics(metricsNamespace)
	if cfg.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(cfg.MetricsAddr, metrics)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	ended := make(chan string, 1)
	session, err := buildSession(cfg.Config, sessionWiring{
		Notifier: core.NotifierFunc(func(message string) {
			fmt.Fprintf(errOut, "! %s\n", message)
		}),
		Navigator: navigatorFunc(func(sessionID string) {
			select {
			case ended <- sessionID:
			default:
			}
		}),
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Fprintf(out, "Interview %s connected to %s\n", cfg.SessionID, cfg.BaseURL)
	fmt.Fprintln(out, "Type /help for commands.")

	printer := newEventPrinter(session, out)
	printerDone := make(chan struct{})
	printerStop := make(chan struct{})
	go func() {
		defer close(printerDone)
		printer.run(printerStop)
	}()
	defer func() {
		close(printerStop)
		<-printerDone
	}()

	if err := session.Start(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-session.Done():
				return
			}
		}
	}()

	r := &repl{session: session, lines: lines, ended: ended, out: out, errOut: errOut, interactive: cfg.Interactive}
	return r.loop(ctx)
}

type repl struct {
	session     *live.Session
	lines       <-chan string
	ended       <-chan string
	out         io.Writer
	errOut      io.Writer
	interactive bool
}

func (r *repl) prompt() {
	if r.interactive {
		fmt.Fprint(r.out, "> ")
	}
}

func (r *repl) loop(ctx context.Context) error {
	for {
		r.prompt()
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case id := <-r.ended:
			r.printEnded(id)
			return nil
		case line, ok := <-r.lines:
			if !ok {
				if r.interactive {
					fmt.Fprintln(r.out)
				}
				return nil
			}
			done, err := r.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// handle processes one input line and reports whether the REPL should exit.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	switch line {
	case "":
		return false, nil
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/quit", "/exit":
		fmt.Fprintln(r.out, "bye")
		return true, nil
	case "/voice":
		r.toggleVoice(ctx)
	case "/send":
		r.submit(ctx, r.session.Answer())
	case "/mute":
		r.session.SetSpeechEnabled(false)
		fmt.Fprintln(r.out, "interviewer muted")
	case "/unmute":
		r.session.SetSpeechEnabled(true)
		fmt.Fprintln(r.out, "interviewer unmuted")
	case "/status":
		r.printStatus()
	case "/end":
		return r.confirmEnd(ctx)
	default:
		if strings.HasPrefix(line, "/") {
			fmt.Fprintf(r.errOut, "unknown command %s (try /help)\n", line)
			return false, nil
		}
		r.submit(ctx, line)
	}
	return false, nil
}

func (r *repl) submit(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(r.errOut, "nothing to send")
		return
	}
	err := r.session.Submit(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, live.ErrNotActive):
		fmt.Fprintln(r.errOut, "the interview is not active")
	case errors.Is(err, transcript.ErrSubmitInFlight):
		fmt.Fprintln(r.errOut, "waiting for the interviewer")
	}
	// Other failures were already shown through the notifier.
}

func (r *repl) toggleVoice(ctx context.Context) {
	if r.session.CaptureState().IsRecordingAudio {
		r.session.StopListening()
		fmt.Fprintf(r.out, "voice input stopped; /send to submit: %s\n", r.session.Answer())
		return
	}
	err := r.session.StartListening(ctx)
	switch {
	case err == nil:
		fmt.Fprintln(r.out, "listening... type /voice to stop")
	case errors.Is(err, capture.ErrRecognitionUnsupported):
	case errors.Is(err, live.ErrNotActive):
		fmt.Fprintln(r.errOut, "the interview is not active")
	}
}

func (r *repl) confirmEnd(ctx context.Context) (bool, error) {
	fmt.Fprint(r.out, "End the interview now? [y/N] ")
	var answer string
	select {
	case <-ctx.Done():
		return true, nil
	case id := <-r.ended:
		r.printEnded(id)
		return true, nil
	case line, ok := <-r.lines:
		if !ok {
			return true, nil
		}
		answer = strings.ToLower(strings.TrimSpace(line))
	}
	if answer != "y" && answer != "yes" {
		fmt.Fprintln(r.out, "continuing")
		return false, nil
	}

	fmt.Fprintln(r.out, "ending interview...")
	if err := r.session.End(ctx); err != nil {
		// The notifier already told the user; the session is active again.
		return false, nil
	}
	select {
	case id := <-r.ended:
		r.printEnded(id)
		return true, nil
	default:
		return false, nil
	}
}

func (r *repl) printStatus() {
	st := r.session.CaptureState()
	speech := "off"
	if r.session.SpeechEnabled() {
		speech = "on"
	}
	fmt.Fprintf(r.out, "state=%s elapsed=%s speech=%s listening=%t speaking=%t camera=%s\n",
		r.session.State(),
		formatElapsed(r.session.Elapsed()),
		speech,
		st.IsRecordingAudio,
		st.IsUserSpeaking,
		cameraStatus(r.session.VideoState().IsRecordingVideo, r.session.VideoState().HasPermissionError),
	)
	if answer := r.session.Answer(); answer != "" {
		fmt.Fprintf(r.out, "answer: %s\n", answer)
	}
}

func (r *repl) printEnded(sessionID string) {
	fmt.Fprintf(r.out, "Interview %s ended after %s. Your review is being prepared.\n",
		sessionID, formatElapsed(r.session.Elapsed()))
}

func cameraStatus(recording, permissionError bool) string {
	switch {
	case recording:
		return "on"
	case permissionError:
		return "unavailable"
	default:
		return "off"
	}
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// eventPrinter writes new interviewer turns as they arrive.
type eventPrinter struct {
	session *live.Session
	out     io.Writer
	printed int
}

func newEventPrinter(session *live.Session, out io.Writer) *eventPrinter {
	return &eventPrinter{session: session, out: out}
}

func (p *eventPrinter) run(stop <-chan struct{}) {
	events := p.session.Events()
	for {
		select {
		case ev := <-events:
			p.handle(ev)
		case <-stop:
			// Drain what was emitted before the stop.
			for {
				select {
				case ev := <-events:
					p.handle(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *eventPrinter) handle(ev live.Event) {
	switch e := ev.(type) {
	case *live.TranscriptUpdatedEvent:
		p.printTurns(e.Turns)
	case *live.VideoChangedEvent:
		if e.HasPermissionError {
			fmt.Fprintln(p.out, "[camera unavailable]")
		}
	}
}

func (p *eventPrinter) printTurns(turns []types.ChatTurn) {
	if len(turns) < p.printed {
		p.printed = len(turns)
		return
	}
	for _, turn := range turns[p.printed:] {
		if turn.IsInterviewer() {
			fmt.Fprintf(p.out, "interviewer: %s\n", turn.Text)
		}
	}
	p.printed = len(turns)
}

func serveMetrics(addr string, metrics *live.Metrics) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
