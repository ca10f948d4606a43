package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/vango-go/vai-interview/pkg/core/voice/capture"
)

// Streamer opens streaming transcription sessions.
type Streamer interface {
	NewStream(ctx context.Context, opts Options) (*Stream, error)
}

// Recognizer adapts a Streamer and a raw audio source into continuous
// recognition for the capture controller.
type Recognizer struct {
	streamer  Streamer
	open      AudioOpener
	opts      Options
	chunkSize int
	logger    *slog.Logger
}

var _ capture.Recognizer = (*Recognizer)(nil)

// RecognizerOption configures a Recognizer.
type RecognizerOption func(*Recognizer)

// WithOptions sets the transcription options.
func WithOptions(opts Options) RecognizerOption {
	return func(r *Recognizer) {
		r.opts = opts
	}
}

// WithChunkSize sets the number of PCM bytes sent per frame.
func WithChunkSize(n int) RecognizerOption {
	return func(r *Recognizer) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithRecognizerLogger sets the logger.
func WithRecognizerLogger(l *slog.Logger) RecognizerOption {
	return func(r *Recognizer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecognizer creates a recognizer that streams audio from open into streamer.
func NewRecognizer(streamer Streamer, open AudioOpener, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		streamer:  streamer,
		open:      open,
		chunkSize: 3200, // 100ms of 16kHz s16le mono
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start implements capture.Recognizer.
func (r *Recognizer) Start(ctx context.Context, onResult func(text string, final bool)) (capture.Recognition, error) {
	if r.streamer == nil || r.open == nil {
		return nil, capture.ErrRecognitionUnsupported
	}

	ctx, cancel := context.WithCancel(ctx)
	audio, err := r.open(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open audio: %w", err)
	}

	stream, err := r.streamer.NewStream(ctx, r.opts)
	if err != nil {
		cancel()
		_ = audio.Close()
		return nil, fmt.Errorf("open transcription stream: %w", err)
	}

	rec := &recognition{
		cancel: cancel,
		audio:  audio,
		stream: stream,
		logger: r.logger,
	}
	rec.wg.Add(2)
	go rec.pump(ctx, r.chunkSize)
	go rec.forward(onResult)
	return rec, nil
}

type recognition struct {
	cancel context.CancelFunc
	audio  io.ReadCloser
	stream *Stream
	logger *slog.Logger
	wg     sync.WaitGroup
	once   sync.Once
}

func (r *recognition) pump(ctx context.Context, chunkSize int) {
	defer r.wg.Done()

	buf := make([]byte, chunkSize)
	for {
		n, err := r.audio.Read(buf)
		if n > 0 {
			if sendErr := r.stream.SendAudio(buf[:n]); sendErr != nil {
				if !errors.Is(sendErr, ErrStreamClosed) {
					r.logger.Warn("stt: send audio failed", "error", sendErr)
				}
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				r.logger.Warn("stt: audio read failed", "error", err)
			}
			_ = r.stream.Finalize()
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (r *recognition) forward(onResult func(text string, final bool)) {
	defer r.wg.Done()

	for delta := range r.stream.Transcripts() {
		text := strings.TrimSpace(delta.Text)
		if text == "" || onResult == nil {
			continue
		}
		onResult(text, delta.IsFinal)
	}
	if err := r.stream.Err(); err != nil {
		r.logger.Warn("stt: transcription ended", "error", err)
	}
}

// Stop ends audio capture and the transcription session and waits for both
// goroutines to exit.
func (r *recognition) Stop() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		audioErr := r.audio.Close()
		streamErr := r.stream.Close()
		r.wg.Wait()
		err = errors.Join(audioErr, streamErr)
	})
	return err
}
