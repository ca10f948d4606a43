// Package speaker plays 16-bit PCM through the default output device.
package speaker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const pollInterval = 10 * time.Millisecond

// player is the subset of *oto.Player used for one playback.
type player interface {
	Play()
	IsPlaying() bool
	Pause()
	Close() error
}

// Speaker lazily opens the process-wide output context on first Play.
type Speaker struct {
	sampleRate int
	channels   int
	bufferSize time.Duration
	logger     *slog.Logger

	once    sync.Once
	ctx     *oto.Context
	initErr error

	newPlayer func(pcm []byte) player
}

// New creates a speaker for PCM at sampleRate with the given channel count.
func New(sampleRate, channels int, logger *slog.Logger) *Speaker {
	if channels <= 0 {
		channels = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Speaker{
		sampleRate: sampleRate,
		channels:   channels,
		bufferSize: 100 * time.Millisecond,
		logger:     logger,
	}
	s.newPlayer = s.otoPlayer
	return s
}

func (s *Speaker) init() error {
	s.once.Do(func() {
		otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   s.sampleRate,
			ChannelCount: s.channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   s.bufferSize,
		})
		if err != nil {
			s.initErr = fmt.Errorf("init speaker: %w", err)
			return
		}
		<-ready
		s.ctx = otoCtx
		s.logger.Debug("speaker ready", "sample_rate", s.sampleRate, "channels", s.channels)
	})
	return s.initErr
}

func (s *Speaker) otoPlayer(pcm []byte) player {
	return s.ctx.NewPlayer(bytes.NewReader(pcm))
}

// Play blocks until pcm finished playing or ctx is done. Cancelling ctx
// stops the sound immediately and returns ctx.Err().
func (s *Speaker) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := s.init(); err != nil {
		return err
	}
	return play(ctx, s.newPlayer(pcm))
}

func play(ctx context.Context, p player) error {
	defer p.Close()

	p.Play()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			p.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
