package synth

import (
	"context"
	"fmt"
)

// Synthesizer renders text to PCM with the given voice (empty for the default).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Player plays PCM and returns when playback finished or ctx was cancelled.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

// PlaybackEngine is an Engine that synthesizes a unit fully before playing it.
type PlaybackEngine struct {
	synth  Synthesizer
	player Player
}

// NewPlaybackEngine pairs a synthesizer with a player.
func NewPlaybackEngine(s Synthesizer, p Player) *PlaybackEngine {
	return &PlaybackEngine{synth: s, player: p}
}

// Speak implements Engine.
func (e *PlaybackEngine) Speak(ctx context.Context, text string, voice *Voice) error {
	voiceID := ""
	if voice != nil {
		voiceID = voice.ID
	}
	pcm, err := e.synth.Synthesize(ctx, text, voiceID)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.player.Play(ctx, pcm); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}
