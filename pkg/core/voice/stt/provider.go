// Package stt provides streaming speech-to-text for live interview answers.
package stt

import (
	"context"
	"io"
)

// Options configures a streaming transcription.
type Options struct {
	Model      string  // Provider-specific model (default: "ink-whisper")
	Language   string  // ISO language code (default: "en")
	Encoding   string  // Raw PCM encoding (default: "pcm_s16le")
	SampleRate int     // Audio sample rate in Hz (default: 16000)
	MinVolume  float64 // Provider-side noise gate (default: 0.01)
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = "ink-whisper"
	}
	if o.Language == "" {
		o.Language = "en"
	}
	if o.Encoding == "" {
		o.Encoding = "pcm_s16le"
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.MinVolume <= 0 {
		o.MinVolume = 0.01
	}
	return o
}

// TranscriptDelta is a streaming transcript update.
type TranscriptDelta struct {
	Text     string  // Segment text
	IsFinal  bool    // True once the segment will not change
	Duration float64 // Audio seconds covered so far
}

// AudioOpener opens a raw PCM stream matching the configured Options.
type AudioOpener func(ctx context.Context) (io.ReadCloser, error)
