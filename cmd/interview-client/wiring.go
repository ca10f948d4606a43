package main

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/vango-go/vai-interview/internal/config"
	"github.com/vango-go/vai-interview/internal/device/camera"
	"github.com/vango-go/vai-interview/internal/device/mic"
	"github.com/vango-go/vai-interview/internal/device/speaker"
	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/live"
	"github.com/vango-go/vai-interview/pkg/core/transcript"
	"github.com/vango-go/vai-interview/pkg/core/video"
	"github.com/vango-go/vai-interview/pkg/core/voice/capture"
	"github.com/vango-go/vai-interview/pkg/core/voice/stt"
	"github.com/vango-go/vai-interview/pkg/core/voice/synth"
	"github.com/vango-go/vai-interview/pkg/core/voice/tts"
	interview "github.com/vango-go/vai-interview/sdk"
)

const metricsNamespace = "mockview"

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// sessionWiring is everything run needs besides the session itself.
type sessionWiring struct {
	Notifier  core.Notifier
	Navigator live.Navigator
	Logger    *slog.Logger
	Metrics   *live.Metrics
}

func buildSession(cfg *config.Config, w sessionWiring) (*live.Session, error) {
	logger := w.Logger

	client := interview.NewClient(
		interview.WithBaseURL(cfg.BaseURL),
		interview.WithAPIKey(cfg.APIKey),
		interview.WithTimeout(cfg.Timeout),
		interview.WithLogger(logger),
	)

	store := transcript.NewStore(cfg.SessionID, client,
		transcript.WithLogger(logger),
		transcript.WithNotifier(w.Notifier),
	)

	liveCfg := live.DefaultConfig(cfg.SessionID)
	liveCfg.GraceDelay = cfg.GraceDelay
	liveCfg.StartCamera = cfg.Camera.Enabled

	return live.NewSession(liveCfg, live.Dependencies{
		Store:     store,
		Speech:    buildSpeech(cfg, logger),
		Capture:   buildCapture(cfg, logger),
		Video:     buildVideo(cfg, logger),
		Backend:   client,
		Navigator: w.Navigator,
		Identity:  live.StaticIdentity(cfg.ParticipantID),
		Notifier:  w.Notifier,
		Logger:    logger,
		Metrics:   w.Metrics,
	})
}

type speechProvider interface {
	synth.Synthesizer
	synth.VoiceCatalog
}

func buildSpeech(cfg *config.Config, logger *slog.Logger) *synth.Queue {
	opts := tts.Options{
		SampleRate: cfg.Speech.SampleRate,
		Language:   primaryLanguage(cfg.Speech.Locale),
	}

	var provider speechProvider
	switch cfg.Speech.Provider {
	case config.ProviderCartesia:
		if cfg.Speech.CartesiaAPIKey != "" {
			provider = tts.NewCartesia(cfg.Speech.CartesiaAPIKey, tts.WithCartesiaOptions(opts))
		}
	case config.ProviderElevenLabs:
		if cfg.Speech.ElevenLabsAPIKey != "" {
			provider = tts.NewElevenLabs(cfg.Speech.ElevenLabsAPIKey, tts.WithElevenLabsOptions(opts))
		}
	}
	if provider == nil {
		return synth.NewQueue(nil, synth.WithLogger(logger))
	}

	engine := synth.NewPlaybackEngine(provider, speaker.New(opts.SampleRate, 1, logger))
	queue := synth.NewQueue(engine,
		synth.WithLogger(logger),
		synth.WithCatalog(provider),
		synth.WithLocale(cfg.Speech.Locale),
	)
	queue.SetEnabled(cfg.Speech.Enabled)
	return queue
}

func buildCapture(cfg *config.Config, logger *slog.Logger) *capture.Controller {
	if !cfg.Recognition.Enabled {
		return capture.NewController(nil, capture.WithLogger(logger))
	}

	microphone := mic.New(capture.DefaultFormat(), logger)
	recognizer := stt.NewRecognizer(
		stt.NewCartesia(cfg.Speech.CartesiaAPIKey, stt.WithLogger(logger)),
		microphone.OpenStream,
		stt.WithOptions(stt.Options{
			Model:      cfg.Recognition.Model,
			Language:   cfg.Recognition.Language,
			SampleRate: microphone.Format().SampleRate,
		}),
		stt.WithRecognizerLogger(logger),
	)
	return capture.NewController(recognizer,
		capture.WithLogger(logger),
		capture.WithMicrophone(microphone),
	)
}

func buildVideo(cfg *config.Config, logger *slog.Logger) *video.Controller {
	if !cfg.Camera.Enabled {
		return video.NewController(nil, video.WithLogger(logger))
	}
	cam := camera.New(camera.Config{
		FFmpegPath: cfg.Camera.FFmpegPath,
		Device:     cfg.Camera.Device,
		InputFmt:   cfg.Camera.InputFormat,
	}, logger)
	return video.NewController(cam,
		video.WithLogger(logger),
		video.WithSurface(camera.NewPreviewSurface(cfg.Camera.PreviewPath, logger)),
	)
}

// primaryLanguage returns "en" for "en-US".
func primaryLanguage(locale string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}

// navigatorFunc adapts a plain callback for the end-of-session hand-off.
func navigatorFunc(fn func(sessionID string)) live.Navigator {
	return live.NavigatorFunc(func(_ context.Context, sessionID string) error {
		fn(sessionID)
		return nil
	})
}
