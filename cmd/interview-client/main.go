package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/vango-go/vai-interview/internal/config"
)

type cliConfig struct {
	*config.Config
	Interactive bool
}

func parseConfig(args []string, environ map[string]string) (cliConfig, error) {
	flags := flag.NewFlagSet("interview-client", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		configPath     string
		baseURL        string
		apiKey         string
		sessionID      string
		participantID  string
		timeout        time.Duration
		graceDelay     time.Duration
		logLevel       string
		logFormat      string
		metricsAddr    string
		speechProvider string
		locale         string
		previewPath    string
		mute           bool
		noVoice        bool
		noCamera       bool
	)
	flags.StringVar(&configPath, "config", "", "YAML or JSON config file (or MOCKVIEW_CONFIG)")
	flags.StringVar(&baseURL, "base-url", "", "interview backend base URL")
	flags.StringVar(&apiKey, "api-key", "", "backend bearer token")
	flags.StringVar(&sessionID, "session", "", "interview session id")
	flags.StringVar(&participantID, "participant", "", "participant id attached to answers")
	flags.DurationVar(&timeout, "timeout", 0, "per-request timeout (e.g. 30s)")
	flags.DurationVar(&graceDelay, "grace-delay", 0, "wait after the interviewer's last words before ending")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&logFormat, "log-format", "", "text or json")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&speechProvider, "speech-provider", "", "cartesia, elevenlabs or none")
	flags.StringVar(&locale, "locale", "", "preferred interviewer voice locale")
	flags.StringVar(&previewPath, "preview", "", "file receiving the latest camera frame")
	flags.BoolVar(&mute, "mute", false, "start with the interviewer voice muted")
	flags.BoolVar(&noVoice, "no-voice", false, "disable voice answers")
	flags.BoolVar(&noCamera, "no-camera", false, "disable the camera")

	if err := flags.Parse(args); err != nil {
		return cliConfig{}, err
	}

	if configPath == "" {
		configPath = lookupEnv(environ, "MOCKVIEW_CONFIG")
	}
	cfg, err := config.Load(configPath, environ)
	if err != nil {
		return cliConfig{}, err
	}

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.BaseURL = strings.TrimSpace(baseURL)
		case "api-key":
			cfg.APIKey = strings.TrimSpace(apiKey)
		case "session":
			cfg.SessionID = strings.TrimSpace(sessionID)
		case "participant":
			cfg.ParticipantID = strings.TrimSpace(participantID)
		case "timeout":
			cfg.Timeout = timeout
		case "grace-delay":
			cfg.GraceDelay = graceDelay
		case "log-level":
			cfg.LogLevel = logLevel
		case "log-format":
			cfg.LogFormat = logFormat
		case "metrics-addr":
			cfg.MetricsAddr = metricsAddr
		case "speech-provider":
			cfg.Speech.Provider = speechProvider
		case "locale":
			cfg.Speech.Locale = locale
		case "preview":
			cfg.Camera.PreviewPath = previewPath
		case "mute":
			cfg.Speech.Enabled = !mute
		case "no-voice":
			cfg.Recognition.Enabled = !noVoice
		case "no-camera":
			cfg.Camera.Enabled = !noCamera
		}
	})
	if cfg.Speech.Provider == config.ProviderNone {
		cfg.Speech.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return cliConfig{}, err
	}
	return cliConfig{Config: cfg}, nil
}

func lookupEnv(environ map[string]string, key string) string {
	if environ != nil {
		return strings.TrimSpace(environ[key])
	}
	return strings.TrimSpace(os.Getenv(key))
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "interview-client: load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := parseConfig(os.Args[1:], nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "interview-client: %v\n", err)
		os.Exit(2)
	}
	cfg.Interactive = term.IsTerminal(int(os.Stdin.Fd()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "interview-client: %v\n", err)
		os.Exit(1)
	}
}
