// Package config loads interview client settings from defaults, an optional
// YAML (or JSON) file, and MOCKVIEW_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	yaml "go.yaml.in/yaml/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MOCKVIEW_"

// Speech providers.
const (
	ProviderNone       = "none"
	ProviderCartesia   = "cartesia"
	ProviderElevenLabs = "elevenlabs"
)

// Config is the full client configuration.
type Config struct {
	BaseURL       string        `yaml:"base_url" env:"BASE_URL"`
	APIKey        string        `yaml:"api_key" env:"API_KEY"`
	SessionID     string        `yaml:"session_id" env:"SESSION_ID"`
	ParticipantID string        `yaml:"participant_id" env:"PARTICIPANT_ID"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
	GraceDelay    time.Duration `yaml:"grace_delay" env:"GRACE_DELAY"`
	LogLevel      string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat     string        `yaml:"log_format" env:"LOG_FORMAT"`
	MetricsAddr   string        `yaml:"metrics_addr" env:"METRICS_ADDR"`

	Speech      SpeechConfig      `yaml:"speech" envPrefix:"SPEECH_"`
	Recognition RecognitionConfig `yaml:"recognition" envPrefix:"RECOGNITION_"`
	Camera      CameraConfig      `yaml:"camera" envPrefix:"CAMERA_"`
	OTel        OTelConfig        `yaml:"otel" envPrefix:"OTEL_"`
}

// SpeechConfig selects the synthesis provider.
type SpeechConfig struct {
	Enabled          bool   `yaml:"enabled" env:"ENABLED"`
	Provider         string `yaml:"provider" env:"PROVIDER"`
	Locale           string `yaml:"locale" env:"LOCALE"`
	SampleRate       int    `yaml:"sample_rate" env:"SAMPLE_RATE"`
	CartesiaAPIKey   string `yaml:"cartesia_api_key" env:"CARTESIA_API_KEY"`
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key" env:"ELEVENLABS_API_KEY"`
}

// RecognitionConfig configures speech-to-text.
type RecognitionConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Model    string `yaml:"model" env:"MODEL"`
	Language string `yaml:"language" env:"LANGUAGE"`
}

// CameraConfig configures the ffmpeg camera.
type CameraConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	FFmpegPath  string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`
	Device      string `yaml:"device" env:"DEVICE"`
	InputFormat string `yaml:"input_format" env:"INPUT_FORMAT"`
	PreviewPath string `yaml:"preview_path" env:"PREVIEW_PATH"`
}

// OTelConfig configures opt-in tracing.
type OTelConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:    "http://127.0.0.1:8080",
		Timeout:    30 * time.Second,
		GraceDelay: 1500 * time.Millisecond,
		LogLevel:   "info",
		LogFormat:  "text",
		Speech: SpeechConfig{
			Enabled:    true,
			Provider:   ProviderCartesia,
			Locale:     "en-US",
			SampleRate: 24000,
		},
		Recognition: RecognitionConfig{
			Enabled:  true,
			Model:    "ink-whisper",
			Language: "en",
		},
		Camera: CameraConfig{
			Enabled:     true,
			FFmpegPath:  "ffmpeg",
			PreviewPath: filepath.Join(os.TempDir(), "mockview", "camera.jpg"),
		},
		OTel: OTelConfig{Enabled: true},
	}
}

// Load layers path (when non-empty) and the environment over Default.
// environ replaces the process environment when non-nil.
func Load(path string, environ map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Provider keys are commonly exported without the prefix.
	lookup := os.Getenv
	if environ != nil {
		lookup = func(k string) string { return environ[k] }
	}
	if cfg.Speech.CartesiaAPIKey == "" {
		cfg.Speech.CartesiaAPIKey = strings.TrimSpace(lookup("CARTESIA_API_KEY"))
	}
	if cfg.Speech.ElevenLabsAPIKey == "" {
		cfg.Speech.ElevenLabsAPIKey = strings.TrimSpace(lookup("ELEVENLABS_API_KEY"))
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// JSON documents are valid YAML, so one decoder covers both formats.
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return errors.New("session-id must not be empty")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base-url must not be empty")
	}
	baseURL, err := url.Parse(c.BaseURL)
	if err != nil || strings.TrimSpace(baseURL.Scheme) == "" || strings.TrimSpace(baseURL.Host) == "" {
		return errors.New("base-url must be a valid absolute URL")
	}
	if baseURL.User != nil {
		return errors.New("base-url must not include credentials")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	if c.GraceDelay < 0 {
		return errors.New("grace-delay must be >= 0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log-level %q must be one of debug, info, warn, error", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log-format %q must be text or json", c.LogFormat)
	}

	if c.Speech.Enabled {
		switch c.Speech.Provider {
		case ProviderNone:
		case ProviderCartesia:
			if c.Speech.CartesiaAPIKey == "" {
				return errors.New("speech provider cartesia requires CARTESIA_API_KEY")
			}
		case ProviderElevenLabs:
			if c.Speech.ElevenLabsAPIKey == "" {
				return errors.New("speech provider elevenlabs requires ELEVENLABS_API_KEY")
			}
		default:
			return fmt.Errorf("unknown speech provider %q", c.Speech.Provider)
		}
		if c.Speech.SampleRate <= 0 {
			return errors.New("speech sample-rate must be > 0")
		}
	}
	if c.Recognition.Enabled && c.Speech.CartesiaAPIKey == "" {
		return errors.New("speech recognition requires CARTESIA_API_KEY")
	}
	if c.Camera.Enabled && c.Camera.PreviewPath == "" {
		return errors.New("camera preview-path must not be empty")
	}
	return nil
}
