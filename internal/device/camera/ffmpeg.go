// Package camera captures video-only MJPEG streams with ffmpeg and renders
// the latest frame to a preview file.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/video"
)

// Config selects the capture device.
type Config struct {
	FFmpegPath string // default "ffmpeg"
	Device     string // default "/dev/video0" on linux, "0" on darwin
	InputFmt   string // default "v4l2" on linux, "avfoundation" on darwin
	Width      int
	Height     int
	FPS        int
}

func (c Config) withDefaults() Config {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.InputFmt == "" {
		if runtime.GOOS == "darwin" {
			c.InputFmt = "avfoundation"
		} else {
			c.InputFmt = "v4l2"
		}
	}
	if c.Device == "" {
		if c.InputFmt == "avfoundation" {
			c.Device = "0"
		} else {
			c.Device = "/dev/video0"
		}
	}
	if c.FPS <= 0 {
		c.FPS = 15
	}
	return c
}

// Args returns the ffmpeg arguments for cfg. Audio is never captured.
func (c Config) Args() []string {
	c = c.withDefaults()
	args := []string{"-hide_banner", "-loglevel", "error", "-f", c.InputFmt, "-framerate", strconv.Itoa(c.FPS)}
	if c.Width > 0 && c.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.Width, c.Height))
	}
	return append(args, "-i", c.Device, "-an", "-f", "mjpeg", "-q:v", "5", "pipe:1")
}

// FFmpeg is a video.Camera backed by an ffmpeg subprocess.
type FFmpeg struct {
	cfg    Config
	logger *slog.Logger
}

var _ video.Camera = (*FFmpeg)(nil)

// New creates an ffmpeg camera.
func New(cfg Config, logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{cfg: cfg.withDefaults(), logger: logger}
}

// Open starts ffmpeg. A missing binary surfaces as an error, which the video
// controller reports as a permission error. The process is killed when ctx ends.
func (f *FFmpeg) Open(ctx context.Context) (video.Stream, error) {
	if _, err := exec.LookPath(f.cfg.FFmpegPath); err != nil {
		return nil, core.NewDeviceError("camera", err)
	}

	cmd := exec.CommandContext(ctx, f.cfg.FFmpegPath, f.cfg.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("camera: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, core.NewDeviceError("camera", err)
	}
	f.logger.Debug("camera started", "device", f.cfg.Device, "input", f.cfg.InputFmt)

	track := &processTrack{cmd: cmd, logger: f.logger}
	return &stream{track: track, frames: stdout}, nil
}

type stream struct {
	track  *processTrack
	frames io.Reader
}

func (s *stream) Tracks() []video.Track { return []video.Track{s.track} }
func (s *stream) Frames() io.Reader     { return s.frames }

// processTrack stops the capture by killing ffmpeg.
type processTrack struct {
	cmd    *exec.Cmd
	logger *slog.Logger
	once   sync.Once
	err    error
}

func (t *processTrack) Kind() string { return "video" }

func (t *processTrack) Stop() error {
	t.once.Do(func() {
		if t.cmd.Process != nil {
			if err := t.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				t.logger.Debug("camera kill", "error", err)
			}
		}
		err := t.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			t.err = err
		}
	})
	return t.err
}
