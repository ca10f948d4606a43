package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/vango-go/vai-interview/pkg/core/video"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

const maxFrameBytes = 4 << 20

// PreviewSurface writes the most recent JPEG frame of the attached stream
// to a file, replacing it atomically on every frame.
type PreviewSurface struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	stream video.Stream
	cancel context.CancelFunc
	done   chan struct{}
	frames int
}

var _ video.Surface = (*PreviewSurface)(nil)

// NewPreviewSurface creates a surface that writes frames to path.
func NewPreviewSurface(path string, logger *slog.Logger) *PreviewSurface {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewSurface{path: path, logger: logger}
}

// Attach sets the stream rendered by the next Play.
func (p *PreviewSurface) Attach(s video.Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stream = s
}

// Play starts rendering in the background and returns immediately.
func (p *PreviewSurface) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return errors.New("preview: no stream attached")
	}
	frames := p.stream.Frames()
	if frames == nil {
		return errors.New("preview: stream has no frames")
	}
	if p.cancel != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("preview: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.render(ctx, frames, p.done)
	return nil
}

// Detach stops rendering. The reader unblocks once the stream's tracks stop.
func (p *PreviewSurface) Detach() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done, p.stream = nil, nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Frames returns how many frames were written.
func (p *PreviewSurface) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

func (p *PreviewSurface) render(ctx context.Context, r io.Reader, done chan struct{}) {
	defer close(done)

	err := splitJPEG(r, func(frame []byte) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.writeFrame(frame); err != nil {
			return err
		}
		p.mu.Lock()
		p.frames++
		p.mu.Unlock()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Debug("preview stopped", "error", err)
	}
}

func (p *PreviewSurface) writeFrame(frame []byte) error {
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, frame, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

// splitJPEG calls fn for every complete JPEG image in an MJPEG byte stream.
// It returns nil at EOF.
func splitJPEG(r io.Reader, fn func(frame []byte) error) error {
	br := bufio.NewReaderSize(r, 64<<10)
	var frame bytes.Buffer
	inFrame := false
	var prev byte

	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if !inFrame {
			if prev == jpegSOI[0] && b == jpegSOI[1] {
				inFrame = true
				frame.Reset()
				frame.Write(jpegSOI)
			}
			prev = b
			continue
		}

		frame.WriteByte(b)
		if prev == jpegEOI[0] && b == jpegEOI[1] {
			if err := fn(append([]byte(nil), frame.Bytes()...)); err != nil {
				return err
			}
			inFrame = false
			b = 0
		} else if frame.Len() > maxFrameBytes {
			inFrame = false
			b = 0
		}
		prev = b
	}
}
