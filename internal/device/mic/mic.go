// Package mic captures 16-bit PCM from the default input device.
package mic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/voice/capture"
)

const (
	windowMs  = 200
	backlogMs = 2000
	periodMs  = 20
)

// Microphone opens capture devices. It satisfies capture.Microphone through
// Open, and its OpenStream has the shape of stt.AudioOpener.
type Microphone struct {
	format capture.Format
	logger *slog.Logger
}

var _ capture.Microphone = (*Microphone)(nil)

// New creates a microphone for format. A zero format means capture.DefaultFormat.
func New(format capture.Format, logger *slog.Logger) *Microphone {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		format = capture.DefaultFormat()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Microphone{format: format, logger: logger}
}

// Format returns the capture format.
func (m *Microphone) Format() capture.Format {
	return m.format
}

// Open starts a device for amplitude sampling.
func (m *Microphone) Open(ctx context.Context) (capture.AudioSource, error) {
	return m.open(ctx)
}

// OpenStream starts a device whose PCM is consumed with Read.
func (m *Microphone) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	return m.open(ctx)
}

func (m *Microphone) open(ctx context.Context) (*Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	d := &Device{
		mctx:   mctx,
		stream: newStream(m.format, windowMs, backlogMs),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(m.format.Channels)
	cfg.SampleRate = uint32(m.format.SampleRate)
	cfg.PeriodSizeInMilliseconds = periodMs

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			d.stream.write(input)
		},
	})
	if err != nil {
		d.uninitContext()
		return nil, core.NewDeviceError("microphone", err)
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		d.uninitContext()
		return nil, core.NewDeviceError("microphone", err)
	}
	m.logger.Debug("microphone started", "sample_rate", m.format.SampleRate, "channels", m.format.Channels)

	d.mu.Lock()
	d.stop = context.AfterFunc(ctx, func() { _ = d.Close() })
	d.mu.Unlock()
	return d, nil
}

// Device is one running capture device.
type Device struct {
	mctx   *malgo.AllocatedContext
	device *malgo.Device
	stream *stream
	once   sync.Once

	mu   sync.Mutex
	stop func() bool
}

// TimeDomain implements capture.AudioSource.
func (d *Device) TimeDomain(dst []byte) int {
	return d.stream.TimeDomain(dst)
}

// Read blocks until PCM is available. It returns io.EOF after Close.
func (d *Device) Read(p []byte) (int, error) {
	return d.stream.Read(p)
}

// Close stops the device and releases the audio context. Safe to call repeatedly.
func (d *Device) Close() error {
	d.once.Do(func() {
		d.mu.Lock()
		stop := d.stop
		d.mu.Unlock()
		if stop != nil {
			stop()
		}
		d.stream.close()
		if d.device != nil {
			_ = d.device.Stop()
			d.device.Uninit()
		}
		d.uninitContext()
	})
	return nil
}

func (d *Device) uninitContext() {
	if d.mctx == nil {
		return
	}
	_ = d.mctx.Uninit()
	d.mctx.Free()
}
