// Package video owns the camera stream of an interview session.
package video

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Track is one live capture track.
type Track interface {
	Kind() string
	Stop() error
}

// Stream is an acquired capture stream.
type Stream interface {
	Tracks() []Track
	// Frames yields encoded frames for display. May return nil.
	Frames() io.Reader
}

// Camera acquires video-only streams.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// CameraFunc adapts a function to Camera.
type CameraFunc func(ctx context.Context) (Stream, error)

// Open implements Camera.
func (f CameraFunc) Open(ctx context.Context) (Stream, error) {
	return f(ctx)
}

// Surface displays a stream.
type Surface interface {
	Attach(s Stream)
	Play(ctx context.Context) error
	Detach()
}

// State is the camera state other components render from.
type State struct {
	IsRecordingVideo   bool
	HasPermissionError bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSurface sets the display surface.
func WithSurface(s Surface) Option {
	return func(c *Controller) {
		c.surface = s
	}
}

// Controller owns at most one camera stream.
type Controller struct {
	camera  Camera
	surface Surface
	logger  *slog.Logger

	mu       sync.Mutex
	gen      uint64
	stream   Stream
	state    State
	onChange func(State)
}

// NewController creates a controller for camera.
func NewController(camera Camera, opts ...Option) *Controller {
	c := &Controller{
		camera: camera,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers the observer invoked after every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// StartCamera replaces any current stream with a fresh one. Acquisition
// failure sets HasPermissionError; it is never returned to the caller.
func (c *Controller) StartCamera(ctx context.Context) {
	c.StopCamera()

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	if c.camera == nil {
		c.setState(State{HasPermissionError: true})
		return
	}
	stream, err := c.camera.Open(ctx)
	if err != nil {
		c.logger.Warn("camera unavailable", "error", err)
		c.setState(State{HasPermissionError: true})
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		// StopCamera ran while the stream was being acquired.
		c.mu.Unlock()
		stopTracks(stream, c.logger)
		return
	}
	c.stream = stream
	c.mu.Unlock()

	if c.surface != nil {
		c.surface.Attach(stream)
		if err := c.surface.Play(ctx); err != nil {
			c.logger.Debug("camera preview playback failed", "error", err)
		}
	}

	c.mu.Lock()
	if c.gen != gen {
		// StopCamera released the stream while the surface was starting.
		detach := c.surface != nil && c.stream == nil
		c.mu.Unlock()
		if detach {
			c.surface.Detach()
		}
		return
	}
	st := State{IsRecordingVideo: true}
	changed := c.state != st
	c.state = st
	fn := c.onChange
	c.mu.Unlock()
	if changed && fn != nil {
		fn(st)
	}
}

// StopCamera stops every track and resets the surface. Safe to call repeatedly.
func (c *Controller) StopCamera() {
	c.mu.Lock()
	c.gen++
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream != nil {
		stopTracks(stream, c.logger)
		if c.surface != nil {
			c.surface.Detach()
		}
	}

	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st.IsRecordingVideo {
		st.IsRecordingVideo = false
		c.setState(st)
	}
}

// IsRecording reports whether a live stream is attached.
func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsRecordingVideo
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(st State) {
	c.mu.Lock()
	if c.state == st {
		c.mu.Unlock()
		return
	}
	c.state = st
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func stopTracks(stream Stream, logger *slog.Logger) {
	for _, track := range stream.Tracks() {
		if err := track.Stop(); err != nil {
			logger.Debug("stop track", "kind", track.Kind(), "error", err)
		}
	}
}
