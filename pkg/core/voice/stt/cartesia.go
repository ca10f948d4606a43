package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	cartesiaWebSocketURL = "wss://api.cartesia.ai/stt/websocket"
	cartesiaVersion      = "2025-04-16"
)

// ErrStreamClosed is returned when writing to a closed Stream.
var ErrStreamClosed = errors.New("stt: stream closed")

// CartesiaOption configures a Cartesia client.
type CartesiaOption func(*Cartesia)

// WithWebSocketURL overrides the streaming endpoint.
func WithWebSocketURL(u string) CartesiaOption {
	return func(c *Cartesia) {
		if u != "" {
			c.wsURL = u
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CartesiaOption {
	return func(c *Cartesia) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cartesia opens streaming transcription sessions over WebSocket.
type Cartesia struct {
	apiKey string
	wsURL  string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewCartesia creates a Cartesia STT client.
func NewCartesia(apiKey string, opts ...CartesiaOption) *Cartesia {
	c := &Cartesia{
		apiKey: apiKey,
		wsURL:  cartesiaWebSocketURL,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider identifier.
func (c *Cartesia) Name() string {
	return "cartesia"
}

// NewStream dials a streaming session. Audio is sent with SendAudio and
// transcripts are received from Transcripts.
func (c *Cartesia) NewStream(ctx context.Context, opts Options) (*Stream, error) {
	opts = opts.withDefaults()

	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("model", opts.Model)
	q.Set("language", opts.Language)
	q.Set("encoding", opts.Encoding)
	q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	q.Set("min_volume", strconv.FormatFloat(opts.MinVolume, 'f', -1, 64))
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("X-API-Key", c.apiKey)
	headers.Set("Cartesia-Version", cartesiaVersion)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if len(body) > 0 {
				return nil, fmt.Errorf("websocket connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("websocket connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	s := &Stream{
		conn:        conn,
		logger:      c.logger,
		transcripts: make(chan TranscriptDelta, 100),
		done:        make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Stream is one real-time transcription session.
type Stream struct {
	conn        *websocket.Conn
	logger      *slog.Logger
	transcripts chan TranscriptDelta
	done        chan struct{}
	closed      atomic.Bool
	writeMu     sync.Mutex

	errMu sync.Mutex
	err   error
}

type cartesiaMessage struct {
	Type      string  `json:"type"`
	Text      string  `json:"text"`
	IsFinal   bool    `json:"is_final"`
	Duration  float64 `json:"duration"`
	RequestID string  `json:"request_id"`
	Error     string  `json:"error"`
}

func (s *Stream) readLoop() {
	defer func() {
		close(s.transcripts)
		close(s.done)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(fmt.Errorf("read transcript: %w", err))
			}
			return
		}

		var msg cartesiaMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("stt: skipping undecodable message", "error", err)
			continue
		}

		switch msg.Type {
		case "transcript":
			s.transcripts <- TranscriptDelta{Text: msg.Text, IsFinal: msg.IsFinal, Duration: msg.Duration}
		case "flush_done":
			continue
		case "done":
			return
		case "error":
			s.setErr(fmt.Errorf("cartesia stt error: %s", msg.Error))
			return
		}
	}
}

// SendAudio sends raw PCM in the encoding chosen at NewStream.
func (s *Stream) SendAudio(data []byte) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Finalize flushes buffered audio so pending segments become final.
func (s *Stream) Finalize() error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte("finalize"))
}

// Transcripts returns the channel of transcript deltas. It is closed when
// the session ends.
func (s *Stream) Transcripts() <-chan TranscriptDelta {
	return s.transcripts
}

// Done is closed when the read loop exits.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the session, if any.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Close ends the session. Safe to call more than once.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte("done"))
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	return s.conn.Close()
}
