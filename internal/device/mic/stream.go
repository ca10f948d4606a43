package mic

import (
	"io"
	"sync"

	"github.com/vango-go/vai-interview/pkg/core/voice/capture"
)

// stream fans captured PCM out to a time-domain window and a blocking reader.
type stream struct {
	window *capture.RingBuffer

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	limit  int
	closed bool
}

func newStream(format capture.Format, windowMs, backlogMs int) *stream {
	s := &stream{
		window: capture.NewRingBuffer(format, windowMs),
		limit:  format.BytesForDurationMs(backlogMs),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// write is called from the device callback and never blocks on readers.
// When nobody reads, the oldest backlog is dropped.
func (s *stream) write(pcm []byte) {
	s.window.Write(pcm)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.buf = append(s.buf, pcm...)
	if over := len(s.buf) - s.limit; s.limit > 0 && over > 0 {
		s.buf = append(s.buf[:0], s.buf[over:]...)
	}
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *stream) TimeDomain(dst []byte) int {
	return s.window.CopyLatest(dst)
}

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *stream) close() {
	s.mu.Lock()
	s.closed = true
	s.buf = nil
	s.mu.Unlock()
	s.cond.Broadcast()
}
