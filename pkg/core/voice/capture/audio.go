package capture

import (
	"math"
	"sync"
)

// DefaultActivityThreshold is the fraction of full scale a sample must exceed
// to count as speech. It matches a deviation of 10 on an 8-bit waveform
// centred at 128.
const DefaultActivityThreshold = 10.0 / 128.0

// Format describes 16-bit signed little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is the microphone format the recognizer expects.
func DefaultFormat() Format {
	return Format{SampleRate: 16000, Channels: 1}
}

// BytesForDurationMs returns the PCM byte count covering durationMs.
func (f Format) BytesForDurationMs(durationMs int) int {
	channels := f.Channels
	if channels <= 0 {
		channels = 1
	}
	return f.SampleRate * channels * 2 * durationMs / 1000
}

// CalculatePeakAmplitude returns the maximum absolute amplitude in the PCM data.
// Returns a value between 0.0 and 1.0.
func CalculatePeakAmplitude(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}

	var maxAbs float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		// float64 so that -32768 does not overflow
		abs := math.Abs(float64(sample))
		if abs > maxAbs {
			maxAbs = abs
		}
	}

	return maxAbs / 32768.0
}

// IsActive reports whether any sample deviates from silence by more than threshold.
func IsActive(pcm []byte, threshold float64) bool {
	return CalculatePeakAmplitude(pcm) > threshold
}

// RingBuffer is a fixed-size circular buffer holding the most recent PCM window.
type RingBuffer struct {
	mu       sync.Mutex
	data     []byte
	size     int
	writePos int
	filled   int
}

// NewRingBuffer creates a ring buffer that holds exactly durationMs of audio.
func NewRingBuffer(format Format, durationMs int) *RingBuffer {
	size := format.BytesForDurationMs(durationMs)
	if size < 2 {
		size = 2
	}
	return &RingBuffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write adds data, overwriting the oldest bytes when full.
func (r *RingBuffer) Write(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(data) >= r.size {
		copy(r.data, data[len(data)-r.size:])
		r.writePos = 0
		r.filled = r.size
		return
	}
	for _, b := range data {
		r.data[r.writePos] = b
		r.writePos = (r.writePos + 1) % r.size
		if r.filled < r.size {
			r.filled++
		}
	}
}

// CopyLatest copies the buffered window into dst in chronological order and
// returns the number of bytes written. When dst is shorter than the window the
// most recent bytes win.
func (r *RingBuffer) CopyLatest(dst []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.filled
	if n > len(dst) {
		n = len(dst)
	}
	start := (r.writePos - n + r.size) % r.size
	if r.filled < r.size {
		start = r.filled - n
	}
	for i := 0; i < n; i++ {
		dst[i] = r.data[(start+i)%r.size]
	}
	return n
}

// Clear resets the ring buffer.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writePos = 0
	r.filled = 0
}

// Filled returns how many bytes are buffered.
func (r *RingBuffer) Filled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filled
}
