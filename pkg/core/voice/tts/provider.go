// Package tts renders interviewer turns to raw PCM and lists provider voices.
//
// Every provider here returns 16-bit little-endian mono PCM at the configured
// sample rate so the output can go straight to a speaker device.
package tts

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSampleRate is the PCM rate requested from providers.
const DefaultSampleRate = 24000

// Options configures synthesis.
type Options struct {
	Model      string  // Provider-specific model
	Language   string  // Language code
	SampleRate int     // Output sample rate (default DefaultSampleRate)
	Speed      float64 // Speed multiplier (0 leaves the provider default)
}

func (o Options) sampleRate() int {
	if o.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return o.SampleRate
}

func newDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

// providerError reads at most 4KiB of a failed response into an error.
func providerError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%s error %d: %s", provider, resp.StatusCode, msg)
}
