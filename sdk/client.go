// Package interview is the Go client for the mock-interview backend.
//
// The Client implements the transcript turn exchange (fetch and submit) and
// the end-of-session calls (review, summary, elapsed time). Every call is a
// JSON request/response; failures are *core.Error for API errors and
// *TransportError for network failures.
package interview

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
	tracerName     = "github.com/vango-go/vai-interview/sdk"
)

// Client talks to the interview backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
	requestID  func() string
}

// NewClient creates a client. Without options it targets a local backend.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: newDefaultHTTPClient(),
		timeout:    defaultTimeout,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
		requestID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}
