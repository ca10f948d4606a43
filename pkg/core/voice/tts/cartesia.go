package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vango-go/vai-interview/pkg/core/voice/synth"
)

const (
	cartesiaBaseURL = "https://api.cartesia.ai"
	cartesiaVersion = "2025-04-16"
	cartesiaModel   = "sonic-3"
)

// Default voice ID used when no voice was selected.
const defaultCartesiaVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"

// Cartesia synthesizes speech with Cartesia's bytes endpoint.
type Cartesia struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	opts       Options
}

var (
	_ synth.Synthesizer  = (*Cartesia)(nil)
	_ synth.VoiceCatalog = (*Cartesia)(nil)
)

// CartesiaOption configures a Cartesia provider.
type CartesiaOption func(*Cartesia)

// WithCartesiaBaseURL overrides the API base URL.
func WithCartesiaBaseURL(u string) CartesiaOption {
	return func(c *Cartesia) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithCartesiaHTTPClient sets the HTTP client.
func WithCartesiaHTTPClient(client *http.Client) CartesiaOption {
	return func(c *Cartesia) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCartesiaOptions sets the synthesis options.
func WithCartesiaOptions(opts Options) CartesiaOption {
	return func(c *Cartesia) {
		c.opts = opts
	}
}

// NewCartesia creates a Cartesia TTS provider.
func NewCartesia(apiKey string, opts ...CartesiaOption) *Cartesia {
	c := &Cartesia{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    cartesiaBaseURL,
		httpClient: newDefaultHTTPClient(),
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

type cartesiaTTSRequest struct {
	ModelID          string                    `json:"model_id"`
	Transcript       string                    `json:"transcript"`
	Voice            cartesiaVoiceSpec         `json:"voice"`
	OutputFormat     cartesiaOutputFormat      `json:"output_format"`
	Language         string                    `json:"language,omitempty"`
	GenerationConfig *cartesiaGenerationConfig `json:"generation_config,omitempty"`
}

type cartesiaVoiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type cartesiaGenerationConfig struct {
	Speed float64 `json:"speed,omitempty"`
}

// Synthesize implements synth.Synthesizer.
func (c *Cartesia) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = defaultCartesiaVoiceID
	}
	model := c.opts.Model
	if model == "" {
		model = cartesiaModel
	}

	reqBody := cartesiaTTSRequest{
		ModelID:    model,
		Transcript: text,
		Voice:      cartesiaVoiceSpec{Mode: "id", ID: voiceID},
		OutputFormat: cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: c.opts.sampleRate(),
		},
		Language: c.opts.Language,
	}
	if c.opts.Speed != 0 {
		reqBody.GenerationConfig = &cartesiaGenerationConfig{Speed: c.opts.Speed}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return []byte{}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, providerError("cartesia", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

type cartesiaVoice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}

// Voices implements synth.VoiceCatalog.
func (c *Cartesia) Voices(ctx context.Context) ([]synth.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, providerError("cartesia", resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read voices: %w", err)
	}

	// Older API versions return a bare array; newer ones paginate under "data".
	var list []cartesiaVoice
	if err := json.Unmarshal(raw, &list); err != nil {
		var page struct {
			Data []cartesiaVoice `json:"data"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("parse voices: %w", err)
		}
		list = page.Data
	}

	voices := make([]synth.Voice, 0, len(list))
	for _, v := range list {
		voices = append(voices, synth.Voice{
			ID:       v.ID,
			Name:     v.Name,
			Language: v.Language,
			Gender:   parseGender(v.Gender),
		})
	}
	return voices, nil
}

func (c *Cartesia) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
}

func parseGender(raw string) synth.Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "female", "feminine", "woman":
		return synth.GenderFemale
	case "male", "masculine", "man":
		return synth.GenderMale
	default:
		return synth.GenderUnknown
	}
}
