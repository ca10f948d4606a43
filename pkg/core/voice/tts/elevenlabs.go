package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-interview/pkg/core/voice/synth"
)

const (
	elevenLabsDefaultWSBase  = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	elevenLabsDefaultAPIBase = "https://api.elevenlabs.io"
	elevenLabsDefaultModel   = "eleven_flash_v2_5"
	elevenLabsDefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// ElevenLabs synthesizes speech over the stream-input WebSocket.
type ElevenLabs struct {
	apiKey     string
	apiBaseURL string
	wsBaseURL  string
	httpClient *http.Client
	dialer     *websocket.Dialer
	opts       Options
}

var (
	_ synth.Synthesizer  = (*ElevenLabs)(nil)
	_ synth.VoiceCatalog = (*ElevenLabs)(nil)
)

// ElevenLabsOption configures an ElevenLabs provider.
type ElevenLabsOption func(*ElevenLabs)

// WithElevenLabsWSBaseURL overrides the stream-input URL template.
// "{voice_id}" is replaced with the escaped voice id.
func WithElevenLabsWSBaseURL(base string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if base = strings.TrimSpace(base); base != "" {
			e.wsBaseURL = base
		}
	}
}

// WithElevenLabsAPIBaseURL overrides the REST base URL.
func WithElevenLabsAPIBaseURL(base string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if base = strings.TrimSpace(base); base != "" {
			e.apiBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithElevenLabsHTTPClient sets the HTTP client used for the voice catalog.
func WithElevenLabsHTTPClient(client *http.Client) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithElevenLabsOptions sets the synthesis options.
func WithElevenLabsOptions(opts Options) ElevenLabsOption {
	return func(e *ElevenLabs) {
		e.opts = opts
	}
}

// NewElevenLabs creates an ElevenLabs TTS provider.
func NewElevenLabs(apiKey string, opts ...ElevenLabsOption) *ElevenLabs {
	e := &ElevenLabs{
		apiKey:     strings.TrimSpace(apiKey),
		apiBaseURL: elevenLabsDefaultAPIBase,
		wsBaseURL:  elevenLabsDefaultWSBase,
		httpClient: newDefaultHTTPClient(),
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the provider identifier.
func (e *ElevenLabs) Name() string {
	return "elevenlabs"
}

// Synthesize implements synth.Synthesizer. It sends the whole text, flushes,
// and collects audio until the final message.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if e.apiKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		voiceID = elevenLabsDefaultVoiceID
	}
	wsURL, err := e.streamURL(voiceID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, resp, err := e.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, providerError("elevenlabs", resp)
		}
		return nil, fmt.Errorf("elevenlabs connect: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	text = strings.TrimSpace(text)
	if !strings.HasSuffix(text, " ") {
		text += " "
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	for _, msg := range []map[string]any{
		{"text": " ", "voice_id": voiceID},
		{"text": text, "flush": true},
		{"text": ""},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			return nil, fmt.Errorf("elevenlabs send: %w", err)
		}
	}

	var out []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return out, nil
			}
			return nil, fmt.Errorf("elevenlabs read: %w", err)
		}

		var msg map[string]json.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if audioB64 := decodeStringRaw(msg["audio"]); audioB64 != "" {
			audio, err := base64.StdEncoding.DecodeString(audioB64)
			if err == nil {
				out = append(out, audio...)
			}
		}
		if errMsg := decodeStringRaw(msg["error"]); errMsg != "" {
			return nil, fmt.Errorf("elevenlabs error: %s", errMsg)
		}
		if decodeBoolRaw(msg["isFinal"]) || decodeBoolRaw(msg["is_final"]) {
			return out, nil
		}
	}
}

func (e *ElevenLabs) streamURL(voiceID string) (string, error) {
	base := strings.ReplaceAll(e.wsBaseURL, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input"
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		model := e.opts.Model
		if model == "" {
			model = elevenLabsDefaultModel
		}
		q.Set("model_id", model)
	}
	if q.Get("output_format") == "" {
		q.Set("output_format", "pcm_"+strconv.Itoa(e.opts.sampleRate()))
	}
	if e.opts.Language != "" && q.Get("language_code") == "" {
		q.Set("language_code", e.opts.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type elevenLabsVoice struct {
	VoiceID string            `json:"voice_id"`
	Name    string            `json:"name"`
	Labels  map[string]string `json:"labels"`
}

// Voices implements synth.VoiceCatalog.
func (e *ElevenLabs) Voices(ctx context.Context) ([]synth.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiBaseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, providerError("elevenlabs", resp)
	}

	var body struct {
		Voices []elevenLabsVoice `json:"voices"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse voices: %w", err)
	}

	voices := make([]synth.Voice, 0, len(body.Voices))
	for _, v := range body.Voices {
		voices = append(voices, synth.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Language: v.Labels["language"],
			Gender:   parseGender(v.Labels["gender"]),
		})
	}
	return voices, nil
}

func decodeStringRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func decodeBoolRaw(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var out bool
	if err := json.Unmarshal(raw, &out); err != nil {
		return false
	}
	return out
}
