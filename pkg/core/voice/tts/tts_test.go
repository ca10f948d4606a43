package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-interview/pkg/core/voice/synth"
)

func TestCartesiaSynthesize_RequestsRawPCM(t *testing.T) {
	t.Parallel()

	var got cartesiaTTSRequest
	var gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts/bytes" {
			t.Errorf("path = %q, want /tts/bytes", r.URL.Path)
		}
		gotVersion = r.Header.Get("Cartesia-Version")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte{1, 2, 3, 4})
	}))
	defer server.Close()

	c := NewCartesia("k", WithCartesiaBaseURL(server.URL), WithCartesiaOptions(Options{SampleRate: 16000, Language: "en"}))
	pcm, err := c.Synthesize(context.Background(), "Hello there.", "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(pcm) != 4 {
		t.Fatalf("len(pcm) = %d, want 4", len(pcm))
	}
	if got.Voice.ID != defaultCartesiaVoiceID || got.Transcript != "Hello there." {
		t.Fatalf("request = %+v", got)
	}
	if got.OutputFormat.Container != "raw" || got.OutputFormat.Encoding != "pcm_s16le" || got.OutputFormat.SampleRate != 16000 {
		t.Fatalf("output format = %+v", got.OutputFormat)
	}
	if gotVersion != cartesiaVersion {
		t.Fatalf("version = %q", gotVersion)
	}
}

func TestCartesiaSynthesize_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewCartesia("k", WithCartesiaBaseURL(server.URL)).Synthesize(context.Background(), "hi", "v1")
	if err == nil || !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "bad voice") {
		t.Fatalf("err = %v, want status and body", err)
	}
}

func TestCartesiaVoices_ArrayAndPaged(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`[{"id":"v1","name":"British Lady","language":"en"},{"id":"v2","name":"Narrator","language":"en","gender":"masculine"}]`,
		`{"data":[{"id":"v1","name":"British Lady","language":"en"},{"id":"v2","name":"Narrator","language":"en","gender":"masculine"}],"has_more":false}`,
	}
	for _, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		voices, err := NewCartesia("k", WithCartesiaBaseURL(server.URL)).Voices(context.Background())
		server.Close()
		if err != nil {
			t.Fatalf("Voices() error = %v", err)
		}
		if len(voices) != 2 || voices[0].ID != "v1" || voices[1].Gender != synth.GenderMale {
			t.Fatalf("voices = %+v", voices)
		}
	}
}

func TestElevenLabsVoices_MapsLabels(t *testing.T) {
	t.Parallel()

	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("xi-api-key")
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"abc","name":"Rachel","labels":{"gender":"female","language":"en"}}]}`))
	}))
	defer server.Close()

	voices, err := NewElevenLabs("xi_key", WithElevenLabsAPIBaseURL(server.URL)).Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices() error = %v", err)
	}
	if gotKey != "xi_key" {
		t.Fatalf("api key = %q", gotKey)
	}
	want := synth.Voice{ID: "abc", Name: "Rachel", Language: "en", Gender: synth.GenderFemale}
	if len(voices) != 1 || voices[0] != want {
		t.Fatalf("voices = %+v, want [%+v]", voices, want)
	}
}

func TestElevenLabsSynthesize_CollectsAudioUntilFinal(t *testing.T) {
	t.Parallel()

	var gotPath, gotFormat string
	var texts []string
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for i := 0; i < 3; i++ {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			text, _ := msg["text"].(string)
			texts = append(texts, text)
		}
		chunk := base64.StdEncoding.EncodeToString([]byte{9, 9})
		_ = conn.WriteJSON(map[string]any{"audio": chunk})
		_ = conn.WriteJSON(map[string]any{"audio": chunk})
		_ = conn.WriteJSON(map[string]any{"isFinal": true})
	}))
	defer server.Close()

	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/text-to-speech/{voice_id}/stream-input"
	e := NewElevenLabs("k", WithElevenLabsWSBaseURL(base))
	pcm, err := e.Synthesize(context.Background(), "How are you?", "voice 1")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(pcm) != 4 {
		t.Fatalf("len(pcm) = %d, want 4", len(pcm))
	}
	if gotPath != "/v1/text-to-speech/voice 1/stream-input" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotFormat != "pcm_24000" {
		t.Fatalf("output_format = %q, want pcm_24000", gotFormat)
	}
	if len(texts) != 3 || texts[1] != "How are you? " || texts[2] != "" {
		t.Fatalf("texts = %q", texts)
	}
}

func TestElevenLabsSynthesize_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewElevenLabs(" ").Synthesize(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected missing key error")
	}
}
