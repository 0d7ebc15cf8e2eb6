package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSynthesizeStreamsChunks(t *testing.T) {
	audio := bytes.Repeat([]byte{0xAB}, chunkBytes*2+10)
	var got synthRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/v1/text-to-speech/voice-1/stream") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("content-type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	e := NewElevenLabs(Config{APIKey: "key", VoiceID: "voice-1", BaseURL: srv.URL, Stability: 0.5, Similarity: 0.75})
	var chunks [][]byte
	err := e.Synthesize(context.Background(), "Let's learn B.", func(c []byte) bool {
		chunks = append(chunks, c)
		return true
	})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(chunks) != 3 || len(chunks[2]) != 10 {
		t.Fatalf("expected 3 chunks with a 10 byte tail, got %d", len(chunks))
	}
	if !bytes.Equal(bytes.Join(chunks, nil), audio) {
		t.Fatalf("audio mismatch")
	}
	if got.Text != "Let's learn B." || got.ModelID != "eleven_monolingual_v1" || got.VoiceSettings.SimilarityBoost != 0.75 {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestSynthesizeStopsWhenYieldRefuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{1}, chunkBytes*4))
	}))
	defer srv.Close()

	e := NewElevenLabs(Config{APIKey: "key", BaseURL: srv.URL})
	calls := 0
	err := e.Synthesize(context.Background(), "hi", func([]byte) bool {
		calls++
		return false
	})
	if err != nil || calls != 1 {
		t.Fatalf("expected one chunk then stop, calls=%d err=%v", calls, err)
	}
}

func TestSynthesizeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewElevenLabs(Config{APIKey: "key", BaseURL: srv.URL})
	err := e.Synthesize(context.Background(), "hi", func([]byte) bool { return true })
	if err == nil || !strings.Contains(err.Error(), "status=429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSynthesizeNotConfigured(t *testing.T) {
	e := NewElevenLabs(Config{})
	if err := e.Synthesize(context.Background(), "hi", nil); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
