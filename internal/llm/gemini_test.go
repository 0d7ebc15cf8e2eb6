package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), Config{}); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGenerateReturnsText(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test:generateContent") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  Try curling your thumb.  "}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), Config{APIKey: "k", Model: "gemini-test", BaseURL: srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := g.Generate(context.Background(), "User said: how do I do A")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "Try curling your thumb." {
		t.Fatalf("unexpected reply %q", got)
	}
	if body["systemInstruction"] == nil {
		t.Fatalf("system instruction not sent: %v", body)
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`))
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), Config{APIKey: "k", BaseURL: srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got, err := g.Generate(context.Background(), "hi"); err == nil || got != "" {
		t.Fatalf("expected error, got %q %v", got, err)
	}
}
