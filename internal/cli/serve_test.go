package cli

import (
	"reflect"
	"testing"
	"time"

	"signconnect/tutor/internal/config"
	"signconnect/tutor/internal/store"
)

func TestOriginHosts(t *testing.T) {
	got := originHosts([]string{"http://localhost:5173", "https://tutor.example.com", "*"})
	want := []string{"localhost:5173", "tutor.example.com", "*"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("originHosts = %v, want %v", got, want)
	}
}

func TestSessionOptionsFromConfig(t *testing.T) {
	var cfg config.Config
	cfg.Session.SilenceBuffer = 900 * time.Millisecond
	cfg.Quiz.Length = 5
	cfg.Quiz.MaxAttempts = 2
	cfg.Gemini.Timeout = 8 * time.Second

	o := sessionOptions(cfg)
	if o.SilenceBuffer != 900*time.Millisecond || o.QuizLength != 5 || o.QuizAttempts != 2 {
		t.Fatalf("unexpected options %+v", o)
	}
	if o.GenerateTimeout <= cfg.Gemini.Timeout {
		t.Fatalf("session generate timeout %v should exceed the provider timeout", o.GenerateTimeout)
	}
}

func TestCollaboratorsDegradeWithoutKeys(t *testing.T) {
	deps := collaborators(config.Config{}, store.New())("s1")
	if deps.Generator != nil || deps.Synthesizer != nil {
		t.Fatalf("expected no generator or synthesizer without keys: %+v", deps)
	}
	if deps.Recognizer == nil || deps.Recorder == nil {
		t.Fatalf("recognizer and recorder should always be wired: %+v", deps)
	}
}
