package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("SILENCE_BUFFER_MS")
	os.Unsetenv("QUIZ_LENGTH")
	os.Unsetenv("ALLOWED_ORIGINS")

	c := Load()

	if c.Server.Port != "8000" {
		t.Fatalf("expected default port 8000, got %q", c.Server.Port)
	}
	if c.Server.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if c.Session.SilenceBuffer != time.Second {
		t.Fatalf("expected 1s silence buffer, got %v", c.Session.SilenceBuffer)
	}
	if c.Session.SuccessCooldown != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s cooldown, got %v", c.Session.SuccessCooldown)
	}
	if c.Session.AutoFeedback != 4*time.Second {
		t.Fatalf("expected 4s auto feedback, got %v", c.Session.AutoFeedback)
	}
	if c.Quiz.Length != 8 || c.Quiz.MaxAttempts != 3 {
		t.Fatalf("unexpected quiz defaults: %+v", c.Quiz)
	}
	if len(c.Server.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 default origins, got %v", c.Server.AllowedOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SILENCE_BUFFER_MS", "250")
	t.Setenv("QUIZ_LENGTH", "4")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	c := Load()

	if c.Server.Port != "9999" {
		t.Fatalf("expected port 9999, got %q", c.Server.Port)
	}
	if c.Session.SilenceBuffer != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", c.Session.SilenceBuffer)
	}
	if c.Quiz.Length != 4 {
		t.Fatalf("expected quiz length 4, got %d", c.Quiz.Length)
	}
	if len(c.Server.AllowedOrigins) != 2 || c.Server.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", c.Server.AllowedOrigins)
	}
}
