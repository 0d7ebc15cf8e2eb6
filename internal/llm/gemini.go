package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"
)

var ErrNotConfigured = errors.New("gemini api key not configured")

const systemPrompt = `You are a friendly, patient American Sign Language tutor talking to a learner through a webcam and microphone.
Reply in one or two short spoken sentences. Never use markdown, lists or emoji.
Stay on the topic of fingerspelling and the lesson; gently steer other topics back to practice.
You can suggest: "teach me" plus a letter, "next", "check", "quiz me", or "stop".`

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	BaseURL string
}

// Gemini generates short conversational replies.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Gemini{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Generate returns the model's reply to prompt, bounded by the configured timeout.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		MaxOutputTokens:   120,
	})
	metricLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		status := "error"
		if ctx.Err() != nil {
			status = "timeout"
		}
		metricRequests.WithLabelValues(status).Inc()
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		metricRequests.WithLabelValues("empty").Inc()
		log.Printf("[llm] empty reply model=%s", g.model)
		return "", nil
	}
	metricRequests.WithLabelValues("ok").Inc()
	return text, nil
}
