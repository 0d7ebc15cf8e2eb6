package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signconnect/tutor/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
	// Optional providers degrade the session instead of failing readiness.
	Optional bool `json:"optional"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
			if c.Optional {
				mark = "~"
			}
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Endpoints are the provider base URLs probed by Check.
type Endpoints struct {
	Deepgram   string
	ElevenLabs string
	Gemini     string
}

var DefaultEndpoints = Endpoints{
	Deepgram:   "https://api.deepgram.com",
	ElevenLabs: "https://api.elevenlabs.io",
	Gemini:     "https://generativelanguage.googleapis.com",
}

// CheckAll probes every provider at its public endpoint.
func CheckAll(ctx context.Context, cfg config.Config) HealthStatus {
	return Check(ctx, cfg, DefaultEndpoints)
}

// Check probes each configured provider. An unconfigured provider is
// reported but only a configured provider that fails makes the status not OK:
// the tutor runs degraded without any of them.
func Check(ctx context.Context, cfg config.Config, ep Endpoints) HealthStatus {
	checks := []CheckResult{
		checkDeepgram(ctx, cfg, ep.Deepgram),
		checkElevenLabs(ctx, cfg, ep.ElevenLabs),
		checkGemini(ctx, cfg, ep.Gemini),
	}
	allOK := true
	for _, c := range checks {
		if !c.OK && !c.Optional {
			allOK = false
		}
	}
	return HealthStatus{OK: allOK, Checks: checks, CheckedAt: time.Now().UTC()}
}

func checkDeepgram(ctx context.Context, cfg config.Config, base string) CheckResult {
	result := CheckResult{Name: "deepgram"}
	if cfg.Deepgram.APIKey == "" {
		result.Error = "DEEPGRAM_API_KEY not set"
		result.Optional = true
		return result
	}
	return probe(ctx, result, http.MethodGet, base+"/v1/projects", nil, func(h http.Header) {
		h.Set("Authorization", "Token "+cfg.Deepgram.APIKey)
	})
}

func checkElevenLabs(ctx context.Context, cfg config.Config, base string) CheckResult {
	result := CheckResult{Name: "elevenlabs"}
	if cfg.Eleven.APIKey == "" {
		result.Error = "ELEVENLABS_API_KEY not set"
		result.Optional = true
		return result
	}
	if cfg.Eleven.VoiceID == "" {
		result.Error = "ELEVENLABS_VOICE_ID not set"
		return result
	}
	// A one character synthesis works with TTS-only keys that lack user_read.
	u := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", base, url.PathEscape(cfg.Eleven.VoiceID))
	res := probe(ctx, result, http.MethodPost, u, strings.NewReader(`{"text":"."}`), func(h http.Header) {
		h.Set("xi-api-key", cfg.Eleven.APIKey)
		h.Set("Content-Type", "application/json")
	})
	if strings.HasPrefix(res.Error, "status 404") {
		res.Error = fmt.Sprintf("voice ID %q not found", cfg.Eleven.VoiceID)
	}
	return res
}

func checkGemini(ctx context.Context, cfg config.Config, base string) CheckResult {
	result := CheckResult{Name: "gemini"}
	if cfg.Gemini.APIKey == "" {
		result.Error = "GEMINI_API_KEY not set"
		result.Optional = true
		return result
	}
	return probe(ctx, result, http.MethodGet, base+"/v1beta/models?pageSize=1", nil, func(h http.Header) {
		h.Set("x-goog-api-key", cfg.Gemini.APIKey)
	})
}

func probe(ctx context.Context, result CheckResult, method, u string, body io.Reader, setHeaders func(http.Header)) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		return result
	}
	setHeaders(req.Header)

	resp, err := http.DefaultClient.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("invalid API key (%d): %s", resp.StatusCode, string(b))
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("status %d: %s", resp.StatusCode, string(b))
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		result.OK = true
	}
	return result
}
