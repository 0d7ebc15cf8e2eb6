package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

var ErrNotConfigured = errors.New("elevenlabs api key not configured")

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	chunkBytes     = 4096
)

type Config struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	Timeout    time.Duration
	Stability  float64
	Similarity float64
	BaseURL    string
}

// ElevenLabs streams mp3 audio from the ElevenLabs streaming endpoint.
type ElevenLabs struct {
	cfg    Config
	client *http.Client
}

func NewElevenLabs(cfg Config) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_monolingual_v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ElevenLabs{cfg: cfg, client: &http.Client{}}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize posts text and hands the response body to yield in fixed-size
// chunks as it arrives. A yield returning false stops the stream.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, yield func(chunk []byte) bool) error {
	if e.cfg.APIKey == "" {
		ttsSynthesisTotal.WithLabelValues("not_configured").Inc()
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(synthRequest{
		Text:    text,
		ModelID: e.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.Similarity,
		},
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", e.cfg.BaseURL, e.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("accept", "audio/mpeg")
	req.Header.Set("content-type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		ttsSynthesisTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()
	ttsElevenLabsLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		ttsSynthesisTotal.WithLabelValues("http_error").Inc()
		return fmt.Errorf("elevenlabs status=%d body=%s", resp.StatusCode, string(b))
	}

	buf := make([]byte, chunkBytes)
	first := true
	for {
		n, rerr := io.ReadFull(resp.Body, buf)
		if n > 0 {
			if first {
				first = false
				ttsFirstFrameMS.Observe(float64(time.Since(start).Milliseconds()))
			}
			chunk := append([]byte(nil), buf[:n]...)
			if !yield(chunk) {
				ttsSynthesisTotal.WithLabelValues("cancelled").Inc()
				return nil
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				ttsSynthesisTotal.WithLabelValues("cancelled").Inc()
				return ctx.Err()
			}
			ttsSynthesisTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("elevenlabs read: %w", rerr)
		}
	}
	ttsSynthesisTotal.WithLabelValues("ok").Inc()
	ttsTotalDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	log.Printf("[tts] synthesized chars=%d in %dms", len(text), time.Since(start).Milliseconds())
	return nil
}
