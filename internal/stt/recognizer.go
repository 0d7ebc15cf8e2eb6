package stt

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"signconnect/tutor/internal/types"
)

var ErrNotConfigured = errors.New("deepgram api key not configured")

// Recognizer adapts a DeepgramConn to the session's transcript stream. One
// Recognizer serves one session; Start after Stop dials a fresh connection.
type Recognizer struct {
	cfg    DGConfig
	apiKey string

	mu        sync.Mutex
	conn      *DeepgramConn
	firstSend time.Time
}

func NewRecognizer(cfg DGConfig, apiKey string) *Recognizer {
	return &Recognizer{cfg: cfg, apiKey: apiKey}
}

func (r *Recognizer) Start(ctx context.Context) (<-chan types.Transcript, error) {
	if r.apiKey == "" {
		return nil, ErrNotConfigured
	}
	r.mu.Lock()
	if r.conn != nil {
		r.conn.Close()
	}
	conn := NewDeepgramConn(ctx, r.cfg, r.apiKey)
	r.conn = conn
	r.firstSend = time.Time{}
	r.mu.Unlock()

	out := make(chan types.Transcript, 32)
	conn.Start()
	gaugeSessions.Inc()
	go r.forward(conn, out)
	return out, nil
}

func (r *Recognizer) forward(conn *DeepgramConn, out chan<- types.Transcript) {
	defer func() {
		gaugeSessions.Dec()
		close(out)
	}()
	seen := false
	for e := range conn.Events {
		switch e.Type {
		case "interim", "final":
			if !seen {
				seen = true
				r.mu.Lock()
				if !r.firstSend.IsZero() {
					metricTTFTMS.Observe(float64(time.Since(r.firstSend).Milliseconds()))
				}
				r.mu.Unlock()
			}
			t := types.Transcript{Text: e.Text, Final: e.Type == "final"}
			select {
			case out <- t:
			case <-conn.ctx.Done():
				return
			}
		case "error":
			log.Printf("[deepgram] provider error: %s", e.Text)
		}
	}
}

func (r *Recognizer) Send(audio []byte) bool {
	r.mu.Lock()
	conn := r.conn
	if conn != nil && r.firstSend.IsZero() {
		r.firstSend = time.Now()
	}
	r.mu.Unlock()
	if conn == nil {
		return false
	}
	return conn.Send(audio)
}

func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}
