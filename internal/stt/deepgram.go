package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

// DeepgramConn maintains a single live websocket connection to Deepgram
// for a session, forwarding client audio and receiving transcript events.
type DeepgramConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiKey string
	url    string

	ws *websocket.Conn

	// Outbound audio queue; Send drops when full
	sendQ chan []byte
	// Events channel emits interim/final transcripts
	Events chan DGEvent

	// Backoff/circuit
	fails   []time.Time
	circuit time.Time
	maxAge  time.Duration

	// Audio frame taken from sendQ but not written before the socket closed.
	// Only the current connection's writer touches it.
	carry []byte

	// Interim text since the last final, for the UtteranceEnd fallback
	lastText     string
	finalEmitted bool
}

type DGEvent struct {
	Type string // "interim" | "final" | "error" | "meta"
	Text string
	Raw  map[string]any
}

type DGConfig struct {
	Model         string
	Language      string
	EndpointingMs int
	Interim       bool
	UtterEndMs    int
	VADEvents     bool
	BaseURL       string
	SocketMaxAgeS int
	// Encoding and SampleRate are only sent for raw audio. Leave Encoding
	// empty for containerized audio (webm/opus from MediaRecorder).
	Encoding   string
	SampleRate int
}

func NewDeepgramConn(parent context.Context, cfg DGConfig, apiKey string) *DeepgramConn {
	ctx, cancel := context.WithCancel(parent)
	return &DeepgramConn{
		ctx:    ctx,
		cancel: cancel,
		apiKey: apiKey,
		url:    cfg.listenURL(),
		sendQ:  make(chan []byte, 32),
		Events: make(chan DGEvent, 32),
		maxAge: time.Duration(nzd(cfg.SocketMaxAgeS, 900)) * time.Second,
	}
}

func (cfg DGConfig) listenURL() string {
	q := url.Values{}
	q.Set("model", orDefault(cfg.Model, "nova-2"))
	q.Set("language", orDefault(cfg.Language, "en-US"))
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	q.Set("endpointing", fmt.Sprintf("%d", nzd(cfg.EndpointingMs, 300)))
	q.Set("interim_results", fmt.Sprintf("%t", cfg.Interim))
	q.Set("utterance_end_ms", fmt.Sprintf("%d", nzd(cfg.UtterEndMs, 1500)))
	q.Set("vad_events", fmt.Sprintf("%t", cfg.VADEvents))
	if cfg.Encoding != "" {
		q.Set("encoding", cfg.Encoding)
		q.Set("sample_rate", fmt.Sprintf("%d", nzd(cfg.SampleRate, 16000)))
		q.Set("channels", "1")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "wss://api.deepgram.com/v1/listen"
	}
	return base + "?" + q.Encode()
}

func (d *DeepgramConn) Start() {
	go d.run()
}

func (d *DeepgramConn) Close() { d.cancel() }

func (d *DeepgramConn) Send(audio []byte) bool {
	select {
	case d.sendQ <- audio:
		metricAudioBytes.Add(float64(len(audio)))
		metricFrames.Inc()
		gaugeQueueDepth.Set(float64(len(d.sendQ)))
		return true
	default:
		metricDrops.Inc()
		return false
	}
}

func (d *DeepgramConn) run() {
	defer close(d.Events)
	for {
		err := d.connectAndPump()
		switch {
		case errors.Is(err, errRotate):
			d.resetFailures()
			if d.ctx.Err() != nil {
				return
			}
			// Rotation is planned; reconnect without backoff.
			continue
		case err != nil:
			d.addFailure()
			// emit error event so caller may choose to degrade
			d.emit(DGEvent{Type: "error", Text: err.Error()})
		default:
			d.resetFailures()
		}
		if d.ctx.Err() != nil {
			return
		}
		select {
		case <-time.After(d.nextBackoff()):
		case <-d.ctx.Done():
			return
		}
	}
}

var errRotate = errors.New("rotate")

func (d *DeepgramConn) connectAndPump() error {
	// circuit breaker
	if time.Now().Before(d.circuit) {
		time.Sleep(500 * time.Millisecond)
		return fmt.Errorf("circuit open")
	}

	hdr := make(http.Header)
	if d.apiKey != "" {
		hdr.Set("Authorization", "Token "+d.apiKey)
	}
	ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	ws, _, err := websocket.Dial(ctx, d.url, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		log.Printf("[deepgram] connect error: %v", err)
		return err
	}
	log.Printf("[deepgram] connected in %dms", time.Since(start).Milliseconds())
	metricConnectMS.Observe(float64(time.Since(start).Milliseconds()))
	metricReconnects.Inc()
	d.ws = ws

	// The writer belongs to this socket only. It is stopped and joined before
	// returning so the next connection's writer is the sole reader of sendQ.
	done := make(chan struct{})
	writerDone := make(chan struct{})
	go d.pumpAudio(ws, done, writerDone)

	// Closing the socket from the timer unblocks the Read below.
	var rotated atomic.Bool
	if d.maxAge > 0 {
		t := time.AfterFunc(d.maxAge, func() {
			rotated.Store(true)
			_ = ws.Close(websocket.StatusNormalClosure, "rotate")
		})
		defer t.Stop()
	}

	defer func() {
		close(done)
		_ = ws.Close(websocket.StatusNormalClosure, "bye")
		<-writerDone
		d.ws = nil
	}()

	for {
		_, data, err := ws.Read(d.ctx)
		if err != nil {
			if d.ctx.Err() != nil {
				return nil
			}
			if rotated.Load() {
				log.Printf("[deepgram] socket rotated after %s", d.maxAge)
				return errRotate
			}
			return err
		}
		if len(data) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			log.Printf("[deepgram] JSON parse error: %v", err)
			continue
		}
		d.handle(m)
	}
}

// pumpAudio writes queued audio to ws until done closes or a write fails.
// A frame that could not be written is carried over to the next socket.
func (d *DeepgramConn) pumpAudio(ws *websocket.Conn, done <-chan struct{}, writerDone chan<- struct{}) {
	defer close(writerDone)
	var framesSent uint64
	write := func(b []byte) bool {
		wctx, cancel := context.WithTimeout(d.ctx, 5*time.Second)
		err := ws.Write(wctx, websocket.MessageBinary, b)
		cancel()
		if err != nil {
			d.carry = b
			select {
			case <-done:
			default:
				log.Printf("[deepgram] write error: %v", err)
			}
			return false
		}
		framesSent++
		if framesSent == 1 || framesSent%500 == 0 {
			log.Printf("[deepgram] sent frames=%d", framesSent)
		}
		return true
	}

	if b := d.carry; b != nil {
		d.carry = nil
		if !write(b) {
			return
		}
	}
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-done:
			return
		case b := <-d.sendQ:
			if b == nil {
				continue
			}
			select {
			case <-done:
				d.carry = b
				return
			default:
			}
			if !write(b) {
				return
			}
		}
	}
}

// handle parses one provider frame leniently.
func (d *DeepgramConn) handle(m map[string]any) {
	typ := toString(m["type"]) // "Results", "UtteranceEnd", "Metadata", "SpeechStarted", "Error"
	switch {
	case strings.EqualFold(typ, "Error") || m["error"] != nil:
		msg := toString(m["error"])
		if msg == "" {
			msg = toString(m["message"])
		}
		if msg == "" {
			msg = "provider_error"
		}
		d.emit(DGEvent{Type: "error", Text: msg, Raw: m})
	case strings.EqualFold(typ, "Metadata"):
		d.emit(DGEvent{Type: "meta", Raw: m})
	case strings.EqualFold(typ, "SpeechStarted"):
		metricUtteranceEvents.WithLabelValues("speech_started").Inc()
	case strings.EqualFold(typ, "UtteranceEnd"):
		metricUtteranceEvents.WithLabelValues("utterance_end").Inc()
		// Only fall back to interim text when no final covered it.
		if !d.finalEmitted && d.lastText != "" {
			log.Printf("[deepgram] UtteranceEnd fallback text=%q", d.lastText)
			d.emit(DGEvent{Type: "final", Text: d.lastText, Raw: m})
			metricFinalEmitted.WithLabelValues("interim_fallback").Inc()
		}
		d.lastText = ""
		d.finalEmitted = false
	case strings.EqualFold(typ, "Results") || m["channel"] != nil:
		text := transcriptOf(m)
		if toBool(m["is_final"]) {
			if text == "" {
				metricEmptyFinalSkipped.Inc()
				return
			}
			d.lastText = ""
			d.finalEmitted = true
			d.emit(DGEvent{Type: "final", Text: text, Raw: m})
			metricFinalEmitted.WithLabelValues("provider").Inc()
			return
		}
		if text != "" {
			d.lastText = text
			d.finalEmitted = false
			d.emit(DGEvent{Type: "interim", Text: text, Raw: m})
		}
	}
}

// transcriptOf reads channel.alternatives[0].transcript.
func transcriptOf(m map[string]any) string {
	channel, _ := m["channel"].(map[string]any)
	if channel == nil {
		return ""
	}
	alts, _ := channel["alternatives"].([]any)
	if len(alts) == 0 {
		return ""
	}
	a0, _ := alts[0].(map[string]any)
	return strings.TrimSpace(toString(a0["transcript"]))
}

func (d *DeepgramConn) emit(e DGEvent) {
	select {
	case d.Events <- e:
	default:
		metricEventDrops.Inc()
	}
}

func (d *DeepgramConn) addFailure() {
	d.fails = append(d.fails, time.Now())
	// prune older than 60s
	cutoff := time.Now().Add(-60 * time.Second)
	j := 0
	for _, t := range d.fails {
		if t.After(cutoff) {
			d.fails[j] = t
			j++
		}
	}
	d.fails = d.fails[:j]
	if len(d.fails) >= 3 {
		d.circuit = time.Now().Add(30 * time.Second)
		metricCircuitOpens.Inc()
	}
}

func (d *DeepgramConn) resetFailures() { d.fails = nil }

func (d *DeepgramConn) nextBackoff() time.Duration {
	n := len(d.fails)
	if n <= 0 {
		return time.Second
	}
	if n > 5 {
		n = 5
	}
	base := time.Duration(1<<uint(n-1)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	return base
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nzd(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}
