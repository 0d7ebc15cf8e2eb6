package tutor

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"signconnect/tutor/internal/floor"
	"signconnect/tutor/internal/types"
)

// say speaks text now, or after the current utterance if the system already
// holds the floor. It is refused while the user holds the floor.
func (o *Orchestrator) say(text string) {
	if text == "" {
		return
	}
	if o.floor.Active() != nil {
		o.speechQ = append(o.speechQ, text)
		return
	}
	o.speakNow(text)
}

func (o *Orchestrator) speakNow(text string) {
	u, err := o.floor.Begin(o.ctx, uuid.NewString(), text, time.Now())
	if err != nil {
		metricSpeechRefused.Inc()
		log.Printf("[floor] speech refused sid=%s reason=%v text=%q", o.id, err, text)
		return
	}
	o.st.LastSpoken = text
	o.st.remember("assistant", text)
	o.emit(types.Outbound{Type: types.OutAgentText, Text: text})
	go o.playback(u)
}

// playback streams synthesized audio for u. Every chunk goes through
// u.Emit so nothing is sent once the utterance has been cancelled.
func (o *Orchestrator) playback(u *floor.Utterance) {
	chunks := 0
	err := o.synth.Synthesize(u.Context(), u.Text, func(chunk []byte) bool {
		if len(chunk) == 0 {
			return !u.Cancelled()
		}
		return u.Emit(func() {
			chunks++
			o.emit(types.Outbound{
				Type: types.OutAudioChunk,
				Data: base64.StdEncoding.EncodeToString(chunk),
			})
		})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[tts] synth failed sid=%s utt=%s: %v", o.id, u.ID, err)
	}
	if u.Cancelled() {
		log.Printf("[floor] utterance cancelled sid=%s utt=%s chunks=%d", o.id, u.ID, chunks)
	}
	o.post(func() { o.onSpeechDone(u) })
}

func (o *Orchestrator) onSpeechDone(u *floor.Utterance) {
	if !o.floor.End(u) {
		return
	}
	o.drainSpeech()
}

// drainSpeech starts the next queued line if the floor is free.
func (o *Orchestrator) drainSpeech() {
	for len(o.speechQ) > 0 && o.floor.Active() == nil {
		next := o.speechQ[0]
		o.speechQ = o.speechQ[1:]
		o.speakNow(next)
	}
}

// stopPlayback tells the client to drop buffered audio. The floor has
// already cancelled the utterance, so no chunk can follow this message.
func (o *Orchestrator) stopPlayback(d floor.Decision) {
	o.speechQ = nil
	log.Printf("[floor] stop playback sid=%s utt=%s reason=%s", o.id, d.StopUtteranceID, d.Reason)
	o.emit(types.Outbound{Type: types.OutStopPlayback, Code: d.Reason})
	if d.Reason == "barge_in" {
		o.record("barge_in", map[string]any{"utterance_id": d.StopUtteranceID})
	}
}
