package tutor

import (
	"context"

	"signconnect/tutor/internal/types"
)

// Recognizer turns pushed audio into transcripts. Start may be called again
// after Stop. The returned channel closes when the recognizer gives up.
type Recognizer interface {
	Start(ctx context.Context) (<-chan types.Transcript, error)
	Send(audio []byte) bool
	Stop()
}

// Generator produces a short reply for a prompt. Implementations must
// respect ctx; an error or empty reply makes the session use a fixed line.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Synthesizer streams audio for text, calling yield per chunk until yield
// returns false or the audio ends.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, yield func(chunk []byte) bool) error
}

// Recorder receives notable session events for the event log.
type Recorder interface {
	AppendEvent(sessionID, typ string, payload map[string]any) types.Event
}

// Rand is the randomness used for quiz sampling and phrase variants.
// *math/rand.Rand satisfies it.
type Rand interface {
	Perm(n int) []int
	Intn(n int) int
}

type nopRecognizer struct{}

func (nopRecognizer) Start(context.Context) (<-chan types.Transcript, error) { return nil, nil }
func (nopRecognizer) Send([]byte) bool                                       { return false }
func (nopRecognizer) Stop()                                                  {}

type nopGenerator struct{}

func (nopGenerator) Generate(context.Context, string) (string, error) { return "", nil }

type nopSynthesizer struct{}

func (nopSynthesizer) Synthesize(context.Context, string, func([]byte) bool) error { return nil }

type nopRecorder struct{}

func (nopRecorder) AppendEvent(_, typ string, payload map[string]any) types.Event {
	return types.Event{Type: typ, Payload: payload}
}
