package tutor

import (
	"signconnect/tutor/internal/gesture"
	"signconnect/tutor/internal/quiz"
)

type Mode string

const (
	ModeIdle  Mode = "IDLE"
	ModeTeach Mode = "TEACH"
	ModeQuiz  Mode = "QUIZ"
)

const historySize = 10

// Turn is one line of conversation history.
type Turn struct {
	Role string // "user" | "assistant"
	Text string
}

// SessionState is owned by one orchestrator loop. Teaching counters
// (progress, lock, consecutive frames, cooldown, struggle timers) live in
// Tracker so they reset together when the target changes.
type SessionState struct {
	Mode    Mode
	Target  string
	Streak  int
	LastObs gesture.Observation
	Tracker *gesture.Tracker
	Quiz    *quiz.State
	Results *quiz.Scorecard

	Captions   bool
	LastSpoken string

	history []Turn
}

func newSessionState(tracker *gesture.Tracker) *SessionState {
	return &SessionState{Mode: ModeIdle, Tracker: tracker, Captions: true}
}

// remember appends to the bounded history, evicting the oldest turn.
func (s *SessionState) remember(role, text string) {
	if text == "" {
		return
	}
	if len(s.history) == historySize {
		copy(s.history, s.history[1:])
		s.history = s.history[:historySize-1]
	}
	s.history = append(s.history, Turn{Role: role, Text: text})
}

// History returns a copy of the recent turns, oldest first.
func (s *SessionState) History() []Turn {
	return append([]Turn(nil), s.history...)
}

func (s *SessionState) quizActive() bool {
	return s.Quiz != nil && s.Quiz.Active
}
