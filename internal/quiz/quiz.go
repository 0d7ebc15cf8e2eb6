// Package quiz holds the per-quiz state: the sampled letter sequence, the
// per-symbol retry budget, the attempt log and the scorecard.
package quiz

import (
	"errors"

	"signconnect/tutor/internal/gesture"
)

const (
	DefaultLength      = 8
	DefaultMaxAttempts = 3
)

// Alphabet is every static fingerspelled letter. J and Z are traced in the
// air and cannot be graded from a single frame.
var Alphabet = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y",
}

var ErrInactive = errors.New("quiz is not active")

// Rand is the sampling source. *math/rand.Rand satisfies it.
type Rand interface {
	Perm(n int) []int
}

// Outcome is the result of grading one attempt.
type Outcome struct {
	Symbol    string
	Passed    bool
	Attempt   int // 1-based attempt number just graded
	Remaining int // attempts left on Symbol; 0 when the cursor advanced
	Advanced  bool
	Finished  bool
	Observed  string // label seen at grading time, "" for no hand
}

// State is one quiz. The cursor only advances on a pass or when the retry
// budget for the current symbol is spent.
type State struct {
	Sequence        []string
	Cursor          int
	AttemptInCursor int
	Passed          map[string]bool
	AttemptLog      map[string][]bool
	Active          bool

	maxAttempts int
}

// New samples length distinct letters without replacement.
func New(rng Rand, length, maxAttempts int) *State {
	if length <= 0 || length > len(Alphabet) {
		length = DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	perm := rng.Perm(len(Alphabet))
	seq := make([]string, 0, length)
	for _, i := range perm[:length] {
		seq = append(seq, Alphabet[i])
	}
	return &State{
		Sequence:    seq,
		Passed:      make(map[string]bool, length),
		AttemptLog:  make(map[string][]bool, length),
		Active:      true,
		maxAttempts: maxAttempts,
	}
}

func (s *State) MaxAttempts() int { return s.maxAttempts }

// Current returns the symbol under the cursor.
func (s *State) Current() (string, bool) {
	if !s.Active || s.Cursor >= len(s.Sequence) {
		return "", false
	}
	return s.Sequence[s.Cursor], true
}

// Grade compares the observation at countdown zero against the current
// symbol and moves the cursor accordingly.
func (s *State) Grade(obs gesture.Observation) (Outcome, error) {
	sym, ok := s.Current()
	if !ok {
		return Outcome{}, ErrInactive
	}
	passed := obs.Matches(sym)
	s.AttemptInCursor++
	s.AttemptLog[sym] = append(s.AttemptLog[sym], passed)

	out := Outcome{Symbol: sym, Passed: passed, Attempt: s.AttemptInCursor, Observed: obs.Label}
	if passed {
		s.Passed[sym] = true
	}
	if passed || s.AttemptInCursor >= s.maxAttempts {
		s.Cursor++
		s.AttemptInCursor = 0
		out.Advanced = true
		if s.Cursor >= len(s.Sequence) {
			s.Active = false
			out.Finished = true
		}
	} else {
		out.Remaining = s.maxAttempts - s.AttemptInCursor
	}
	return out, nil
}

// Stop ends the quiz early. Further grading returns ErrInactive.
func (s *State) Stop() { s.Active = false }

// Complete reports whether every symbol reached a verdict.
func (s *State) Complete() bool { return s.Cursor >= len(s.Sequence) }

// Scorecard is the final or partial result.
type Scorecard struct {
	Passed   int
	Graded   int
	Total    int
	Percent  int
	Missed   []string
	Attempts map[string][]bool
	Complete bool
}

// Score builds the scorecard. Only symbols behind the cursor have a verdict;
// after an early stop the rest, including a partially attempted current
// symbol, are left out of the denominator.
func (s *State) Score() Scorecard {
	graded := s.Cursor
	if graded > len(s.Sequence) {
		graded = len(s.Sequence)
	}
	card := Scorecard{
		Graded:   graded,
		Total:    len(s.Sequence),
		Attempts: make(map[string][]bool, graded),
		Complete: s.Complete(),
	}
	for _, sym := range s.Sequence[:graded] {
		if s.Passed[sym] {
			card.Passed++
		} else {
			card.Missed = append(card.Missed, sym)
		}
		card.Attempts[sym] = append([]bool(nil), s.AttemptLog[sym]...)
	}
	if graded > 0 {
		card.Percent = card.Passed * 100 / graded
	}
	return card
}

// Remark is the closing line for a scorecard.
func Remark(c Scorecard) string {
	switch {
	case c.Graded == 0:
		return "No letters were graded this time. Say quiz whenever you want to try again."
	case c.Percent == 100:
		return "Perfect score! Every letter was spot on."
	case c.Percent >= 70:
		return "Nice work! You really know most of these."
	default:
		return "Good effort. Keep practicing and try another quiz soon."
	}
}
