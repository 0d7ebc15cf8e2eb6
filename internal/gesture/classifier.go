package gesture

import (
	"math"
	"time"

	"signconnect/tutor/internal/types"
)

// Classifier turns client-computed hand features into a label and confidence.
type Classifier interface {
	Classify(f types.HandFeatures, at time.Time) Observation
}

// handshape is a static template: expected curl per finger
// (thumb, index, middle, ring, pinky; 0 straight, 1 fully curled).
type handshape struct {
	label  string
	curls  [5]float64
	thumb  string
	spread bool
}

var handshapes = []handshape{
	{"A", [5]float64{0.2, 1, 1, 1, 1}, "extended", false},
	{"B", [5]float64{0.8, 0, 0, 0, 0}, "across", false},
	{"C", [5]float64{0.4, 0.5, 0.5, 0.5, 0.5}, "extended", false},
	{"D", [5]float64{0.5, 0, 0.8, 0.8, 0.8}, "across", false},
	{"E", [5]float64{1, 0.9, 0.9, 0.9, 0.9}, "tucked", false},
	{"F", [5]float64{0.5, 0.8, 0, 0, 0}, "across", true},
	{"I", [5]float64{0.9, 1, 1, 1, 0}, "across", false},
	{"K", [5]float64{0.2, 0, 0, 1, 1}, "extended", true},
	{"L", [5]float64{0, 0, 1, 1, 1}, "extended", true},
	{"O", [5]float64{0.6, 0.7, 0.7, 0.7, 0.7}, "across", false},
	{"S", [5]float64{0.9, 1, 1, 1, 1}, "across", false},
	{"U", [5]float64{0.9, 0, 0, 1, 1}, "across", false},
	{"V", [5]float64{0.9, 0, 0, 1, 1}, "across", true},
	{"W", [5]float64{0.9, 0, 0, 0, 1}, "across", true},
	{"Y", [5]float64{0, 1, 1, 1, 0}, "extended", true},
}

// RuleClassifier matches features against static handshape templates. It is
// stateless; one instance may be shared or built per session.
type RuleClassifier struct {
	// MinScore below which a frame is reported as no hand.
	MinScore float64
}

func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{MinScore: 0.5} }

func (c *RuleClassifier) Classify(f types.HandFeatures, at time.Time) Observation {
	got := [5]float64{
		f.FingerCurls.Thumb, f.FingerCurls.Index, f.FingerCurls.Middle,
		f.FingerCurls.Ring, f.FingerCurls.Pinky,
	}
	best, bestScore := "", 0.0
	for _, h := range handshapes {
		s := h.score(got, f.ThumbPosition, f.FingersSpread)
		if s > bestScore {
			best, bestScore = h.label, s
		}
	}
	if bestScore < c.MinScore {
		return NewObservation("", 0, at)
	}
	return NewObservation(best, math.Round(bestScore*1000)/1000, at)
}

func (h handshape) score(curls [5]float64, thumb string, spread bool) float64 {
	var diff float64
	for i := range curls {
		diff += math.Abs(clamp01(curls[i]) - h.curls[i])
	}
	s := 1 - diff/5
	if thumb != "" && thumb != h.thumb {
		s *= 0.9
	}
	if spread != h.spread {
		s *= 0.92
	}
	return s
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }
