package gesture

import (
	"strings"
	"time"
)

// SuccessThreshold is the minimum classifier confidence for a frame to count
// as a correct sign, both for teaching and for quiz grading.
const SuccessThreshold = 0.89

// Observation is one classified gesture frame. An empty Label means no hand
// (or no classifier) for that frame.
type Observation struct {
	Label      string
	Confidence float64
	At         time.Time
}

// NewObservation normalizes a raw (label, confidence) pair.
func NewObservation(label string, confidence float64, at time.Time) Observation {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		confidence = 0
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Observation{Label: label, Confidence: confidence, At: at}
}

func (o Observation) HasHand() bool { return o.Label != "" }

// Matches reports whether a frame is a correct rendition of target.
func Matches(label string, confidence float64, target string) bool {
	return target != "" && label == target && confidence >= SuccessThreshold
}

// Matches reports whether the observation is a correct rendition of target.
func (o Observation) Matches(target string) bool {
	return Matches(o.Label, o.Confidence, target)
}
