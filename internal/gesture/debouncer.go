package gesture

import "time"

const (
	// SuccessFramesNeeded consecutive qualifying frames make one success.
	SuccessFramesNeeded = 3
	// MasteryGoal successes on one target lock it as mastered.
	MasteryGoal = 3

	DefaultCooldown         = 2500 * time.Millisecond
	DefaultFeedbackInterval = 4 * time.Second
)

// Signal is the debounced outcome of a single frame.
type Signal int

const (
	None Signal = iota
	Success
	Struggle
)

func (s Signal) String() string {
	switch s {
	case Success:
		return "success"
	case Struggle:
		return "struggle"
	default:
		return "none"
	}
}

// Tracker turns per-frame classifications into discrete teaching events for
// one target symbol. It is not safe for concurrent use; the session loop owns it.
type Tracker struct {
	Cooldown         time.Duration
	FeedbackInterval time.Duration

	target        string
	progress      int
	locked        bool
	consec        int
	cooldownUntil time.Time

	struggleSince  time.Time
	lastFeedbackAt time.Time
}

func NewTracker(cooldown, feedbackInterval time.Duration) *Tracker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if feedbackInterval <= 0 {
		feedbackInterval = DefaultFeedbackInterval
	}
	return &Tracker{Cooldown: cooldown, FeedbackInterval: feedbackInterval}
}

// SetTarget switches the practiced symbol and clears all progress toward it.
// An empty target disables counting.
func (t *Tracker) SetTarget(target string, now time.Time) {
	t.target = target
	t.progress = 0
	t.locked = false
	t.consec = 0
	t.cooldownUntil = time.Time{}
	t.struggleSince = time.Time{}
	t.lastFeedbackAt = now
}

// Observe feeds one frame. busy is true while the system is speaking or the
// user is mid-utterance; it only suppresses struggle feedback.
func (t *Tracker) Observe(obs Observation, now time.Time, busy bool) Signal {
	if t.target == "" || t.locked || now.Before(t.cooldownUntil) {
		return None
	}

	if obs.Matches(t.target) {
		t.consec++
		t.struggleSince = time.Time{}
		if t.consec < SuccessFramesNeeded {
			return None
		}
		t.consec = 0
		t.progress++
		t.cooldownUntil = now.Add(t.Cooldown)
		if t.progress >= MasteryGoal {
			t.locked = true
		}
		return Success
	}

	t.consec = 0
	if t.struggleSince.IsZero() {
		t.struggleSince = now
	}
	if busy {
		return None
	}
	if now.Sub(t.struggleSince) > t.FeedbackInterval && now.Sub(t.lastFeedbackAt) >= t.FeedbackInterval {
		t.struggleSince = now
		t.lastFeedbackAt = now
		return Struggle
	}
	return None
}

func (t *Tracker) Target() string           { return t.target }
func (t *Tracker) Progress() int            { return t.progress }
func (t *Tracker) Locked() bool             { return t.locked }
func (t *Tracker) Mastered() bool           { return t.progress >= MasteryGoal }
func (t *Tracker) Consecutive() int         { return t.consec }
func (t *Tracker) CooldownUntil() time.Time { return t.cooldownUntil }
