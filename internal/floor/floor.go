package floor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Speaker is who currently holds the conversational floor.
type Speaker string

const (
	Idle   Speaker = "IDLE_SPEAKER"
	System Speaker = "SYSTEM_SPEAKING"
	User   Speaker = "USER_SPEAKING"
)

var (
	ErrUserSpeaking    = errors.New("user is speaking")
	ErrAwaitingSilence = errors.New("awaiting end of user utterance")
	ErrSystemSpeaking  = errors.New("system is already speaking")
)

// DefaultHoldover is how long a USER_SPEAKING floor with no pending final
// text is held after the last transcript before the system may speak again.
const DefaultHoldover = 3 * time.Second

// Decision represents the action the floor manager wants to take.
type Decision struct {
	ShouldStop      bool
	StopUtteranceID string
	Reason          string // "barge_in" | "stop_command"
}

// Manager arbitrates between system playback and user speech. It is owned by
// a single session loop and is not safe for concurrent use; only the
// Utterance handles it returns are shared with playback goroutines.
type Manager struct {
	state      Speaker
	active     *Utterance
	pending     bool
	lastUserAt  time.Time
	lastFinalAt time.Time
	holdover   time.Duration
}

func New(holdover time.Duration) *Manager {
	if holdover <= 0 {
		holdover = DefaultHoldover
	}
	return &Manager{state: Idle, holdover: holdover}
}

func (m *Manager) State() Speaker { return m.state }

// Pending reports whether final fragments are waiting for the silence window.
func (m *Manager) Pending() bool { return m.pending }

// Active returns the in-flight system utterance, if any.
func (m *Manager) Active() *Utterance { return m.active }

// OnTranscript records user speech. Any transcript while the system is
// speaking cancels the active utterance and hands the floor to the user.
func (m *Manager) OnTranscript(final bool, now time.Time) Decision {
	m.lastUserAt = now
	if final {
		m.pending = true
		m.lastFinalAt = now
	}
	var d Decision
	if m.state == System && m.active != nil {
		m.active.Cancel()
		d = Decision{ShouldStop: true, StopUtteranceID: m.active.ID, Reason: "barge_in"}
		m.active = nil
	}
	m.state = User
	return d
}

// OnUtteranceComplete is called once aggregated user text has been flushed
// with no further fragments pending. A partial heard after the last final
// means the user has started again, so the floor stays with them until the
// holdover lapses.
func (m *Manager) OnUtteranceComplete() {
	m.pending = false
	if m.state == User && !m.lastUserAt.After(m.lastFinalAt) {
		m.state = Idle
	}
}

// Begin claims the floor for a new system utterance.
func (m *Manager) Begin(parent context.Context, id, text string, now time.Time) (*Utterance, error) {
	if m.pending {
		return nil, ErrAwaitingSilence
	}
	if m.state == User {
		if now.Sub(m.lastUserAt) < m.holdover {
			return nil, ErrUserSpeaking
		}
		// Partial text that never produced a final: release the floor.
		m.state = Idle
	}
	if m.state == System && m.active != nil {
		return nil, ErrSystemSpeaking
	}
	ctx, cancel := context.WithCancel(parent)
	u := &Utterance{ID: id, Text: text, ctx: ctx, cancel: cancel}
	m.active = u
	m.state = System
	return u, nil
}

// End releases the floor if u is still the active utterance.
func (m *Manager) End(u *Utterance) bool {
	if u == nil || m.active != u {
		return false
	}
	u.cancel()
	m.active = nil
	if m.state == System {
		m.state = Idle
	}
	return true
}

// Interrupt cancels any active utterance regardless of who holds the floor.
// Used for explicit stop commands.
func (m *Manager) Interrupt(reason string) Decision {
	if m.active == nil {
		return Decision{}
	}
	u := m.active
	u.Cancel()
	m.active = nil
	if m.state == System {
		m.state = Idle
	}
	return Decision{ShouldStop: true, StopUtteranceID: u.ID, Reason: reason}
}

// Busy reports whether either party is mid-turn.
func (m *Manager) Busy(now time.Time) bool {
	switch {
	case m.state == System, m.pending:
		return true
	case m.state == User:
		return now.Sub(m.lastUserAt) < m.holdover
	}
	return false
}

// Utterance is one system speech turn. Playback goroutines call Emit for each
// side effect; Cancel guarantees no Emit callback runs after it returns.
type Utterance struct {
	ID   string
	Text string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cancelled bool
}

func (u *Utterance) Context() context.Context { return u.ctx }

// Emit runs fn unless the utterance was cancelled. Returns false if cancelled.
func (u *Utterance) Emit(fn func()) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancelled {
		return false
	}
	fn()
	return true
}

func (u *Utterance) Cancel() {
	u.mu.Lock()
	u.cancelled = true
	u.mu.Unlock()
	u.cancel()
}

func (u *Utterance) Cancelled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cancelled
}
