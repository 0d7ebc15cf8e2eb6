// Package silence merges final transcript fragments that arrive in quick
// succession into one utterance.
package silence

import (
	"strings"
	"sync"
	"time"
)

// DefaultBuffer is the quiet period after the last fragment before a flush.
const DefaultBuffer = time.Second

// Scheduler runs f after d and returns a stop func with time.Timer.Stop
// semantics. time.AfterFunc satisfies it.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Aggregator buffers fragments and fires a flush callback once the buffer
// has been quiet for the configured window. The callback receives a
// generation number; the owner calls Flush with it from its own goroutine so
// the buffer is only ever drained from a single control flow.
type Aggregator struct {
	buffer   time.Duration
	schedule Scheduler
	onQuiet  func(gen uint64)

	mu    sync.Mutex
	parts []string
	gen   uint64
	stop  func() bool
}

func New(buffer time.Duration, onQuiet func(gen uint64)) *Aggregator {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Aggregator{buffer: buffer, schedule: afterFunc, onQuiet: onQuiet}
}

// WithScheduler swaps the timer source. Tests use it to fire flushes by hand.
func (a *Aggregator) WithScheduler(s Scheduler) *Aggregator {
	a.schedule = s
	return a
}

// Add appends a final fragment and restarts the quiet window.
func (a *Aggregator) Add(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.parts = append(a.parts, fragment)
	if a.stop != nil {
		a.stop()
	}
	a.gen++
	gen := a.gen
	a.stop = a.schedule(a.buffer, func() { a.onQuiet(gen) })
}

// Flush drains the buffer if gen is still the latest schedule. A stale
// generation (a fragment arrived after that timer was armed) returns false.
func (a *Aggregator) Flush(gen uint64) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || len(a.parts) == 0 {
		return "", false
	}
	text := strings.Join(a.parts, " ")
	a.parts = nil
	a.stop = nil
	return text, true
}

// Pending reports whether fragments are buffered.
func (a *Aggregator) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.parts) > 0
}

// Reset drops buffered text and cancels any scheduled flush.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		a.stop()
		a.stop = nil
	}
	a.parts = nil
	a.gen++
}
