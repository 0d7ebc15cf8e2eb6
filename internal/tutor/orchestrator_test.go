package tutor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"signconnect/tutor/internal/floor"
	"signconnect/tutor/internal/gesture"
	"signconnect/tutor/internal/types"
)

// fixedRand returns a rotated identity permutation and always picks the
// first phrase variant.
type fixedRand struct{ offset int }

func (f fixedRand) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = (i + f.offset) % n
	}
	return p
}

func (fixedRand) Intn(int) int { return 0 }

type memRecorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (m *memRecorder) AppendEvent(_, typ string, payload map[string]any) types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := types.Event{Type: typ, Ts: time.Now(), Payload: payload}
	m.events = append(m.events, e)
	return e
}

func (m *memRecorder) find(typ string) (types.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.Type == typ {
			return e, true
		}
	}
	return types.Event{}, false
}

type fakeGenerator struct {
	reply string
	mu    sync.Mutex
	last  string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.last = prompt
	g.mu.Unlock()
	return g.reply, nil
}

func (g *fakeGenerator) prompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// gatedSynth yields one chunk, then waits for release or cancellation before
// trying a second.
type gatedSynth struct {
	release chan struct{}
}

func (s *gatedSynth) Synthesize(ctx context.Context, _ string, yield func([]byte) bool) error {
	if !yield([]byte("one")) {
		return nil
	}
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	yield([]byte("two"))
	return ctx.Err()
}

type panicClassifier struct{}

func (panicClassifier) Classify(types.HandFeatures, time.Time) gesture.Observation {
	panic("classifier exploded")
}

// floorState reads the speaker state on the loop goroutine.
func (o *Orchestrator) floorState() floor.Speaker {
	ch := make(chan floor.Speaker, 1)
	o.post(func() { ch <- o.floor.State() })
	return <-ch
}

type harness struct {
	t   *testing.T
	o   *Orchestrator
	rec *memRecorder

	mu   sync.Mutex
	msgs []types.Outbound
}

func testOptions() Options {
	return Options{
		SilenceBuffer:   20 * time.Millisecond,
		SuccessCooldown: 30 * time.Millisecond,
		AutoFeedback:    time.Hour,
		QuizTick:        time.Hour,
		AnnouncePause:   time.Hour,
		ResultPause:     time.Hour,
	}
}

func newHarness(t *testing.T, opts Options, deps Deps) *harness {
	t.Helper()
	h := &harness{t: t, rec: &memRecorder{}}
	if deps.Recorder == nil {
		deps.Recorder = h.rec
	}
	if deps.Rand == nil {
		deps.Rand = fixedRand{}
	}
	h.o = New("sess-test", opts, deps)
	ctx, cancel := context.WithCancel(context.Background())
	go h.o.Run(ctx)
	go func() {
		for {
			select {
			case m := <-h.o.Outbound():
				h.mu.Lock()
				h.msgs = append(h.msgs, m)
				h.mu.Unlock()
			case <-h.o.Done():
				return
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-h.o.Done()
	})
	return h
}

func (h *harness) send(v any) {
	h.t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		h.t.Fatalf("marshal: %v", err)
	}
	if !h.o.Submit(b) {
		h.t.Fatalf("session already ended")
	}
}

func (h *harness) final(text string) {
	h.send(types.TranscriptMessage{Type: types.InTranscript, Text: text, IsFinal: true})
}

func (h *harness) partial(text string) {
	h.send(types.TranscriptMessage{Type: types.InTranscript, Text: text})
}

func (h *harness) frame(label string, conf float64) {
	h.send(types.HandStateMessage{Type: types.InHandState, Data: types.HandFrame{Label: label, Confidence: conf}})
}

func (h *harness) snapshot() []types.Outbound {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.Outbound(nil), h.msgs...)
}

// waitFor returns the index of the first message matching pred.
func (h *harness) waitFor(what string, pred func(types.Outbound) bool) (int, types.Outbound) {
	h.t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		for i, m := range h.snapshot() {
			if pred(m) {
				return i, m
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %s; got %d messages", what, len(h.snapshot()))
	return -1, types.Outbound{}
}

func (h *harness) waitSpoken(substr string) int {
	h.t.Helper()
	i, _ := h.waitFor("spoken "+substr, func(m types.Outbound) bool {
		return m.Type == types.OutAgentText && strings.Contains(m.Text, substr)
	})
	return i
}

func (h *harness) waitUI(what string, pred func(*types.UIState) bool) *types.UIState {
	h.t.Helper()
	_, m := h.waitFor(what, func(m types.Outbound) bool {
		return m.Type == types.OutUIState && m.UIState != nil && pred(m.UIState)
	})
	return m.UIState
}

func (h *harness) count(pred func(types.Outbound) bool) int {
	n := 0
	for _, m := range h.snapshot() {
		if pred(m) {
			n++
		}
	}
	return n
}

// sync waits until every message submitted so far has been handled.
func (h *harness) sync(label string) {
	h.t.Helper()
	h.frame(label, 0.5)
	h.waitUI("sync frame "+label, func(ui *types.UIState) bool { return ui.Prediction == label })
}

func TestWelcomeOnConnect(t *testing.T) {
	h := newHarness(t, testOptions(), Deps{})
	h.waitSpoken("I'm your ASL tutor")
	ui := h.waitUI("initial ui", func(ui *types.UIState) bool { return ui.Mode == "IDLE" })
	if ui.TargetSign != "" {
		t.Fatalf("idle session must have no target, got %q", ui.TargetSign)
	}
	for _, m := range h.snapshot() {
		if m.Timestamp == 0 {
			t.Fatalf("outbound %s has no timestamp", m.Type)
		}
	}
}

func TestFragmentsAggregateIntoTeach(t *testing.T) {
	h := newHarness(t, testOptions(), Deps{})
	h.final("teach")
	h.final(" me B")

	h.waitSpoken("Let's learn B")
	ui := h.waitUI("teach mode", func(ui *types.UIState) bool { return ui.Mode == "TEACH" })
	if ui.TargetSign != "B" || ui.TeachingProgress != 0 {
		t.Fatalf("unexpected ui %+v", ui)
	}
	if n := h.count(func(m types.Outbound) bool { return m.Type == types.OutAgentText && m.Text == askWhichLine }); n != 0 {
		t.Fatalf("fragments were parsed separately")
	}
	finals := h.count(func(m types.Outbound) bool { return m.Type == types.OutASRFinal })
	if finals != 2 {
		t.Fatalf("each final fragment should be echoed, got %d", finals)
	}
}

func TestMasteryAfterThreeSuccesses(t *testing.T) {
	h := newHarness(t, testOptions(), Deps{})
	h.final("teach me A")
	h.waitSpoken("Let's learn A")

	for round := 0; round < 3; round++ {
		for i := 0; i < 3; i++ {
			h.frame("A", 0.95)
		}
		time.Sleep(45 * time.Millisecond)
	}
	h.waitUI("mastered", func(ui *types.UIState) bool { return ui.TeachingProgress == 3 && ui.Mastered })
	h.waitSpoken("You've mastered A")

	// Cooldown has passed, but the lock holds until a new target.
	time.Sleep(45 * time.Millisecond)
	for i := 0; i < 3; i++ {
		h.frame("A", 0.99)
	}
	h.sync("Q")

	successes := h.count(func(m types.Outbound) bool {
		return m.Type == types.OutAgentText && strings.HasPrefix(m.Text, "Nice!")
	})
	if successes != 2 {
		t.Fatalf("expected 2 progress lines before mastery, got %d", successes)
	}
	if n := h.count(func(m types.Outbound) bool {
		return m.Type == types.OutAgentText && strings.Contains(m.Text, "mastered")
	}); n != 1 {
		t.Fatalf("mastery announced %d times", n)
	}
	if _, ok := h.rec.find("mastery"); !ok {
		t.Fatalf("mastery not recorded")
	}

	// "next" moves on and resets progress.
	h.final("next")
	h.waitSpoken("Let's learn B")
	ui := h.waitUI("new target", func(ui *types.UIState) bool { return ui.TargetSign == "B" })
	if ui.TeachingProgress != 0 || ui.Mastered || ui.Streak != 1 {
		t.Fatalf("unexpected ui after next %+v", ui)
	}
}

func TestBargeInStopsPlaybackBeforeNextChunk(t *testing.T) {
	synth := &gatedSynth{release: make(chan struct{})}
	h := newHarness(t, testOptions(), Deps{Synthesizer: synth})

	chunk := base64.StdEncoding.EncodeToString([]byte("one"))
	first, _ := h.waitFor("first chunk", func(m types.Outbound) bool {
		return m.Type == types.OutAudioChunk && m.Data == chunk
	})

	h.partial("wait a second")
	stop, m := h.waitFor("stop_playback", func(m types.Outbound) bool { return m.Type == types.OutStopPlayback })
	if stop < first {
		t.Fatalf("stop_playback arrived before the chunk it cancels")
	}
	if m.Code != "barge_in" {
		t.Fatalf("unexpected stop reason %q", m.Code)
	}
	close(synth.release)
	time.Sleep(50 * time.Millisecond)

	for i, m := range h.snapshot() {
		if i > stop && m.Type == types.OutAudioChunk {
			t.Fatalf("audio chunk sent after stop_playback")
		}
	}
	if _, ok := h.rec.find("barge_in"); !ok {
		t.Fatalf("barge-in not recorded")
	}
	if got := h.o.floorState(); got != floor.User {
		t.Fatalf("floor should belong to the user, got %s", got)
	}
}

func TestStopEndsQuizAndIgnoresOtherSpeech(t *testing.T) {
	h := newHarness(t, testOptions(), Deps{})
	h.final("quiz me")
	h.waitUI("quiz mode", func(ui *types.UIState) bool { return ui.Mode == "QUIZ" && ui.Quiz != nil })

	h.final("teach me B")
	time.Sleep(80 * time.Millisecond)
	h.sync("Q")
	if n := h.count(func(m types.Outbound) bool {
		return m.Type == types.OutUIState && m.UIState.Mode == "TEACH"
	}); n != 0 {
		t.Fatalf("speech during quiz changed mode")
	}

	h.final("stop and teach me B")
	ui := h.waitUI("quiz results", func(ui *types.UIState) bool { return ui.QuizResults != nil })
	if ui.Mode != "IDLE" || ui.TargetSign != "" || ui.Quiz != nil {
		t.Fatalf("quiz should be cleared, got %+v", ui)
	}
	r := ui.QuizResults
	if r.Graded != 0 || r.Complete || r.Percent != 0 || r.Total != 8 {
		t.Fatalf("unexpected results %+v", r)
	}
	h.waitSpoken("Quiz stopped.")
	e, ok := h.rec.find("quiz_finished")
	if !ok || e.Payload["outcome"] != "stopped" {
		t.Fatalf("quiz_finished event missing or wrong: %+v", e)
	}
}

func TestQuizFailingSymbolAdvancesAfterThreeAttempts(t *testing.T) {
	opts := testOptions()
	opts.AnnouncePause = 2 * time.Millisecond
	opts.QuizTick = 2 * time.Millisecond
	opts.ResultPause = 2 * time.Millisecond
	// Offset 1 starts the quiz at B; A never appears.
	h := newHarness(t, opts, Deps{Rand: fixedRand{offset: 1}})

	h.frame("A", 0.95)
	h.final("quiz me")

	ui := h.waitUI("quiz results", func(ui *types.UIState) bool { return ui.QuizResults != nil })
	r := ui.QuizResults
	if !r.Complete || r.Passed != 0 || r.Graded != 8 || r.Percent != 0 {
		t.Fatalf("unexpected results %+v", r)
	}
	b := r.Attempts["B"]
	if len(b) != 3 || b[0] || b[1] || b[2] {
		t.Fatalf("attempt log for B = %v", b)
	}
	if len(r.Missed) != 8 || r.Missed[0] != "B" {
		t.Fatalf("missed = %v", r.Missed)
	}
	for _, m := range h.snapshot() {
		if m.Type == types.OutUIState && m.UIState.Quiz != nil && m.UIState.Quiz.Attempt > 3 {
			t.Fatalf("attempt %d exceeds budget", m.UIState.Quiz.Attempt)
		}
	}
	h.waitSpoken("Not quite, that looked like A. 2 tries left.")
	h.waitSpoken("That one was B. Let's move on.")
	h.waitSpoken("Quiz complete!")
}

func TestGeneratorReplyAndFallback(t *testing.T) {
	gen := &fakeGenerator{reply: "Sunny and warm!"}
	h := newHarness(t, testOptions(), Deps{Generator: gen})
	h.final("what is the weather like")
	h.waitSpoken("Sunny and warm!")
	p := gen.prompt()
	if !strings.Contains(p, "User said: what is the weather like") || !strings.Contains(p, "Mode: IDLE") {
		t.Fatalf("prompt missing context:\n%s", p)
	}

	h2 := newHarness(t, testOptions(), Deps{})
	h2.final("what is the weather like")
	h2.waitSpoken(fallbackLine)
}

func TestCheckDescribesObservation(t *testing.T) {
	h := newHarness(t, testOptions(), Deps{})
	h.final("teach me A")
	h.waitSpoken("Let's learn A")
	h.frame("S", 0.93)
	h.final("is this right")
	h.waitSpoken("I see S, but you're going for A.")
	ui := h.waitUI("still teaching", func(ui *types.UIState) bool { return ui.Prediction == "S" })
	if ui.TeachingProgress != 0 {
		t.Fatalf("check must not change counters")
	}
}

func TestStopCommandReturnsToIdle(t *testing.T) {
	h := newHarness(t, testOptions(), Deps{})
	h.final("teach me C")
	h.waitUI("teach", func(ui *types.UIState) bool { return ui.TargetSign == "C" })
	time.Sleep(40 * time.Millisecond)
	h.final("stop")
	h.waitSpoken(stopLine)
	h.waitUI("idle", func(ui *types.UIState) bool { return ui.Mode == "IDLE" && ui.TargetSign == "" })
}

func TestMalformedInputKeepsSessionAlive(t *testing.T) {
	h := newHarness(t, testOptions(), Deps{Classifier: panicClassifier{}})
	if !h.o.Submit([]byte("{not json")) {
		t.Fatalf("submit failed")
	}
	h.waitFor("bad_json error", func(m types.Outbound) bool { return m.Type == types.OutError && m.Code == "bad_json" })

	h.send(map[string]any{"type": "client_control", "action": "dance"})
	h.waitFor("bad_action error", func(m types.Outbound) bool { return m.Type == types.OutError && m.Code == "bad_action" })

	// A panicking handler drops only that event.
	h.send(types.HandStateMessage{Type: types.InHandState, Data: types.HandFrame{Features: &types.HandFeatures{}}})
	h.sync("L")
}

func (h *harness) waitCount(what string, n int, pred func(types.Outbound) bool) {
	h.t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if h.count(pred) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %d x %s; got %d", n, what, h.count(pred))
}

func TestHistoryKeepsTenMostRecentTurns(t *testing.T) {
	st := newSessionState(gesture.NewTracker(time.Second, time.Second))
	st.remember("user", "")
	for i := 1; i <= 12; i++ {
		st.remember("user", fmt.Sprintf("turn %d", i))
	}
	h := st.History()
	if len(h) != historySize {
		t.Fatalf("history holds %d turns, want %d", len(h), historySize)
	}
	if h[0].Text != "turn 3" || h[len(h)-1].Text != "turn 12" {
		t.Fatalf("history not oldest first with oldest evicted: %v", h)
	}
	h[0].Text = "changed"
	if st.History()[0].Text != "turn 3" {
		t.Fatalf("History must return a copy")
	}
}

func TestPromptCarriesBoundedHistory(t *testing.T) {
	const reply = "Good question."
	gen := &fakeGenerator{reply: reply}
	h := newHarness(t, testOptions(), Deps{Generator: gen})
	h.waitSpoken("I'm your ASL tutor")

	words := []string{"one", "two", "three", "four", "five", "six"}
	isReply := func(m types.Outbound) bool { return m.Type == types.OutAgentText && m.Text == reply }
	for i, w := range words {
		h.final("question " + w)
		h.waitCount("reply", i+1, isReply)
	}

	// welcome, six questions and five replies make twelve turns; the
	// welcome and the first question are evicted.
	p := gen.prompt()
	if strings.Contains(p, "question one") || strings.Contains(p, "ASL tutor") {
		t.Fatalf("evicted turns still in prompt:\n%s", p)
	}
	if !strings.Contains(p, "  user: question two\n") || !strings.Contains(p, "  assistant: "+reply+"\n") {
		t.Fatalf("prompt missing recent turns:\n%s", p)
	}
	if !strings.HasSuffix(p, "User said: question six") {
		t.Fatalf("prompt must end with the current utterance:\n%s", p)
	}
	if n := strings.Count(p, "\n  "); n != historySize-1 {
		t.Fatalf("prompt lists %d prior turns, want %d:\n%s", n, historySize-1, p)
	}
}

func TestYesAfterMasteryMovesOn(t *testing.T) {
	h := newHarness(t, testOptions(), Deps{})
	h.final("teach me A")
	h.waitSpoken("Let's learn A")

	// Before mastery "yes" is ordinary conversation.
	h.final("yes")
	h.waitSpoken(fallbackLine)

	for round := 0; round < 3; round++ {
		for i := 0; i < 3; i++ {
			h.frame("A", 0.95)
		}
		time.Sleep(45 * time.Millisecond)
	}
	h.waitSpoken("You've mastered A")

	h.final("yeah")
	h.waitSpoken("Let's learn B")
	ui := h.waitUI("next target", func(ui *types.UIState) bool { return ui.TargetSign == "B" })
	if ui.Mode != "TEACH" || ui.TeachingProgress != 0 || ui.Mastered {
		t.Fatalf("unexpected ui after yes %+v", ui)
	}
}

func TestToggleCaptionsHidesPartialsOnly(t *testing.T) {
	h := newHarness(t, testOptions(), Deps{})
	isPartial := func(m types.Outbound) bool { return m.Type == types.OutASRPartial }

	h.partial("hel")
	h.waitFor("partial with captions on", isPartial)

	h.send(types.ClientControlMessage{Type: types.InClientControl, Action: "toggle_captions"})
	h.partial("hello the")
	h.final("hello there")
	h.waitFor("final", func(m types.Outbound) bool { return m.Type == types.OutASRFinal && m.Text == "hello there" })
	h.sync("Q")
	if n := h.count(isPartial); n != 1 {
		t.Fatalf("partials echoed with captions off: %d", n)
	}

	h.send(types.ClientControlMessage{Type: types.InClientControl, Action: "toggle_captions"})
	h.partial("again")
	h.waitFor("partial after re-enabling", func(m types.Outbound) bool { return isPartial(m) && m.Text == "again" })
}

func TestStruggleLineWaitsForFreeFloor(t *testing.T) {
	opts := testOptions()
	opts.AutoFeedback = 40 * time.Millisecond
	synth := &gatedSynth{release: make(chan struct{})}
	h := newHarness(t, opts, Deps{Synthesizer: synth})

	h.final("teach me A")
	h.waitSpoken("Let's learn A")
	h.waitUI("teach", func(ui *types.UIState) bool { return ui.Mode == "TEACH" })

	struggle := "Keep trying. " + instructionFor("A")
	isStruggle := func(m types.Outbound) bool { return m.Type == types.OutAgentText && m.Text == struggle }

	// The teach line is still playing, so wrong frames get no hint.
	for i := 0; i < 15; i++ {
		h.frame("B", 0.9)
		time.Sleep(10 * time.Millisecond)
	}
	h.sync("Q")
	if n := h.count(isStruggle); n != 0 {
		t.Fatalf("struggle line spoken over system speech")
	}

	close(synth.release)
	deadline := time.Now().Add(5 * time.Second)
	for h.count(isStruggle) == 0 && time.Now().Before(deadline) {
		h.frame("B", 0.9)
		time.Sleep(10 * time.Millisecond)
	}
	h.waitSpoken(struggle)
	ui := h.waitUI("still teaching", func(ui *types.UIState) bool { return ui.Prediction == "B" })
	if ui.TeachingProgress != 0 {
		t.Fatalf("struggle must not change progress")
	}
}
