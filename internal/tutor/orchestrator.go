// Package tutor runs one tutoring session: it merges gesture frames,
// transcripts and its own speech playback into a single event loop that owns
// all session state.
package tutor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"runtime/debug"
	"strings"
	"time"

	"signconnect/tutor/internal/floor"
	"signconnect/tutor/internal/gesture"
	"signconnect/tutor/internal/silence"
	"signconnect/tutor/internal/types"
)

// Options are the session timings. Zero values take the defaults.
type Options struct {
	SilenceBuffer   time.Duration
	SuccessCooldown time.Duration
	AutoFeedback    time.Duration
	FloorHoldover   time.Duration
	GenerateTimeout time.Duration

	QuizLength    int
	QuizAttempts  int
	QuizTick      time.Duration
	AnnouncePause time.Duration
	ResultPause   time.Duration

	OutboundQueue int
}

func (o Options) withDefaults() Options {
	if o.SilenceBuffer <= 0 {
		o.SilenceBuffer = silence.DefaultBuffer
	}
	if o.SuccessCooldown <= 0 {
		o.SuccessCooldown = gesture.DefaultCooldown
	}
	if o.AutoFeedback <= 0 {
		o.AutoFeedback = gesture.DefaultFeedbackInterval
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = 10 * time.Second
	}
	if o.QuizTick <= 0 {
		o.QuizTick = time.Second
	}
	if o.AnnouncePause <= 0 {
		o.AnnouncePause = 1500 * time.Millisecond
	}
	if o.ResultPause <= 0 {
		o.ResultPause = 1500 * time.Millisecond
	}
	if o.OutboundQueue <= 0 {
		o.OutboundQueue = 64
	}
	return o
}

// Deps are the external collaborators. Nil fields degrade to no-ops.
type Deps struct {
	Recognizer  Recognizer
	Generator   Generator
	Synthesizer Synthesizer
	Classifier  gesture.Classifier
	Recorder    Recorder
	Rand        Rand
}

// Orchestrator owns one session. All state is mutated on the Run goroutine;
// other goroutines reach it only through Submit and post.
type Orchestrator struct {
	id   string
	opts Options

	rec   Recognizer
	gen   Generator
	synth Synthesizer
	clf   gesture.Classifier
	log   Recorder
	rng   Rand

	inbound chan []byte
	events  chan func()
	out     chan types.Outbound
	done    chan struct{}
	ctx     context.Context

	st      *SessionState
	floor   *floor.Manager
	silence *silence.Aggregator

	transcripts <-chan types.Transcript
	listening   bool

	speechQ   []string
	cancelGen context.CancelFunc
	genSeq    uint64

	quizGen   uint64
	quizTimer *time.Timer
	countdown int
}

func New(sessionID string, opts Options, deps Deps) *Orchestrator {
	opts = opts.withDefaults()
	o := &Orchestrator{
		id:      sessionID,
		opts:    opts,
		rec:     deps.Recognizer,
		gen:     deps.Generator,
		synth:   deps.Synthesizer,
		clf:     deps.Classifier,
		log:     deps.Recorder,
		rng:     deps.Rand,
		inbound: make(chan []byte, 32),
		events:  make(chan func(), 32),
		out:     make(chan types.Outbound, opts.OutboundQueue),
		done:    make(chan struct{}),
		floor:   floor.New(opts.FloorHoldover),
	}
	if o.rec == nil {
		o.rec = nopRecognizer{}
	}
	if o.gen == nil {
		o.gen = nopGenerator{}
	}
	if o.synth == nil {
		o.synth = nopSynthesizer{}
	}
	if o.clf == nil {
		o.clf = gesture.NewRuleClassifier()
	}
	if o.log == nil {
		o.log = nopRecorder{}
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	o.st = newSessionState(gesture.NewTracker(opts.SuccessCooldown, opts.AutoFeedback))
	o.silence = silence.New(opts.SilenceBuffer, func(gen uint64) {
		o.post(func() { o.onQuiet(gen) })
	})
	return o
}

func (o *Orchestrator) ID() string { return o.id }

// Outbound is the stream of messages for the client. It is never closed;
// readers stop when their own context ends.
func (o *Orchestrator) Outbound() <-chan types.Outbound { return o.out }

// Done is closed when Run returns.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Submit queues one raw inbound JSON message. It blocks while the loop is
// saturated and returns false once the session has ended.
func (o *Orchestrator) Submit(raw []byte) bool {
	select {
	case o.inbound <- raw:
		return true
	case <-o.done:
		return false
	}
}

// post runs fn on the loop goroutine.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.events <- fn:
	case <-o.done:
	}
}

// Run processes events until ctx ends. It greets the user and starts the
// recognizer first.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	gaugeSessions.Inc()
	defer func() {
		o.shutdown()
		gaugeSessions.Dec()
		close(o.done)
	}()

	log.Printf("[tutor] session start sid=%s", o.id)
	o.safely("start", func() {
		o.welcome()
		o.startRecognizer()
	})

	for {
		select {
		case <-ctx.Done():
			log.Printf("[tutor] session end sid=%s", o.id)
			return ctx.Err()
		case raw := <-o.inbound:
			o.safely("inbound", func() { o.handleRaw(raw) })
		case t, ok := <-o.transcripts:
			if !ok {
				log.Printf("[tutor] recognizer closed sid=%s", o.id)
				o.transcripts = nil
				o.listening = false
				continue
			}
			o.safely("transcript", func() { o.onTranscript(t) })
		case fn := <-o.events:
			o.safely("internal", fn)
		}
	}
}

// safely runs one handler; a panic drops that event and the loop continues.
func (o *Orchestrator) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metricHandlerPanics.Inc()
			log.Printf("[tutor] recovered panic sid=%s handler=%s: %v\n%s", o.id, what, r, debug.Stack())
		}
	}()
	fn()
}

func (o *Orchestrator) shutdown() {
	o.stopQuizTimers()
	o.silence.Reset()
	if o.cancelGen != nil {
		o.cancelGen()
	}
	o.floor.Interrupt("session_end")
	o.stopRecognizer()
}

func (o *Orchestrator) handleRaw(raw []byte) {
	var env types.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		o.emitError("bad_json", "Invalid JSON format")
		return
	}
	switch env.Type {
	case types.InHandState:
		var m types.HandStateMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			o.emitError("bad_message", "invalid hand_state: "+err.Error())
			return
		}
		o.onHandState(m.Data)
	case types.InTranscript:
		var m types.TranscriptMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			o.emitError("bad_message", "invalid transcript: "+err.Error())
			return
		}
		o.onTranscript(types.Transcript{Text: m.Text, Final: m.IsFinal})
	case types.InAudioChunk:
		var m types.AudioChunkMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			o.emitError("bad_message", "invalid audio_chunk: "+err.Error())
			return
		}
		o.onAudio(m.Data)
	case types.InClientControl:
		var m types.ClientControlMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			o.emitError("bad_message", "invalid client_control: "+err.Error())
			return
		}
		o.onControl(m.Action)
	default:
		log.Printf("[tutor] unknown message type sid=%s type=%q", o.id, env.Type)
		o.emitError("unknown_type", fmt.Sprintf("unknown message type %q", env.Type))
	}
}

func (o *Orchestrator) onAudio(data string) {
	if !o.listening {
		return
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		o.emitError("bad_audio", "audio_chunk data is not base64")
		return
	}
	if !o.rec.Send(b) {
		log.Printf("[tutor] audio dropped sid=%s bytes=%d", o.id, len(b))
	}
}

func (o *Orchestrator) onControl(action string) {
	switch action {
	case "start":
		o.reset("client_start")
		o.welcome()
		o.startRecognizer()
	case "stop":
		o.reset("client_stop")
		o.stopRecognizer()
		o.pushUI()
	case "toggle_captions":
		o.st.Captions = !o.st.Captions
		log.Printf("[tutor] captions sid=%s on=%v", o.id, o.st.Captions)
	default:
		o.emitError("bad_action", fmt.Sprintf("unknown control action %q", action))
	}
}

func (o *Orchestrator) welcome() {
	o.say(welcomeLine)
	o.pushUI()
}

func (o *Orchestrator) startRecognizer() {
	if o.listening {
		return
	}
	ch, err := o.rec.Start(o.ctx)
	if err != nil {
		log.Printf("[tutor] recognizer unavailable sid=%s: %v", o.id, err)
		o.emitError("asr_unavailable", "voice input unavailable")
		return
	}
	o.transcripts = ch
	o.listening = ch != nil
}

func (o *Orchestrator) stopRecognizer() {
	if !o.listening {
		return
	}
	o.rec.Stop()
	o.transcripts = nil
	o.listening = false
}

// onHandState folds one frame into the session and drives teaching feedback.
func (o *Orchestrator) onHandState(f types.HandFrame) {
	now := time.Now()
	var obs gesture.Observation
	switch {
	case f.Label != "":
		obs = gesture.NewObservation(f.Label, f.Confidence, now)
	case f.Features != nil:
		obs = o.clf.Classify(*f.Features, now)
	default:
		obs = gesture.NewObservation("", 0, now)
	}
	o.st.LastObs = obs

	if o.st.Mode == ModeTeach {
		switch o.st.Tracker.Observe(obs, now, o.floor.Busy(now)) {
		case gesture.Success:
			o.onSuccess()
		case gesture.Struggle:
			metricStruggle.Inc()
			o.say(fmt.Sprintf(o.pick(struggleLines), instructionFor(o.st.Target)))
		}
	}
	o.pushUI()
}

func (o *Orchestrator) onSuccess() {
	metricSuccesses.Inc()
	t := o.st.Tracker
	if !t.Mastered() {
		o.say(fmt.Sprintf(o.pick(successLines), o.st.Target) +
			fmt.Sprintf(" That's %d of %d.", t.Progress(), gesture.MasteryGoal))
		return
	}
	o.st.Streak++
	metricMasteries.Inc()
	log.Printf("[tutor] mastered sid=%s target=%s streak=%d", o.id, o.st.Target, o.st.Streak)
	o.record("mastery", map[string]any{"target": o.st.Target, "streak": o.st.Streak})
	o.say(masteredLine(o.st.Target, o.st.Streak))
}

// onTranscript handles recognizer and client transcript events alike.
func (o *Orchestrator) onTranscript(t types.Transcript) {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return
	}
	if d := o.floor.OnTranscript(t.Final, time.Now()); d.ShouldStop {
		metricBargeIn.Inc()
		o.stopPlayback(d)
	}
	if t.Final {
		o.emit(types.Outbound{Type: types.OutASRFinal, Text: text})
		o.silence.Add(text)
		return
	}
	if o.st.Captions {
		o.emit(types.Outbound{Type: types.OutASRPartial, Text: text})
	}
}

// onQuiet runs when the silence window closes after the last final fragment.
func (o *Orchestrator) onQuiet(gen uint64) {
	text, ok := o.silence.Flush(gen)
	if !ok {
		return
	}
	o.floor.OnUtteranceComplete()
	o.handleUtterance(text)
	o.drainSpeech()
}

// reset returns the session to idle without speaking.
func (o *Orchestrator) reset(reason string) {
	if d := o.floor.Interrupt(reason); d.ShouldStop {
		o.stopPlayback(d)
	}
	o.speechQ = nil
	if o.cancelGen != nil {
		o.cancelGen()
		o.cancelGen = nil
	}
	if o.st.Quiz != nil {
		o.st.Quiz.Stop()
		o.st.Quiz = nil
	}
	o.stopQuizTimers()
	o.st.Target = ""
	o.st.Tracker.SetTarget("", time.Now())
	o.setMode(ModeIdle)
}

func (o *Orchestrator) setMode(to Mode) {
	from := o.st.Mode
	if from == to {
		return
	}
	metricModeTransitions.WithLabelValues(string(from), string(to)).Inc()
	log.Printf("[tutor] mode sid=%s %s -> %s", o.id, from, to)
	o.st.Mode = to
}

func (o *Orchestrator) record(typ string, payload map[string]any) {
	o.log.AppendEvent(o.id, typ, payload)
}

// emit queues a message for the client. Safe from any goroutine started
// after Run.
func (o *Orchestrator) emit(m types.Outbound) {
	if m.Timestamp == 0 {
		m.Timestamp = types.NowMs()
	}
	select {
	case o.out <- m:
	case <-o.ctx.Done():
	}
}

func (o *Orchestrator) emitError(code, msg string) {
	o.emit(types.Outbound{Type: types.OutError, Code: code, Message: msg})
}

func (o *Orchestrator) pushUI() {
	o.emit(types.Outbound{Type: types.OutUIState, UIState: o.uiState()})
}

func (o *Orchestrator) uiState() *types.UIState {
	t := o.st.Tracker
	ui := &types.UIState{
		Mode:             string(o.st.Mode),
		TargetSign:       o.st.Target,
		Prediction:       o.st.LastObs.Label,
		Confidence:       o.st.LastObs.Confidence,
		Streak:           o.st.Streak,
		TeachingProgress: t.Progress(),
		Mastered:         o.st.Mode == ModeTeach && t.Mastered(),
	}
	if ui.Mastered {
		ui.Suggestion = "Say next for a new letter"
	}
	if q := o.st.Quiz; q != nil && q.Active {
		sym, _ := q.Current()
		ui.Quiz = &types.QuizUI{
			Index:     q.Cursor + 1,
			Total:     len(q.Sequence),
			Symbol:    sym,
			Countdown: o.countdown,
			Attempt:   q.AttemptInCursor + 1,
			MaxTries:  q.MaxAttempts(),
			Score:     len(q.Passed),
		}
	}
	if r := o.st.Results; r != nil {
		ui.QuizResults = &types.QuizResult{
			Passed:   r.Passed,
			Graded:   r.Graded,
			Total:    r.Total,
			Percent:  r.Percent,
			Missed:   r.Missed,
			Attempts: r.Attempts,
			Complete: r.Complete,
		}
	}
	return ui
}
