package tutor

import (
	"fmt"
	"log"
	"time"

	"signconnect/tutor/internal/quiz"
)

const (
	countdownFrom = 3
	speechPoll    = 50 * time.Millisecond
)

// startQuiz builds a fresh quiz and begins the announce/countdown/grade cycle.
func (o *Orchestrator) startQuiz() {
	o.stopQuizTimers()
	q := quiz.New(o.rng, o.opts.QuizLength, o.opts.QuizAttempts)
	o.st.Quiz = q
	o.st.Results = nil
	o.st.Tracker.SetTarget("", time.Now())
	o.setMode(ModeQuiz)
	log.Printf("[quiz] start sid=%s sequence=%v", o.id, q.Sequence)
	o.record("quiz_started", map[string]any{"sequence": append([]string(nil), q.Sequence...)})
	o.say(fmt.Sprintf(quizRules, len(q.Sequence), q.MaxAttempts()))
	o.announce()
}

// after schedules fn on the loop. Rescheduling or ending the quiz bumps
// quizGen so a timer that already fired is ignored.
func (o *Orchestrator) after(d time.Duration, fn func()) {
	if o.quizTimer != nil {
		o.quizTimer.Stop()
	}
	gen := o.quizGen
	o.quizTimer = time.AfterFunc(d, func() {
		o.post(func() {
			if gen != o.quizGen || !o.st.quizActive() {
				return
			}
			fn()
		})
	})
}

// afterSpeech is after, but also waits for queued system speech to finish so
// the countdown never starts under an announcement.
func (o *Orchestrator) afterSpeech(d time.Duration, fn func()) {
	o.after(d, func() {
		if o.floor.Active() != nil || len(o.speechQ) > 0 {
			o.afterSpeech(speechPoll, fn)
			return
		}
		fn()
	})
}

func (o *Orchestrator) stopQuizTimers() {
	o.quizGen++
	if o.quizTimer != nil {
		o.quizTimer.Stop()
		o.quizTimer = nil
	}
	o.countdown = 0
}

func (o *Orchestrator) announce() {
	q := o.st.Quiz
	sym, ok := q.Current()
	if !ok {
		return
	}
	o.st.Target = sym
	o.countdown = 0
	o.say(fmt.Sprintf("Letter %d of %d. Show me %s.", q.Cursor+1, len(q.Sequence), sym))
	o.pushUI()
	o.afterSpeech(o.opts.AnnouncePause, func() { o.tick(countdownFrom) })
}

func (o *Orchestrator) tick(n int) {
	if n == 0 {
		o.grade()
		return
	}
	o.countdown = n
	o.pushUI()
	o.after(o.opts.QuizTick, func() { o.tick(n - 1) })
}

// grade reads the single latest observation at countdown zero.
func (o *Orchestrator) grade() {
	q := o.st.Quiz
	o.countdown = 0
	out, err := q.Grade(o.st.LastObs)
	if err != nil {
		return
	}
	log.Printf("[quiz] graded sid=%s symbol=%s attempt=%d passed=%v observed=%q",
		o.id, out.Symbol, out.Attempt, out.Passed, out.Observed)

	switch {
	case out.Passed:
		o.say(o.pick(quizPassLines))
	case !out.Advanced:
		o.say(retryLine(out.Observed, out.Remaining))
		o.pushUI()
		o.afterSpeech(o.opts.ResultPause, func() { o.tick(countdownFrom) })
		return
	default:
		o.say(movingOnLine(out.Symbol))
	}

	if out.Finished {
		o.finishQuiz()
		return
	}
	o.pushUI()
	o.afterSpeech(o.opts.ResultPause, o.announce)
}

// endQuizEarly handles a stop synonym during an active quiz.
func (o *Orchestrator) endQuizEarly() {
	if d := o.floor.Interrupt("stop_command"); d.ShouldStop {
		o.stopPlayback(d)
	}
	o.st.Quiz.Stop()
	o.finishQuiz()
}

func (o *Orchestrator) finishQuiz() {
	q := o.st.Quiz
	o.stopQuizTimers()
	card := q.Score()
	o.st.Results = &card
	o.st.Quiz = nil
	o.st.Target = ""
	o.setMode(ModeIdle)

	outcome := "stopped"
	if card.Complete {
		outcome = "complete"
	}
	metricQuizFinished.WithLabelValues(outcome).Inc()
	if card.Graded > 0 {
		metricQuizScore.Observe(float64(card.Percent))
	}
	log.Printf("[quiz] finished sid=%s outcome=%s passed=%d graded=%d percent=%d missed=%v",
		o.id, outcome, card.Passed, card.Graded, card.Percent, card.Missed)
	o.record("quiz_finished", map[string]any{
		"outcome":  outcome,
		"passed":   card.Passed,
		"graded":   card.Graded,
		"total":    card.Total,
		"percent":  card.Percent,
		"missed":   card.Missed,
		"attempts": card.Attempts,
	})

	var summary string
	switch {
	case card.Graded == 0:
		summary = "Quiz stopped."
	case card.Complete:
		summary = fmt.Sprintf("Quiz complete! You got %d out of %d, that's %d percent.", card.Passed, card.Total, card.Percent)
	default:
		summary = fmt.Sprintf("Quiz stopped. You got %d out of %d graded letters, that's %d percent.", card.Passed, card.Graded, card.Percent)
	}
	o.say(summary + " " + quiz.Remark(card))
	o.pushUI()
}
