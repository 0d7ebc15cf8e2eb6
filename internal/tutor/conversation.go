package tutor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"signconnect/tutor/internal/intent"
)

// handleUtterance routes one aggregated utterance.
func (o *Orchestrator) handleUtterance(text string) {
	o.st.remember("user", text)

	// While a quiz is running only a stop synonym gets through.
	if o.st.quizActive() {
		if intent.IsStop(text) {
			metricIntents.WithLabelValues(string(intent.Stop)).Inc()
			o.endQuizEarly()
			return
		}
		log.Printf("[quiz] ignoring speech sid=%s text=%q", o.id, text)
		return
	}

	in := intent.Parse(text)
	metricIntents.WithLabelValues(string(in.Kind)).Inc()
	log.Printf("[tutor] intent sid=%s kind=%s target=%q text=%q", o.id, in.Kind, in.Target, text)

	switch in.Kind {
	case intent.Teach:
		if in.Target == "" {
			o.say(askWhichLine)
			return
		}
		o.startTeaching(in.Target)
	case intent.Quiz:
		o.startQuiz()
	case intent.Stop:
		o.reset("stop_command")
		o.say(stopLine)
		o.pushUI()
	case intent.Next:
		if o.st.Mode != ModeTeach {
			o.respond(text)
			return
		}
		o.startTeaching(nextInRotation(o.st.Target))
	case intent.Check:
		o.say(checkLine(o.st.Target, o.st.LastObs))
	case intent.Yes:
		if o.st.Mode == ModeTeach && o.st.Tracker.Mastered() {
			o.startTeaching(nextInRotation(o.st.Target))
			return
		}
		o.respond(text)
	case intent.Greeting:
		o.say(o.pick(greetingLines))
	case intent.Repeat:
		if o.st.LastSpoken == "" {
			o.say(nothingYet)
			return
		}
		o.say(o.st.LastSpoken)
	case intent.Help:
		o.say(helpLine)
	default:
		o.respond(text)
	}
}

func (o *Orchestrator) startTeaching(target string) {
	o.st.Results = nil
	o.st.Target = target
	o.st.Tracker.SetTarget(target, time.Now())
	o.setMode(ModeTeach)
	o.say(teachLine(target))
	o.pushUI()
}

// respond asks the generator for a reply off the loop. Only the most recent
// request may speak; an older reply arriving late is dropped.
func (o *Orchestrator) respond(text string) {
	if o.cancelGen != nil {
		o.cancelGen()
	}
	ctx, cancel := context.WithTimeout(o.ctx, o.opts.GenerateTimeout)
	o.cancelGen = cancel
	o.genSeq++
	seq := o.genSeq
	prompt := o.prompt(text)

	go func() {
		defer cancel()
		start := time.Now()
		reply, err := o.gen.Generate(ctx, prompt)
		if err != nil {
			log.Printf("[llm] generate failed sid=%s after %dms: %v", o.id, time.Since(start).Milliseconds(), err)
		}
		o.post(func() { o.onReply(seq, reply) })
	}()
}

func (o *Orchestrator) onReply(seq uint64, reply string) {
	if seq != o.genSeq {
		return
	}
	o.cancelGen = nil
	if o.st.quizActive() {
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = fallbackLine
	}
	o.say(reply)
}

// prompt packs the session context ahead of the user's words.
func (o *Orchestrator) prompt(text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", o.st.Mode)
	if o.st.Target != "" {
		fmt.Fprintf(&b, "Target letter: %s\n", o.st.Target)
		fmt.Fprintf(&b, "Teaching progress: %d/3\n", o.st.Tracker.Progress())
	}
	fmt.Fprintf(&b, "Streak: %d\n", o.st.Streak)
	if obs := o.st.LastObs; obs.HasHand() {
		fmt.Fprintf(&b, "Last seen sign: %s (confidence %.2f)\n", obs.Label, obs.Confidence)
	} else {
		b.WriteString("Last seen sign: none\n")
	}
	if h := o.st.History(); len(h) > 1 {
		b.WriteString("Recent conversation:\n")
		// The last turn is the current utterance, written below.
		for _, t := range h[:len(h)-1] {
			fmt.Fprintf(&b, "  %s: %s\n", t.Role, t.Text)
		}
	}
	fmt.Fprintf(&b, "User said: %s", text)
	return b.String()
}
