package tutor

import (
	"fmt"
	"strings"

	"signconnect/tutor/internal/gesture"
)

// rotation is the lesson order used by "next".
var rotation = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
}

var instructions = map[string]string{
	"A": "Make a fist with your thumb resting against the side of your index finger.",
	"B": "Hold your fingers straight up and together, with your thumb folded across your palm.",
	"C": "Curve your fingers and thumb into the shape of the letter C.",
	"D": "Point your index finger up and touch your thumb to your other fingertips to make a circle.",
	"E": "Curl your fingertips down to touch your thumb, which is tucked under them.",
	"F": "Touch your index finger to your thumb and hold your other three fingers up and spread.",
	"G": "Point your index finger and thumb sideways, parallel to each other.",
	"H": "Point your index and middle fingers sideways, together, with your thumb tucked.",
	"I": "Make a fist and raise just your pinky finger.",
	"J": "Raise your pinky and trace a J shape in the air.",
	"K": "Raise your index and middle fingers in a V with your thumb touching between them.",
	"L": "Extend your thumb and index finger to form an L.",
	"M": "Fold your thumb under your first three fingers.",
	"N": "Fold your thumb under your first two fingers.",
	"O": "Curve all your fingers to meet your thumb in an O shape.",
	"P": "Make a K shape and point it downward.",
	"Q": "Make a G shape and point it downward.",
	"R": "Cross your middle finger over your index finger.",
	"S": "Make a fist with your thumb wrapped across the front of your fingers.",
	"T": "Make a fist with your thumb tucked between your index and middle fingers.",
	"U": "Hold your index and middle fingers up and together.",
	"V": "Hold your index and middle fingers up and spread apart in a V.",
	"W": "Hold your index, middle and ring fingers up and spread.",
	"X": "Make a fist and crook your index finger like a hook.",
	"Y": "Extend your thumb and pinky while curling the other fingers.",
	"Z": "Point your index finger and trace a Z in the air.",
}

var (
	successLines = []string{
		"Nice! That's a good %s.",
		"Great job, that %s looks right.",
		"Yes! That's %s.",
		"Well done, that's a clear %s.",
	}
	struggleLines = []string{
		"Keep trying. %s",
		"You're close. %s",
		"Let's try again. %s",
	}
	quizPassLines = []string{
		"Correct!",
		"That's right!",
		"Nailed it!",
	}
	greetingLines = []string{
		"Hi there! Say teach me and a letter, or quiz me, whenever you're ready.",
		"Hello! Want to learn a letter or try a quiz?",
	}
)

const (
	welcomeLine  = "Hello! I'm your ASL tutor. Say teach me A to learn a letter, or quiz me to test your skills!"
	helpLine     = "You can say teach me and a letter, next for another letter, check to get feedback on your hand, quiz me to test yourself, or stop at any time."
	askWhichLine = "Which letter would you like to learn? Say something like teach me B."
	stopLine     = "Okay, we'll stop here. Say teach me and a letter, or quiz me, whenever you're ready."
	fallbackLine = "Sorry, I didn't catch that. Say help to hear what I can do."
	nothingYet   = "I haven't said anything yet. Say help to hear what I can do."
	quizRules    = "Quiz time! I'll show you %d letters. For each one I'll count down from three, then hold up the sign. You get %d tries per letter. Say stop to end early."
)

func instructionFor(target string) string {
	if s, ok := instructions[target]; ok {
		return s
	}
	return "Watch your hand shape closely and try to match it."
}

func nextInRotation(current string) string {
	for i, s := range rotation {
		if s == current {
			return rotation[(i+1)%len(rotation)]
		}
	}
	return rotation[0]
}

func (o *Orchestrator) pick(lines []string) string {
	return lines[o.rng.Intn(len(lines))]
}

func teachLine(target string) string {
	return fmt.Sprintf("Let's learn %s. %s", target, instructionFor(target))
}

func masteredLine(target string, streak int) string {
	s := fmt.Sprintf("You've mastered %s! ", target)
	if streak > 1 {
		s += fmt.Sprintf("That's %d letters in a row. ", streak)
	}
	return s + "Say next for a new letter, or quiz me to test yourself."
}

// checkLine describes the latest observation against the target without
// touching any counters.
func checkLine(target string, obs gesture.Observation) string {
	switch {
	case target == "":
		return "We're not practicing a letter right now. Say teach me and a letter to start."
	case !obs.HasHand():
		return fmt.Sprintf("I can't see your hand. Hold it up in front of the camera and make %s.", target)
	case obs.Matches(target):
		return fmt.Sprintf("That's a perfect %s! Hold it steady.", target)
	case obs.Label == target:
		return fmt.Sprintf("That looks like %s. Try to hold it a bit more clearly.", target)
	default:
		return fmt.Sprintf("I see %s, but you're going for %s. %s", obs.Label, target, instructionFor(target))
	}
}

func retryLine(observed string, remaining int) string {
	var b strings.Builder
	b.WriteString("Not quite")
	if observed != "" {
		fmt.Fprintf(&b, ", that looked like %s", observed)
	}
	b.WriteString(". ")
	if remaining == 1 {
		b.WriteString("One more try.")
	} else {
		fmt.Fprintf(&b, "%d tries left.", remaining)
	}
	return b.String()
}

func movingOnLine(symbol string) string {
	return fmt.Sprintf("That one was %s. Let's move on.", symbol)
}
