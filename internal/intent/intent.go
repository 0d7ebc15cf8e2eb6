// Package intent is the fast keyword classifier consulted before the
// generative responder.
package intent

import (
	"regexp"
	"strings"
)

type Kind string

const (
	Teach    Kind = "teach"
	Quiz     Kind = "quiz"
	Stop     Kind = "stop"
	Next     Kind = "next"
	Check    Kind = "check"
	Yes      Kind = "yes"
	No       Kind = "no"
	Greeting Kind = "greeting"
	Repeat   Kind = "repeat"
	Help     Kind = "help"
	Unknown  Kind = "unknown"
)

// Intent is a classified utterance. Target is set only for Teach and may be
// empty when no letter was named.
type Intent struct {
	Kind   Kind
	Target string
}

type rule struct {
	kind Kind
	re   *regexp.Regexp
}

// Order is precedence: the first matching rule wins. Stop is first so it
// always cuts through whatever else the utterance contains.
var rules = []rule{
	{Stop, regexp.MustCompile(`\b(stop|quit|exit|cancel|end (the )?(quiz|lesson|session)|that'?s enough|i'?m done|enough)\b`)},
	{Teach, regexp.MustCompile(`\b(teach|show me|learn|practice|how (do i|to) sign)\b`)},
	{Quiz, regexp.MustCompile(`\b(quiz|test me|exam)\b`)},
	{Next, regexp.MustCompile(`\b(next|another (one|letter)|move on|skip)\b`)},
	{Check, regexp.MustCompile(`\b(check|how am i doing|is (this|that) (right|correct)|am i (right|doing it right)|how'?s (this|that))\b`)},
	{Yes, regexp.MustCompile(`^(yes|yeah|yep|yup|sure|ok(ay)?|alright|let'?s go|ready)\b`)},
	{No, regexp.MustCompile(`^(no|nope|nah|not yet|not really)\b`)},
	{Greeting, regexp.MustCompile(`^(hi|hello|hey|good (morning|afternoon|evening))\b`)},
	{Repeat, regexp.MustCompile(`\b(repeat|say (that|it) again|again|what did you say|pardon)\b`)},
	{Help, regexp.MustCompile(`\b(help|what can (you|i) do|how does this work)\b`)},
}

var (
	punct     = regexp.MustCompile(`[^a-z0-9' ]+`)
	punctCase = regexp.MustCompile(`[^A-Za-z0-9' ]+`)
)

// Words that may follow a bare "a" or "i" when it names a letter, as in
// "teach me A please" or "teach me i now".
var afterLetter = map[string]bool{
	"please": true, "now": true, "today": true, "again": true, "first": true,
	"next": true, "then": true, "thanks": true, "thank": true, "too": true,
	"instead": true, "and": true, "or": true,
}

// Spoken names a recognizer may produce for a letter.
var letterNames = map[string]string{
	"ay": "A", "bee": "B", "be": "B", "see": "C", "sea": "C", "cee": "C",
	"dee": "D", "ee": "E", "eff": "F", "gee": "G", "aitch": "H", "eye": "I",
	"jay": "J", "kay": "K", "el": "L", "ell": "L", "em": "M", "en": "N",
	"oh": "O", "pee": "P", "cue": "Q", "queue": "Q", "are": "R", "ar": "R",
	"ess": "S", "tee": "T", "tea": "T", "you": "U", "vee": "V",
	"double": "W", "ex": "X", "why": "Y", "zee": "Z", "zed": "Z",
}

// Parse classifies one aggregated utterance.
func Parse(text string) Intent {
	norm := normalize(text)
	if norm == "" {
		return Intent{Kind: Unknown}
	}
	for _, r := range rules {
		if !r.re.MatchString(norm) {
			continue
		}
		if r.kind == Teach {
			return Intent{Kind: Teach, Target: letterAfterTeach(strings.Fields(norm), casedWords(text))}
		}
		return Intent{Kind: r.kind}
	}
	return Intent{Kind: Unknown}
}

// IsStop reports whether text contains a stop synonym.
func IsStop(text string) bool {
	return rules[0].re.MatchString(normalize(text))
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, "’", "'")
	s = punct.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// casedWords splits text like normalize but keeps the original casing, so
// the result lines up word for word with the normalized form.
func casedWords(text string) []string {
	s := strings.ReplaceAll(strings.TrimSpace(text), "’", "'")
	return strings.Fields(punctCase.ReplaceAllString(s, " "))
}

// letterAfterTeach finds the letter named after the teach verb. A bare "a"
// or "i" is ambiguous with the article and pronoun: it counts as a letter
// when the recognizer capitalized it ("A"), when it follows "letter", ends
// the utterance, or is followed by a word like "please". So "teach me a
// letter" is not teach(A).
func letterAfterTeach(words, cased []string) string {
	start := 0
	for i, w := range words {
		if w == "teach" || w == "learn" || w == "practice" || w == "show" || w == "sign" {
			start = i + 1
			break
		}
	}
	for i := start; i < len(words); i++ {
		w := words[i]
		prevLetter := i > 0 && words[i-1] == "letter"
		last := i == len(words)-1
		bare := prevLetter || last || afterLetter[words[i+1]]
		switch {
		case w == "a":
			if bare || (len(cased) == len(words) && cased[i] == "A") {
				return "A"
			}
		case w == "i":
			if bare {
				return "I"
			}
		case len(w) == 1 && w[0] >= 'a' && w[0] <= 'z':
			return strings.ToUpper(w)
		case w == "double" && i+1 < len(words) && (words[i+1] == "you" || words[i+1] == "u"):
			return "W"
		case prevLetter || last:
			if l, ok := letterNames[w]; ok {
				return l
			}
		}
	}
	return ""
}
