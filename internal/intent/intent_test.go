package intent

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"teach me B", Intent{Kind: Teach, Target: "B"}},
		{"Teach me the letter bee.", Intent{Kind: Teach, Target: "B"}},
		{"can you teach me why", Intent{Kind: Teach, Target: "Y"}},
		{"how do I sign C?", Intent{Kind: Teach, Target: "C"}},
		{"teach me the letter a", Intent{Kind: Teach, Target: "A"}},
		{"teach me a", Intent{Kind: Teach, Target: "A"}},
		{"teach me a letter", Intent{Kind: Teach, Target: ""}},
		{"teach me A please", Intent{Kind: Teach, Target: "A"}},
		{"teach me a please", Intent{Kind: Teach, Target: "A"}},
		{"teach me I now", Intent{Kind: Teach, Target: "I"}},
		{"I'd like to learn A today", Intent{Kind: Teach, Target: "A"}},
		{"teach me B please", Intent{Kind: Teach, Target: "B"}},
		{"teach me a new sign", Intent{Kind: Teach, Target: ""}},
		{"teach me something", Intent{Kind: Teach, Target: ""}},
		{"teach me double you", Intent{Kind: Teach, Target: "W"}},
		{"quiz me", Intent{Kind: Quiz}},
		{"stop", Intent{Kind: Stop}},
		{"okay stop the quiz", Intent{Kind: Stop}},
		{"I'm done", Intent{Kind: Stop}},
		{"next one please", Intent{Kind: Next}},
		{"is this right?", Intent{Kind: Check}},
		{"check my hand", Intent{Kind: Check}},
		{"yeah", Intent{Kind: Yes}},
		{"Sure, let's keep going", Intent{Kind: Yes}},
		{"nope", Intent{Kind: No}},
		{"hello there", Intent{Kind: Greeting}},
		{"can you say that again", Intent{Kind: Repeat}},
		{"help", Intent{Kind: Help}},
		{"what is the weather like", Intent{Kind: Unknown}},
		{"   ", Intent{Kind: Unknown}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := Parse(tt.text)
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestStopTakesPrecedence(t *testing.T) {
	for _, text := range []string{"stop, teach me B", "quiz over, I want to quit", "next, no wait, cancel"} {
		if got := Parse(text); got.Kind != Stop {
			t.Errorf("Parse(%q) = %v, want stop", text, got.Kind)
		}
		if !IsStop(text) {
			t.Errorf("IsStop(%q) = false", text)
		}
	}
	if IsStop("teach me S") {
		t.Errorf("letter S is not a stop synonym")
	}
}
