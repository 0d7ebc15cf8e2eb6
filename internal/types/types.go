package types

import "time"

// Inbound message types sent by the browser client.
const (
	InHandState     = "hand_state"
	InTranscript    = "transcript"
	InAudioChunk    = "audio_chunk"
	InClientControl = "client_control"
)

// Outbound message types sent to the browser client.
const (
	OutUIState      = "ui_state"
	OutASRPartial   = "asr_partial"
	OutASRFinal     = "asr_final"
	OutAgentText    = "agent_text_final"
	OutAudioChunk   = "tts_audio_chunk"
	OutStopPlayback = "stop_playback"
	OutError        = "error"
)

// Envelope is the raw inbound frame; Type selects how the rest is decoded.
type Envelope struct {
	Type string `json:"type"`
}

type HandStateMessage struct {
	Type string    `json:"type"`
	Data HandFrame `json:"data"`
}

type HandFrame struct {
	Label      string        `json:"label,omitempty"`
	Confidence float64       `json:"confidence"`
	Timestamp  int64         `json:"timestamp,omitempty"`
	Features   *HandFeatures `json:"features,omitempty"`
}

type FingerCurls struct {
	Thumb  float64 `json:"thumb"`
	Index  float64 `json:"index"`
	Middle float64 `json:"middle"`
	Ring   float64 `json:"ring"`
	Pinky  float64 `json:"pinky"`
}

// HandFeatures are the per-frame hand descriptors computed client side.
// ThumbPosition is one of "extended", "across", "tucked".
type HandFeatures struct {
	FingerCurls   FingerCurls `json:"fingerCurls"`
	ThumbPosition string      `json:"thumbPosition"`
	FingersSpread bool        `json:"fingersSpread"`
	PalmFacing    string      `json:"palmFacing,omitempty"`
}

type TranscriptMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

type AudioChunkMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type ClientControlMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// Outbound is a single server -> client message. Only the fields relevant to
// Type are populated.
type Outbound struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	Text    string `json:"text,omitempty"`
	Data    string `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`

	*UIState
}

// UIState mirrors the session for rendering.
type UIState struct {
	Mode             string      `json:"mode"`
	TargetSign       string      `json:"targetSign,omitempty"`
	Prediction       string      `json:"prediction,omitempty"`
	Confidence       float64     `json:"confidence"`
	Streak           int         `json:"streak"`
	TeachingProgress int         `json:"teachingProgress"`
	Mastered         bool        `json:"mastered,omitempty"`
	Suggestion       string      `json:"suggestion,omitempty"`
	Quiz             *QuizUI     `json:"quiz,omitempty"`
	QuizResults      *QuizResult `json:"quizResults,omitempty"`
}

type QuizUI struct {
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Symbol    string `json:"symbol"`
	Countdown int    `json:"countdown"`
	Attempt   int    `json:"attempt"`
	MaxTries  int    `json:"maxAttempts"`
	Score     int    `json:"score"`
}

type QuizResult struct {
	Passed   int               `json:"passed"`
	Graded   int               `json:"graded"`
	Total    int               `json:"total"`
	Percent  int               `json:"percent"`
	Missed   []string          `json:"missed"`
	Attempts map[string][]bool `json:"attempts"`
	Complete bool              `json:"complete"`
}

// Event is one entry of a session's in-memory event log.
type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Session is the registry record for one tutoring connection.
type Session struct {
	ID        string     `json:"session_id"`
	CreatedAt time.Time  `json:"created_at"`
	Status    string     `json:"status"`
	Connected bool       `json:"connected"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func NowMs() int64 { return time.Now().UnixMilli() }

// Transcript is one recognizer result.
type Transcript struct {
	Text  string
	Final bool
}
