package domain

import "time"

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerSystem Speaker = "system"
	SpeakerUser   Speaker = "user"
)

// Transcript line kinds.
const (
	TranscriptSpeak      = "speak"
	TranscriptRecognised = "recognised"
	TranscriptNoInput    = "noinput"
)

// TranscriptEntry is one line of the conversation audit log.
type TranscriptEntry struct {
	SessionID  string    `json:"session_id"`
	TurnID     string    `json:"turn_id,omitempty"`
	StateID    string    `json:"state_id,omitempty"`
	Speaker    Speaker   `json:"speaker"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text,omitempty"`
	Intent     string    `json:"intent,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	At         time.Time `json:"at"`
}
