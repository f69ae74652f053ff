package domain

import "time"

// CommandType names a request sent to the speech collaborator.
type CommandType string

const (
	CommandPrepare CommandType = "PREPARE"
	CommandSpeak   CommandType = "SPEAK"
	CommandListen  CommandType = "LISTEN"
)

// VoiceOptions configures speech synthesis.
type VoiceOptions struct {
	Voice  string `json:"voice,omitempty" yaml:"voice,omitempty" mapstructure:"voice"`
	Locale string `json:"locale,omitempty" yaml:"locale,omitempty" mapstructure:"locale"`
}

// ListenOptions configures a recognition request.
type ListenOptions struct {
	NLU             bool          `json:"nlu,omitempty" yaml:"nlu,omitempty" mapstructure:"nlu"`
	Locale          string        `json:"locale,omitempty" yaml:"locale,omitempty" mapstructure:"locale"`
	NoInputTimeout  time.Duration `json:"noinput_timeout,omitempty" yaml:"noinput_timeout,omitempty" mapstructure:"noinput_timeout"`
	CompleteTimeout time.Duration `json:"complete_timeout,omitempty" yaml:"complete_timeout,omitempty" mapstructure:"complete_timeout"`
}

// Command is a side-effect the machine asks the speech collaborator to perform.
type Command struct {
	Type      CommandType    `json:"type"`
	TurnID    string         `json:"turn_id"`
	SessionID string         `json:"session_id,omitempty"`
	StateID   string         `json:"state_id,omitempty"`
	Utterance string         `json:"utterance,omitempty"`
	Voice     *VoiceOptions  `json:"voice,omitempty"`
	Listen    *ListenOptions `json:"listen,omitempty"`
}
