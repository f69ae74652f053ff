package domain

import "time"

// Status describes the lifecycle of a running machine.
type Status string

const (
	StatusIdle    Status = "idle"    // Not started yet
	StatusActive  Status = "active"  // Normal operation
	StatusDone    Status = "done"    // Top-level final state reached
	StatusStopped Status = "stopped" // Stopped by the host
)

// TurnPhase tells observers what the machine is waiting for.
type TurnPhase string

const (
	TurnNone      TurnPhase = ""
	TurnPreparing TurnPhase = "preparing"
	TurnSpeaking  TurnPhase = "speaking"
	TurnListening TurnPhase = "listening"
)

// Snapshot is a read-only view of a machine after a macrostep.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	FlowID    string    `json:"flow_id"`
	Sequence  uint64    `json:"sequence"`
	Status    Status    `json:"status"`
	Value     string    `json:"value"`
	Path      []string  `json:"path"`
	Context   Context   `json:"context"`
	Turn      TurnPhase `json:"turn,omitempty"`
	TurnID    string    `json:"turn_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches reports whether the state is part of the active configuration.
func (s Snapshot) Matches(stateID string) bool {
	for _, id := range s.Path {
		if id == stateID {
			return true
		}
	}
	return false
}
