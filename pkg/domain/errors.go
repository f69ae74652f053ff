package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session ID is not known to the manager.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session whose ID is taken.
	ErrSessionExists = errors.New("session already exists")

	// ErrNotStarted is returned when events are sent before Start.
	ErrNotStarted = errors.New("machine not started")

	// ErrMachineDone is returned when events are sent after a top-level final state.
	ErrMachineDone = errors.New("machine reached a final state")

	// ErrMachineStopped is returned when events are sent after Stop.
	ErrMachineStopped = errors.New("machine stopped")

	// ErrUnknownState is returned when a state ID does not exist in the definition.
	ErrUnknownState = errors.New("unknown state")
)

// DefinitionError reports a structural problem in a flow definition.
type DefinitionError struct {
	StateID string
	Reason  string
}

func (e *DefinitionError) Error() string {
	if e.StateID == "" {
		return fmt.Sprintf("invalid definition: %s", e.Reason)
	}
	return fmt.Sprintf("invalid definition: state '%s': %s", e.StateID, e.Reason)
}
