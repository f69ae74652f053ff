package runtime

import "fmt"

// DefaultMaxSteps bounds the eventless transitions taken in a single macrostep.
const DefaultMaxSteps = 100

// LoopError is returned when eventless transitions do not settle.
type LoopError struct {
	StateID string
	Steps   int
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("eventless transitions did not settle after %d steps (last state '%s')", e.Steps, e.StateID)
}
