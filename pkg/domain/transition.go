package domain

// Guard decides whether a transition applies. It must be pure.
type Guard func(ctx Context, ev Event) bool

// Update computes a partial context update from the old context and the event.
type Update func(ctx Context, ev Event) Patch

// Transition is one guarded edge of a state's transition list.
// An empty Target makes the transition internal: only the update runs,
// no state is exited or entered.
type Transition struct {
	Target string `json:"target,omitempty"`
	Guard  Guard  `json:"-"`
	Update Update `json:"-"`

	// Reset restores the context to its initial values before Update runs.
	Reset bool `json:"reset,omitempty"`

	// Label describes the guard for graphs and logs.
	Label string `json:"label,omitempty"`
}

// Allows evaluates the guard; a nil guard always passes.
func (t Transition) Allows(ctx Context, ev Event) bool {
	return t.Guard == nil || t.Guard(ctx, ev)
}

// Internal reports whether the transition keeps the current configuration.
func (t Transition) Internal() bool {
	return t.Target == ""
}
