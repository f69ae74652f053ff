package domain

import (
	"context"
	"time"
)

// Event is a single input to the machine.
// Collaborator events may echo the TurnID of the command that caused them.
type Event struct {
	Type   EventType          `json:"type"`
	TurnID string             `json:"turn_id,omitempty"`
	Result *RecognitionResult `json:"result,omitempty"`
	Data   map[string]any     `json:"data,omitempty"`
}

// Recognised builds a RECOGNISED event for the given utterance.
func Recognised(utterance string) Event {
	return Event{Type: EventRecognised, Result: &RecognitionResult{Utterance: utterance}}
}

// HookType defines the category of a lifecycle notification.
type HookType string

const (
	HookStateEnter   HookType = "state_enter"
	HookStateExit    HookType = "state_exit"
	HookTransition   HookType = "transition"
	HookCommand      HookType = "command"
	HookCollaborator HookType = "collaborator_event"
	HookIgnored      HookType = "event_ignored"
)

// HookBase contains common fields for all lifecycle notifications.
type HookBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      HookType  `json:"type"`
	SessionID string    `json:"session_id"`
}

// StateEvent represents entry into or exit from a state.
type StateEvent struct {
	HookBase
	StateID string   `json:"state_id"`
	Kind    NodeKind `json:"kind"`
}

// TransitionEvent describes a transition taken by the machine.
type TransitionEvent struct {
	HookBase
	Event    EventType `json:"event"`
	Source   string    `json:"source"`
	Target   string    `json:"target,omitempty"`
	Label    string    `json:"label,omitempty"`
	Internal bool      `json:"internal,omitempty"`
}

// CommandEvent describes a command sent to the speech collaborator.
// Err is set when the collaborator rejected the command.
type CommandEvent struct {
	HookBase
	Command Command `json:"command"`
	Err     error   `json:"-"`
}

// CollaboratorEvent describes an accepted collaborator event, before dispatch.
type CollaboratorEvent struct {
	HookBase
	StateID string `json:"state_id"`
	Event   Event  `json:"event"`
}

// IgnoredEvent describes an event that produced no transition.
type IgnoredEvent struct {
	HookBase
	Event   EventType `json:"event"`
	StateID string    `json:"state_id"`
	Reason  string    `json:"reason"`
}

// Reasons reported by IgnoredEvent.
const (
	ReasonNoHandler = "no_handler"
	ReasonNoGuard   = "no_guard_matched"
	ReasonStale     = "stale_turn"
	ReasonDuplicate = "duplicate_terminal"
	ReasonDone      = "machine_done"
)

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the machine's processing goroutine and must not block.
type LifecycleHooks struct {
	OnStateEnter   func(context.Context, *StateEvent)
	OnStateExit    func(context.Context, *StateEvent)
	OnTransition   func(context.Context, *TransitionEvent)
	OnCommand      func(context.Context, *CommandEvent)
	OnCollaborator func(context.Context, *CollaboratorEvent)
	OnEventIgnored func(context.Context, *IgnoredEvent)
}

// ChainHooks combines several hook sets; each callback fans out in order.
func ChainHooks(all ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range all {
		h := h
		out.OnStateEnter = chain(out.OnStateEnter, h.OnStateEnter)
		out.OnStateExit = chain(out.OnStateExit, h.OnStateExit)
		out.OnTransition = chain(out.OnTransition, h.OnTransition)
		out.OnCommand = chain(out.OnCommand, h.OnCommand)
		out.OnCollaborator = chain(out.OnCollaborator, h.OnCollaborator)
		out.OnEventIgnored = chain(out.OnEventIgnored, h.OnEventIgnored)
	}
	return out
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
