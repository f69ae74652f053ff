package domain

import "strings"

// EventType names an event the machine can react to.
type EventType string

// Collaborator and presentation events.
const (
	EventReady          EventType = "ASRTTS_READY"
	EventSpeakComplete  EventType = "SPEAK_COMPLETE"
	EventRecognised     EventType = "RECOGNISED"
	EventNoInput        EventType = "ASR_NOINPUT"
	EventListenComplete EventType = "LISTEN_COMPLETE"
	EventClick          EventType = "CLICK"
)

// Internal events raised by the machine itself.
const (
	// EventAfter fires when a delayed transition's timer elapses.
	EventAfter EventType = "after"

	donePrefix = "done.state."
)

// DoneEvent returns the event raised when a compound state reaches one of its final children.
func DoneEvent(stateID string) EventType {
	return EventType(donePrefix + stateID)
}

// IsDone reports whether the event signals completion of a compound state.
func (t EventType) IsDone() bool {
	return strings.HasPrefix(string(t), donePrefix)
}

// FromCollaborator reports whether the event belongs to the speech collaborator vocabulary.
func (t EventType) FromCollaborator() bool {
	switch t {
	case EventReady, EventSpeakComplete, EventRecognised, EventNoInput, EventListenComplete:
		return true
	}
	return false
}

// Terminal reports whether the event ends a listen turn with an outcome.
func (t EventType) Terminal() bool {
	return t == EventRecognised || t == EventNoInput
}

// Keys used in Event.Data for timer events.
const (
	KeyTimerState = "state"
	KeyTimerEntry = "entry"
	KeyTimerIndex = "index"
)
