package domain

import "time"

// NodeKind defines how a state participates in the hierarchy.
type NodeKind string

const (
	// NodeAtomic is a leaf state.
	NodeAtomic NodeKind = "atomic"
	// NodeCompound contains a nested machine with its own initial child.
	NodeCompound NodeKind = "compound"
	// NodeHistory is a pseudo-state resolving to the last active child of its parent.
	NodeHistory NodeKind = "history"
	// NodeFinal is a sink state without outgoing transitions.
	NodeFinal NodeKind = "final"
)

// HistoryMode controls what a history state remembers.
type HistoryMode string

const (
	HistoryNone    HistoryMode = ""
	HistoryShallow HistoryMode = "shallow"
	HistoryDeep    HistoryMode = "deep"
)

// EntryKind selects the collaborator request issued when a state is entered.
type EntryKind string

const (
	EntryNone    EntryKind = ""
	EntryPrepare EntryKind = "prepare"
	EntrySpeak   EntryKind = "speak"
	EntryListen  EntryKind = "listen"
)

// Entry is the action performed on state entry.
type Entry struct {
	Kind EntryKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Text is the static utterance for speak entries.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	// Say computes the utterance from the context. It wins over Text.
	Say func(Context) string `json:"-" yaml:"-"`

	Voice  VoiceOptions  `json:"voice,omitempty" yaml:"voice,omitempty"`
	Listen ListenOptions `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// Utterance renders the text to speak for the given context.
func (e Entry) Utterance(ctx Context) string {
	if e.Say != nil {
		return e.Say(ctx)
	}
	return e.Text
}

// Node is a state in the hierarchical graph.
type Node struct {
	ID          string   `json:"id"`
	Kind        NodeKind `json:"kind"`
	Description string   `json:"description,omitempty"`

	// Initial names the child entered by default (compound only).
	Initial string `json:"initial,omitempty"`
	// History marks a compound as resuming its last child on default entry,
	// or sets the mode of a history pseudo-state.
	History HistoryMode `json:"history,omitempty"`
	// Default is the fallback target of a history pseudo-state with no record.
	Default string `json:"default,omitempty"`

	Entry Entry `json:"entry"`

	// On maps event types to ordered transition lists.
	On map[EventType][]Transition `json:"on,omitempty"`
	// Always lists eventless transitions checked after every macrostep.
	Always []Transition `json:"always,omitempty"`
	// After lists transitions fired by host-clock timers armed on entry.
	After []DelayedTransition `json:"after,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// IsCompound reports whether the node has nested states.
func (n *Node) IsCompound() bool {
	return n.Kind == NodeCompound
}

// Child returns the direct child with the given ID.
func (n *Node) Child(id string) *Node {
	for _, c := range n.Children {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// DelayedTransition fires after the node has been active for Delay.
type DelayedTransition struct {
	Delay time.Duration `json:"delay"`
	Transition
}
