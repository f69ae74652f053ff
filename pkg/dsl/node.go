package dsl

import (
	"time"

	"github.com/aretw0/parlance/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a state.
type NodeBuilder struct {
	node    *domain.Node
	parent  string
	builder *Builder

	// speak and listen point at the nodes carrying the speak/listen entry;
	// for a Question they are the generated children.
	speak  *domain.Node
	listen *domain.Node
}

// TransitionOption configures a transition.
type TransitionOption func(*domain.Transition)

// When sets the guard.
func When(g domain.Guard) TransitionOption {
	return func(t *domain.Transition) {
		t.Guard = g
	}
}

// Do sets the context update.
func Do(u domain.Update) TransitionOption {
	return func(t *domain.Transition) {
		t.Update = u
	}
}

// Restart resets the context to its initial values before the update runs.
func Restart() TransitionOption {
	return func(t *domain.Transition) {
		t.Reset = true
	}
}

// Label names the transition in graphs and logs.
func Label(s string) TransitionOption {
	return func(t *domain.Transition) {
		t.Label = s
	}
}

func transition(target string, opts []TransitionOption) domain.Transition {
	t := domain.Transition{Target: target}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// In nests the state inside a compound parent.
func (n *NodeBuilder) In(parent string) *NodeBuilder {
	n.parent = parent
	return n
}

// Describe sets a human-readable description.
func (n *NodeBuilder) Describe(s string) *NodeBuilder {
	n.node.Description = s
	return n
}

// On appends a transition for an event type. Declaration order is
// evaluation order. An empty target makes the transition internal.
func (n *NodeBuilder) On(ev domain.EventType, target string, opts ...TransitionOption) *NodeBuilder {
	if n.node.On == nil {
		n.node.On = make(map[domain.EventType][]domain.Transition)
	}
	n.node.On[ev] = append(n.node.On[ev], transition(target, opts))
	return n
}

// Stay appends an internal transition: the update runs, no state changes.
func (n *NodeBuilder) Stay(ev domain.EventType, opts ...TransitionOption) *NodeBuilder {
	return n.On(ev, "", opts...)
}

// Then continues to target once the utterance has been spoken.
func (n *NodeBuilder) Then(target string, opts ...TransitionOption) *NodeBuilder {
	return n.On(domain.EventSpeakComplete, target, opts...)
}

// OnDone continues to target when this compound reaches a final child.
func (n *NodeBuilder) OnDone(target string, opts ...TransitionOption) *NodeBuilder {
	return n.On(domain.DoneEvent(n.node.ID), target, opts...)
}

// Always appends an eventless transition.
func (n *NodeBuilder) Always(target string, opts ...TransitionOption) *NodeBuilder {
	n.node.Always = append(n.node.Always, transition(target, opts))
	return n
}

// After appends a transition fired once the state has been active for d.
func (n *NodeBuilder) After(d time.Duration, target string, opts ...TransitionOption) *NodeBuilder {
	n.node.After = append(n.node.After, domain.DelayedTransition{Delay: d, Transition: transition(target, opts)})
	return n
}

// Remember makes default entry of this compound resume its last active child.
func (n *NodeBuilder) Remember(mode domain.HistoryMode) *NodeBuilder {
	n.node.History = mode
	return n
}

// Default sets the fallback target of a history pseudo-state.
func (n *NodeBuilder) Default(target string) *NodeBuilder {
	n.node.Default = target
	return n
}

// Voice configures speech synthesis of the speak entry.
func (n *NodeBuilder) Voice(v domain.VoiceOptions) *NodeBuilder {
	if n.speak != nil {
		n.speak.Entry.Voice = v
	}
	return n
}

// WithNLU requests a structured interpretation on the listen entry.
func (n *NodeBuilder) WithNLU() *NodeBuilder {
	if n.listen != nil {
		n.listen.Entry.Listen.NLU = true
	}
	return n
}

// ListenOptions configures the listen entry.
func (n *NodeBuilder) ListenOptions(o domain.ListenOptions) *NodeBuilder {
	if n.listen != nil {
		n.listen.Entry.Listen = o
	}
	return n
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() *domain.Node {
	return n.node
}
