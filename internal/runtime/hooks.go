package runtime

import "github.com/aretw0/parlance/pkg/domain"

func (m *Machine) hookBase(t domain.HookType) domain.HookBase {
	return domain.HookBase{Timestamp: m.clock.Now(), Type: t, SessionID: m.id}
}

func (m *Machine) emitEnter(n *domain.Node) {
	if m.hooks.OnStateEnter == nil {
		return
	}
	m.hooks.OnStateEnter(m.base, &domain.StateEvent{HookBase: m.hookBase(domain.HookStateEnter), StateID: n.ID, Kind: n.Kind})
}

func (m *Machine) emitExit(n *domain.Node) {
	if m.hooks.OnStateExit == nil {
		return
	}
	m.hooks.OnStateExit(m.base, &domain.StateEvent{HookBase: m.hookBase(domain.HookStateExit), StateID: n.ID, Kind: n.Kind})
}

func (m *Machine) emitTransition(ev domain.EventType, source string, t domain.Transition) {
	if m.hooks.OnTransition == nil {
		return
	}
	m.hooks.OnTransition(m.base, &domain.TransitionEvent{
		HookBase: m.hookBase(domain.HookTransition),
		Event:    ev,
		Source:   source,
		Target:   t.Target,
		Label:    t.Label,
		Internal: t.Internal(),
	})
}

func (m *Machine) emitCommand(cmd domain.Command, err error) {
	if m.hooks.OnCommand == nil {
		return
	}
	m.hooks.OnCommand(m.base, &domain.CommandEvent{HookBase: m.hookBase(domain.HookCommand), Command: cmd, Err: err})
}

func (m *Machine) emitCollaborator(ev domain.Event) {
	if m.hooks.OnCollaborator == nil {
		return
	}
	m.hooks.OnCollaborator(m.base, &domain.CollaboratorEvent{HookBase: m.hookBase(domain.HookCollaborator), StateID: m.leaf(), Event: ev})
}

func (m *Machine) emitIgnored(ev domain.EventType, stateID, reason string) {
	if m.hooks.OnEventIgnored == nil {
		return
	}
	m.hooks.OnEventIgnored(m.base, &domain.IgnoredEvent{HookBase: m.hookBase(domain.HookIgnored), Event: ev, StateID: stateID, Reason: reason})
}
