package runtime

import (
	"fmt"
	"slices"

	"github.com/aretw0/parlance/pkg/domain"
)

func (m *Machine) start() error {
	m.status = domain.StatusActive
	m.steps = 0
	m.enter("", m.g.def.Initial)
	m.dirty = true
	err := m.settle()
	m.publish()
	return err
}

// macrostep processes one external event and everything it causes.
func (m *Machine) macrostep(ev domain.Event) error {
	if m.status != domain.StatusActive {
		m.emitIgnored(ev.Type, m.leaf(), domain.ReasonDone)
		return nil
	}

	ev, reason, ok := m.exec.Accept(ev, m.isActive)
	if !ok {
		m.logger.Debug("event dropped", "event", ev.Type, "turn_id", ev.TurnID, "reason", reason)
		m.emitIgnored(ev.Type, m.leaf(), reason)
		return nil
	}
	if ev.Type.FromCollaborator() {
		m.emitCollaborator(ev)
	}

	m.steps = 0
	taken, err := m.dispatch(ev)
	if err == nil && taken {
		err = m.settle()
	}
	m.publish()
	if err != nil {
		m.logger.Error("macrostep failed", "event", ev.Type, "error", err)
	}
	return err
}

// settle runs eventless transitions and internal events until the
// configuration is stable. Both count towards the step bound.
func (m *Machine) settle() error {
	for {
		if err := m.runAlways(); err != nil {
			m.internal = nil
			return err
		}
		if len(m.internal) == 0 || m.status != domain.StatusActive {
			m.internal = nil
			return nil
		}
		ev := m.internal[0]
		m.internal = m.internal[1:]
		m.steps++
		if m.steps > m.maxSteps {
			m.internal = nil
			return &LoopError{StateID: m.leaf(), Steps: m.maxSteps}
		}
		if _, err := m.dispatch(ev); err != nil {
			return err
		}
	}
}

func (m *Machine) runAlways() error {
	for m.status == domain.StatusActive {
		source, t, ok := m.enabledAlways()
		if !ok {
			return nil
		}
		m.steps++
		if m.steps > m.maxSteps {
			return &LoopError{StateID: m.leaf(), Steps: m.maxSteps}
		}
		if err := m.take(source, t, domain.Event{}, m.ctx); err != nil {
			return err
		}
	}
	return nil
}

// enabledAlways finds the first enabled eventless transition, leaf first.
func (m *Machine) enabledAlways() (string, domain.Transition, bool) {
	for i := len(m.active) - 1; i >= 0; i-- {
		n := m.g.nodes[m.active[i]]
		for _, t := range n.Always {
			if t.Allows(m.ctx, domain.Event{}) {
				return n.ID, t, true
			}
		}
	}
	return "", domain.Transition{}, false
}

// dispatch selects and takes at most one transition for the event.
// The search bubbles from the active leaf to its ancestors and stops at the
// first state declaring the event type; if none of its guards pass the
// event is a no-op.
func (m *Machine) dispatch(ev domain.Event) (bool, error) {
	if ev.Type == domain.EventAfter {
		return m.dispatchTimer(ev)
	}

	candidate := m.ctx
	if ev.Result != nil {
		candidate = candidate.WithResult(ev.Result)
	}

	for i := len(m.active) - 1; i >= 0; i-- {
		n := m.g.nodes[m.active[i]]
		ts, ok := n.On[ev.Type]
		if !ok {
			continue
		}
		for _, t := range ts {
			if t.Allows(candidate, ev) {
				return true, m.take(n.ID, t, ev, candidate)
			}
		}
		m.emitIgnored(ev.Type, n.ID, domain.ReasonNoGuard)
		return false, nil
	}

	m.emitIgnored(ev.Type, m.leaf(), domain.ReasonNoHandler)
	return false, nil
}

func (m *Machine) dispatchTimer(ev domain.Event) (bool, error) {
	id, _ := ev.Data[domain.KeyTimerState].(string)
	gen, _ := ev.Data[domain.KeyTimerEntry].(uint64)
	idx, _ := ev.Data[domain.KeyTimerIndex].(int)

	n, ok := m.g.nodes[id]
	if !ok || !m.isActive(id) || m.entries[id] != gen || idx < 0 || idx >= len(n.After) {
		m.emitIgnored(ev.Type, id, domain.ReasonStale)
		return false, nil
	}

	t := n.After[idx].Transition
	if !t.Allows(m.ctx, ev) {
		m.emitIgnored(ev.Type, id, domain.ReasonNoGuard)
		return false, nil
	}
	return true, m.take(id, t, ev, m.ctx)
}

// take executes a selected transition.
// candidate is the context the guard saw; it becomes the machine's context
// only now that a transition is actually taken.
func (m *Machine) take(source string, t domain.Transition, ev domain.Event, candidate domain.Context) error {
	m.dirty = true
	m.emitTransition(ev.Type, source, t)

	if t.Internal() {
		m.ctx = updated(candidate, t, ev)
		return nil
	}

	if _, ok := m.g.nodes[t.Target]; !ok {
		return fmt.Errorf("%w: '%s'", domain.ErrUnknownState, t.Target)
	}

	scope := m.g.transitionDomain(source, t.Target)
	m.exitTo(scope)
	m.ctx = updated(candidate, t, ev)
	m.enter(scope, t.Target)
	return nil
}

// updated applies the transition's reset flag and update.
// The update sees the context as it was before any reset.
func updated(candidate domain.Context, t domain.Transition, ev domain.Event) domain.Context {
	var patch domain.Patch
	if t.Update != nil {
		patch = t.Update(candidate, ev)
	}
	next := candidate
	if t.Reset {
		next = next.Reset()
	}
	if patch.IsZero() {
		return next
	}
	return next.Apply(patch)
}

// exitTo exits every active descendant of scope, leaf first, recording
// history for each compound that loses its active children.
func (m *Machine) exitTo(scope string) {
	keep := 0
	if scope != "" {
		keep = slices.Index(m.active, scope) + 1
	}
	if keep >= len(m.active) {
		return
	}

	for i := keep - 1; i < len(m.active)-1; i++ {
		parent := ""
		if i >= 0 {
			parent = m.active[i]
		}
		if parent != "" {
			m.history[parent] = slices.Clone(m.active[i+1:])
		}
	}

	for i := len(m.active) - 1; i >= keep; i-- {
		id := m.active[i]
		m.cancelTimers(id)
		m.emitExit(m.g.nodes[id])
	}
	m.active = m.active[:keep]
}

// enter activates the states from below scope down to target, then the
// target's default descendants.
func (m *Machine) enter(scope, target string) {
	path := m.g.Path(target)
	start := 0
	if scope != "" {
		start = slices.Index(path, scope) + 1
	}
	for _, id := range path[start:] {
		n := m.g.nodes[id]
		if n.Kind == domain.NodeHistory {
			m.enterHistory(n)
			return
		}
		m.enterState(n)
	}
	m.enterDefault(m.g.nodes[target])
}

// enterDefault completes the entry of a compound state.
func (m *Machine) enterDefault(n *domain.Node) {
	if n.Kind != domain.NodeCompound || m.status != domain.StatusActive {
		return
	}
	if n.History != domain.HistoryNone {
		if rec := m.history[n.ID]; len(rec) > 0 {
			m.resume(n.History, rec)
			return
		}
	}
	child := n.Child(n.Initial)
	m.enterState(child)
	m.enterDefault(child)
}

// enterHistory resolves a history pseudo-state. The pseudo-state itself is
// never active.
func (m *Machine) enterHistory(h *domain.Node) {
	parent := m.g.nodes[m.g.parent[h.ID]]
	if rec := m.history[parent.ID]; len(rec) > 0 {
		m.resume(h.History, rec)
		return
	}
	if h.Default != "" {
		m.enter(parent.ID, h.Default)
		return
	}
	child := parent.Child(parent.Initial)
	m.enterState(child)
	m.enterDefault(child)
}

// resume re-enters a recorded configuration. Shallow history keeps only the
// direct child and uses defaults below it.
func (m *Machine) resume(mode domain.HistoryMode, rec []string) {
	if mode != domain.HistoryDeep {
		rec = rec[:1]
	}
	var last *domain.Node
	for _, id := range rec {
		last = m.g.nodes[id]
		m.enterState(last)
		if m.status != domain.StatusActive {
			return
		}
	}
	m.enterDefault(last)
}

func (m *Machine) enterState(n *domain.Node) {
	if m.status != domain.StatusActive {
		return
	}
	m.active = append(m.active, n.ID)
	m.gen++
	m.entries[n.ID] = m.gen
	m.emitEnter(n)

	m.runEntry(n)
	m.armTimers(n)

	if n.Kind == domain.NodeFinal {
		if parent := m.g.parent[n.ID]; parent != "" {
			m.internal = append(m.internal, domain.Event{Type: domain.DoneEvent(parent)})
			return
		}
		m.status = domain.StatusDone
		m.cancelAllTimers()
		m.exec.Clear()
		m.logger.Debug("conversation finished", "state", n.ID)
	}
}

func (m *Machine) runEntry(n *domain.Node) {
	var (
		cmd domain.Command
		err error
	)
	switch n.Entry.Kind {
	case domain.EntryNone:
		return
	case domain.EntryPrepare:
		cmd, err = m.exec.Prepare(m.base, n.ID)
	case domain.EntrySpeak:
		cmd, err = m.exec.Speak(m.base, n.ID, n.Entry.Utterance(m.ctx), m.voiceFor(n.Entry.Voice))
	case domain.EntryListen:
		cmd, err = m.exec.Listen(m.base, n.ID, m.listenFor(n.Entry.Listen))
	}
	if err != nil {
		m.logger.Warn("collaborator command failed", "state", n.ID, "command", cmd.Type, "error", err)
	}
	m.emitCommand(cmd, err)
}

func (m *Machine) voiceFor(v domain.VoiceOptions) domain.VoiceOptions {
	if v.Voice == "" {
		v.Voice = m.voice.Voice
	}
	if v.Locale == "" {
		v.Locale = m.voice.Locale
	}
	return v
}

func (m *Machine) listenFor(l domain.ListenOptions) domain.ListenOptions {
	if !l.NLU {
		l.NLU = m.listen.NLU
	}
	if l.Locale == "" {
		l.Locale = m.listen.Locale
	}
	if l.NoInputTimeout == 0 {
		l.NoInputTimeout = m.listen.NoInputTimeout
	}
	if l.CompleteTimeout == 0 {
		l.CompleteTimeout = m.listen.CompleteTimeout
	}
	return l
}

func (m *Machine) armTimers(n *domain.Node) {
	for i, d := range n.After {
		data := map[string]any{
			domain.KeyTimerState: n.ID,
			domain.KeyTimerEntry: m.gen,
			domain.KeyTimerIndex: i,
		}
		timer := m.clock.AfterFunc(d.Delay, func() {
			if err := m.Send(m.base, domain.Event{Type: domain.EventAfter, Data: data}); err != nil {
				m.logger.Debug("timer event rejected", "state", data[domain.KeyTimerState], "error", err)
			}
		})
		m.timers[n.ID] = append(m.timers[n.ID], timer)
	}
}

func (m *Machine) cancelTimers(id string) {
	for _, t := range m.timers[id] {
		t.Stop()
	}
	delete(m.timers, id)
}

func (m *Machine) cancelAllTimers() {
	for id := range m.timers {
		m.cancelTimers(id)
	}
}

func (m *Machine) isActive(id string) bool {
	return slices.Contains(m.active, id)
}

func (m *Machine) leaf() string {
	if len(m.active) == 0 {
		return ""
	}
	return m.active[len(m.active)-1]
}
