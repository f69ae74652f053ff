package runtime

import (
	"context"
	"slices"

	"github.com/aretw0/parlance/pkg/domain"
)

// Snapshot returns the state after the last completed macrostep.
// The returned context must be treated as read-only.
func (m *Machine) Snapshot() domain.Snapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snap
}

// Subscribe returns a channel of snapshots. The current snapshot is
// delivered first; a slow reader only ever sees the latest one.
// The channel is closed when ctx is done or the machine stops.
func (m *Machine) Subscribe(ctx context.Context) <-chan domain.Snapshot {
	ch := make(chan domain.Snapshot, 1)

	m.snapMu.Lock()
	if m.snap.Status == domain.StatusStopped {
		m.snapMu.Unlock()
		close(ch)
		return ch
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snap
	m.snapMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.base.Done():
			return
		}
		m.snapMu.Lock()
		defer m.snapMu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}()
	return ch
}

// publish builds a snapshot if anything observable changed and fans it out.
func (m *Machine) publish() {
	phase := m.exec.Phase()
	handle, _ := m.exec.InFlight()

	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	if !m.dirty && phase == m.snap.Turn && handle.TurnID == m.snap.TurnID {
		return
	}
	m.dirty = false

	m.snap = domain.Snapshot{
		SessionID: m.id,
		FlowID:    m.g.def.ID,
		Sequence:  m.snap.Sequence + 1,
		Status:    m.status,
		Value:     m.leaf(),
		Path:      slices.Clone(m.active),
		Context:   m.ctx.Detached(),
		Turn:      phase,
		TurnID:    handle.TurnID,
		UpdatedAt: m.clock.Now(),
	}

	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- m.snap
	}
}
