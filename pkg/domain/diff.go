package domain

import (
	"reflect"
	"slices"
)

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`
	Sequence  uint64 `json:"sequence"`

	Value  *string    `json:"value,omitempty"`
	Path   []string   `json:"path,omitempty"`
	Status *Status    `json:"status,omitempty"`
	Turn   *TurnPhase `json:"turn,omitempty"`

	// Slots contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Slots    map[string]any  `json:"slots,omitempty"`
	Flags    map[string]bool `json:"flags,omitempty"`
	Counters map[string]int  `json:"counters,omitempty"`

	Utterance *string `json:"utterance,omitempty"`
}

// Diff calculates the difference between two snapshots.
// If old is nil, it returns a diff representing the entire new snapshot (initial load).
// It returns nil when nothing observable changed.
func Diff(old, new *Snapshot) *SnapshotDiff {
	if new == nil {
		return nil
	}

	diff := &SnapshotDiff{
		SessionID: new.SessionID,
		Sequence:  new.Sequence,
	}

	if old == nil || old.Value != new.Value {
		diff.Value = &new.Value
	}
	if old == nil || !slices.Equal(old.Path, new.Path) {
		diff.Path = new.Path
	}
	if old == nil || old.Status != new.Status {
		diff.Status = &new.Status
	}
	if old == nil || old.Turn != new.Turn {
		diff.Turn = &new.Turn
	}

	var oldCtx *Context
	if old != nil {
		oldCtx = &old.Context
	}
	diff.Slots = diffSlots(oldCtx, &new.Context)
	diff.Flags = diffMap(oldFlags(oldCtx), new.Context.Flags)
	diff.Counters = diffMap(oldCounters(oldCtx), new.Context.Counters)

	newUtt := new.Context.Utterance()
	if (old == nil && newUtt != "") || (old != nil && old.Context.Utterance() != newUtt) {
		diff.Utterance = &newUtt
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffSlots(old, new *Context) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Slots {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Slots {
		oldVal, exists := old.Slots[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old.Slots {
		if _, exists := new.Slots[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffMap reports changed or added keys. Removed keys report the zero value.
func diffMap[V comparable](old, new map[string]V) map[string]V {
	delta := make(map[string]V)
	for k, v := range new {
		if ov, ok := old[k]; !ok || ov != v {
			delta[k] = v
		}
	}
	for k := range old {
		if _, ok := new[k]; !ok {
			var zero V
			delta[k] = zero
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

func oldFlags(c *Context) map[string]bool {
	if c == nil {
		return nil
	}
	return c.Flags
}

func oldCounters(c *Context) map[string]int {
	if c == nil {
		return nil
	}
	return c.Counters
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.Value == nil &&
		d.Path == nil &&
		d.Status == nil &&
		d.Turn == nil &&
		len(d.Slots) == 0 &&
		len(d.Flags) == 0 &&
		len(d.Counters) == 0 &&
		d.Utterance == nil
}
