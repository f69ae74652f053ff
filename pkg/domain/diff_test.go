package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotAt(value string, slots map[string]any) *Snapshot {
	ctx := NewContext(nil, nil).Apply(Patch{Slots: slots})
	return &Snapshot{
		SessionID: "sess-1",
		Status:    StatusActive,
		Value:     value,
		Path:      []string{value},
		Context:   ctx,
	}
}

func TestDiff_InitialLoad(t *testing.T) {
	d := Diff(nil, snapshotAt("greeting", map[string]any{"person": "Alice"}))
	require.NotNil(t, d)

	require.NotNil(t, d.Value)
	assert.Equal(t, "greeting", *d.Value)
	assert.Equal(t, []string{"greeting"}, d.Path)
	require.NotNil(t, d.Status)
	assert.Equal(t, StatusActive, *d.Status)
	assert.Equal(t, map[string]any{"person": "Alice"}, d.Slots)
	assert.Nil(t, d.Utterance)
}

func TestDiff_NoChanges(t *testing.T) {
	old := snapshotAt("greeting", map[string]any{"person": "Alice"})
	new := snapshotAt("greeting", map[string]any{"person": "Alice"})
	assert.Nil(t, Diff(old, new))
}

func TestDiff_SlotChanges(t *testing.T) {
	old := snapshotAt("ask_day", map[string]any{"person": "Alice", "day": "Monday"})
	new := snapshotAt("ask_time", map[string]any{"person": "Bob"})

	d := Diff(old, new)
	require.NotNil(t, d)
	require.NotNil(t, d.Value)
	assert.Equal(t, "ask_time", *d.Value)
	assert.Nil(t, d.Status, "status did not change")
	assert.Equal(t, map[string]any{"person": "Bob", "day": nil}, d.Slots)
}

func TestDiff_FlagsCountersAndUtterance(t *testing.T) {
	old := snapshotAt("listen", nil)
	new := snapshotAt("listen", nil)
	new.Context = new.Context.Apply(Patch{
		Flags:    map[string]bool{"helped": true},
		Counters: map[string]int{"noinput": 1},
	}).WithResult(&RecognitionResult{Utterance: "monday"})

	d := Diff(old, new)
	require.NotNil(t, d)
	assert.Nil(t, d.Value)
	assert.Equal(t, map[string]bool{"helped": true}, d.Flags)
	assert.Equal(t, map[string]int{"noinput": 1}, d.Counters)
	require.NotNil(t, d.Utterance)
	assert.Equal(t, "monday", *d.Utterance)
}

func TestDiff_TurnPhase(t *testing.T) {
	old := snapshotAt("ask", nil)
	new := snapshotAt("ask", nil)
	new.Turn = TurnListening

	d := Diff(old, new)
	require.NotNil(t, d)
	require.NotNil(t, d.Turn)
	assert.Equal(t, TurnListening, *d.Turn)
}

func TestDiff_JSONOmitsUnchanged(t *testing.T) {
	old := snapshotAt("a", nil)
	new := snapshotAt("b", nil)

	b, err := json.Marshal(Diff(old, new))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Contains(t, raw, "value")
	assert.NotContains(t, raw, "status")
	assert.NotContains(t, raw, "slots")
}
