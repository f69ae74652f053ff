package domain

import (
	"maps"
	"math/rand/v2"
)

// Context is the mutable aggregate for one conversation.
// It is owned by exactly one running machine; guards and updates receive a
// copy and must treat it as read-only. Mutation happens only by merging a
// Patch produced by a transition.
type Context struct {
	LastResult     *RecognitionResult `json:"last_result,omitempty"`
	Interpretation *Interpretation    `json:"interpretation,omitempty"`
	Slots          map[string]any     `json:"slots"`
	Flags          map[string]bool    `json:"flags,omitempty"`
	Counters       map[string]int     `json:"counters,omitempty"`

	initial map[string]any
	rng     *rand.Rand
}

// NewContext creates a context seeded with the initial slot values.
// A nil source yields an unseeded generator.
func NewContext(initial map[string]any, src rand.Source) Context {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	c := Context{
		initial: maps.Clone(initial),
		rng:     rand.New(src),
	}
	return c.Reset()
}

// Reset restores the initial slot values and clears flags, counters and results.
// The random source is kept so a restarted conversation continues its sequence.
func (c Context) Reset() Context {
	slots := maps.Clone(c.initial)
	if slots == nil {
		slots = make(map[string]any)
	}
	return Context{
		Slots:    slots,
		Flags:    make(map[string]bool),
		Counters: make(map[string]int),
		initial:  c.initial,
		rng:      c.rng,
	}
}

// Clone deep-copies the maps so the copy can be mutated independently.
func (c Context) Clone() Context {
	next := c
	next.Slots = cloneSlots(c.Slots)
	next.Flags = maps.Clone(c.Flags)
	next.Counters = maps.Clone(c.Counters)
	if next.Flags == nil {
		next.Flags = make(map[string]bool)
	}
	if next.Counters == nil {
		next.Counters = make(map[string]int)
	}
	return next
}

// Detached is a Clone that no longer shares the session's random source.
// Draws on it use the global generator and leave the session sequence alone.
func (c Context) Detached() Context {
	next := c.Clone()
	next.rng = nil
	return next
}

// WithResult records the latest recognition outcome.
func (c Context) WithResult(r *RecognitionResult) Context {
	c.LastResult = r
	if r != nil {
		c.Interpretation = r.Interpretation
	} else {
		c.Interpretation = nil
	}
	return c
}

// Apply merges a patch into a clone of the context.
func (c Context) Apply(p Patch) Context {
	next := c.Clone()
	for _, k := range p.Unset {
		delete(next.Slots, k)
	}
	for k, v := range p.Slots {
		next.Slots[k] = v
	}
	for k, v := range p.Flags {
		next.Flags[k] = v
	}
	for k, v := range p.Counters {
		next.Counters[k] = v
	}
	return next
}

// Slot returns a slot value.
func (c Context) Slot(key string) (any, bool) {
	v, ok := c.Slots[key]
	return v, ok
}

// Has reports whether the slot is set to a non-nil value.
func (c Context) Has(key string) bool {
	v, ok := c.Slots[key]
	return ok && v != nil
}

// String returns a string slot, or "" when unset or of another type.
func (c Context) String(key string) string {
	s, _ := c.Slots[key].(string)
	return s
}

// Strings returns a string-list slot.
func (c Context) Strings(key string) []string {
	switch v := c.Slots[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Flag returns an ephemeral boolean flag.
func (c Context) Flag(key string) bool {
	return c.Flags[key]
}

// Counter returns a named counter, zero when unset.
func (c Context) Counter(key string) int {
	return c.Counters[key]
}

// Utterance returns the last recognized utterance.
func (c Context) Utterance() string {
	return c.LastResult.Text()
}

// Pick returns one of the options using the context's random source.
func (c Context) Pick(options ...string) string {
	if len(options) == 0 {
		return ""
	}
	return options[c.Intn(len(options))]
}

// Intn returns a pseudo-random number in [0,n).
func (c Context) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	if c.rng == nil {
		return rand.IntN(n)
	}
	return c.rng.IntN(n)
}

// Shuffle returns a shuffled copy of the items.
func (c Context) Shuffle(items []string) []string {
	out := append([]string(nil), items...)
	for i := len(out) - 1; i > 0; i-- {
		j := c.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func cloneSlots(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		switch t := v.(type) {
		case []string:
			out[k] = append([]string(nil), t...)
		case map[string]bool:
			out[k] = maps.Clone(t)
		default:
			out[k] = v
		}
	}
	return out
}

// Patch is a partial context update produced by a transition.
type Patch struct {
	Slots    map[string]any
	Unset    []string
	Flags    map[string]bool
	Counters map[string]int
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return len(p.Slots) == 0 && len(p.Unset) == 0 && len(p.Flags) == 0 && len(p.Counters) == 0
}

// Merge combines two patches; values in o win.
func (p Patch) Merge(o Patch) Patch {
	out := Patch{
		Slots:    maps.Clone(p.Slots),
		Unset:    append(append([]string(nil), p.Unset...), o.Unset...),
		Flags:    maps.Clone(p.Flags),
		Counters: maps.Clone(p.Counters),
	}
	if out.Slots == nil {
		out.Slots = make(map[string]any)
	}
	if out.Flags == nil {
		out.Flags = make(map[string]bool)
	}
	if out.Counters == nil {
		out.Counters = make(map[string]int)
	}
	for _, k := range o.Unset {
		delete(out.Slots, k)
	}
	maps.Copy(out.Slots, o.Slots)
	maps.Copy(out.Flags, o.Flags)
	maps.Copy(out.Counters, o.Counters)
	return out
}
