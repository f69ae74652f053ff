package dsl

import (
	"slices"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/grammar"
)

// Capture stores the canonical value of a category in a slot.
// Nothing is stored when the category does not resolve.
func Capture(r *grammar.Resolver, category, slot string) domain.Update {
	return func(ctx domain.Context, _ domain.Event) domain.Patch {
		v, ok := r.Resolve(category, ctx.LastResult)
		if !ok {
			return domain.Patch{}
		}
		return domain.Patch{Slots: map[string]any{slot: v}}
	}
}

// CaptureUtterance stores the raw utterance in a slot.
func CaptureUtterance(slot string) domain.Update {
	return func(ctx domain.Context, _ domain.Event) domain.Patch {
		return domain.Patch{Slots: map[string]any{slot: ctx.Utterance()}}
	}
}

// Set assigns a slot.
func Set(slot string, value any) domain.Update {
	return func(domain.Context, domain.Event) domain.Patch {
		return domain.Patch{Slots: map[string]any{slot: value}}
	}
}

// Unset clears slots.
func Unset(slots ...string) domain.Update {
	return func(domain.Context, domain.Event) domain.Patch {
		return domain.Patch{Unset: slots}
	}
}

// SetFlag assigns an ephemeral flag.
func SetFlag(flag string, value bool) domain.Update {
	return func(domain.Context, domain.Event) domain.Patch {
		return domain.Patch{Flags: map[string]bool{flag: value}}
	}
}

// Increment adds one to a counter.
func Increment(counter string) domain.Update {
	return func(ctx domain.Context, _ domain.Event) domain.Patch {
		return domain.Patch{Counters: map[string]int{counter: ctx.Counter(counter) + 1}}
	}
}

// ResetCounter sets a counter back to zero.
func ResetCounter(counter string) domain.Update {
	return func(domain.Context, domain.Event) domain.Patch {
		return domain.Patch{Counters: map[string]int{counter: 0}}
	}
}

// AppendUnique adds a value to a string-list slot if it is not there yet.
func AppendUnique(slot string, value func(domain.Context) string) domain.Update {
	return func(ctx domain.Context, _ domain.Event) domain.Patch {
		v := value(ctx)
		list := ctx.Strings(slot)
		if v == "" || slices.Contains(list, v) {
			return domain.Patch{}
		}
		return domain.Patch{Slots: map[string]any{slot: append(slices.Clone(list), v)}}
	}
}

// Combine merges the patches of several updates; later ones win.
func Combine(us ...domain.Update) domain.Update {
	return func(ctx domain.Context, ev domain.Event) domain.Patch {
		var out domain.Patch
		for _, u := range us {
			out = out.Merge(u(ctx, ev))
		}
		return out
	}
}
