package dsl

import (
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/grammar"
)

// Affirmative passes when the last utterance means yes.
func Affirmative(r *grammar.Resolver) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		v, ok := r.Affirmative(ctx.Utterance())
		return ok && v
	}
}

// Negative passes when the last utterance means no.
func Negative(r *grammar.Resolver) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		v, ok := r.Affirmative(ctx.Utterance())
		return ok && !v
	}
}

// Matches passes when the recognition yields a value for the category,
// from an NLU entity or from the utterance itself.
func Matches(r *grammar.Resolver, category string) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		_, ok := r.Resolve(category, ctx.LastResult)
		return ok
	}
}

// MatchesValue passes when the category resolves to the given canonical value.
func MatchesValue(r *grammar.Resolver, category, value string) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		v, ok := r.Resolve(category, ctx.LastResult)
		return ok && v == value
	}
}

// Said passes when the normalized utterance equals one of the phrases.
func Said(phrases ...string) domain.Guard {
	set := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		set[grammar.Normalize(p)] = true
	}
	return func(ctx domain.Context, _ domain.Event) bool {
		return set[grammar.Normalize(ctx.Utterance())]
	}
}

// IntentIs passes when the NLU top intent is one of the labels.
func IntentIs(r *grammar.Resolver, labels ...string) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		_, ok := r.Intent(ctx.LastResult, labels...)
		return ok
	}
}

// ConfidenceBelow passes when the collaborator reported a confidence under min.
// Results without a score pass never.
func ConfidenceBelow(min float64) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		return ctx.LastResult.ConfidenceOr(1) < min
	}
}

// HasSlot passes when the slot is set.
func HasSlot(key string) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		return ctx.Has(key)
	}
}

// SlotEquals passes when the slot holds the value.
func SlotEquals(key string, value any) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		v, ok := ctx.Slot(key)
		return ok && v == value
	}
}

// FlagSet passes when the flag is true.
func FlagSet(key string) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		return ctx.Flag(key)
	}
}

// CounterAtLeast passes when the counter has reached n.
func CounterAtLeast(key string, n int) domain.Guard {
	return func(ctx domain.Context, _ domain.Event) bool {
		return ctx.Counter(key) >= n
	}
}

// Not negates a guard.
func Not(g domain.Guard) domain.Guard {
	return func(ctx domain.Context, ev domain.Event) bool {
		return !g(ctx, ev)
	}
}

// And passes when every guard passes.
func And(gs ...domain.Guard) domain.Guard {
	return func(ctx domain.Context, ev domain.Event) bool {
		for _, g := range gs {
			if !g(ctx, ev) {
				return false
			}
		}
		return true
	}
}

// Or passes when any guard passes.
func Or(gs ...domain.Guard) domain.Guard {
	return func(ctx domain.Context, ev domain.Event) bool {
		for _, g := range gs {
			if g(ctx, ev) {
				return true
			}
		}
		return false
	}
}
