package dsl

import (
	"testing"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/stretchr/testify/assert"
)

func heard(utterance string) domain.Context {
	return domain.NewContext(nil, nil).WithResult(&domain.RecognitionResult{Utterance: utterance})
}

func TestGuards(t *testing.T) {
	r := grammar.New()
	ev := domain.Event{}

	assert.True(t, Affirmative(r)(heard("sure"), ev))
	assert.False(t, Affirmative(r)(heard("nah"), ev))
	assert.True(t, Negative(r)(heard("nah"), ev))
	assert.False(t, Negative(r)(heard("banana"), ev))
	assert.False(t, Affirmative(r)(heard("banana"), ev))

	assert.True(t, Matches(r, grammar.CategoryDay)(heard("Tuesday."), ev))
	assert.False(t, Matches(r, grammar.CategoryDay)(domain.NewContext(nil, nil), ev), "no result at all")
	assert.True(t, MatchesValue(r, grammar.CategoryDirection, "west")(heard("left"), ev))

	assert.True(t, Said("help", "what can I say")(heard("What can I say?"), ev))
	assert.False(t, Said("help")(heard("helpful"), ev))

	low := 0.2
	lowCtx := domain.NewContext(nil, nil).WithResult(&domain.RecognitionResult{Utterance: "x", Confidence: &low})
	assert.True(t, ConfidenceBelow(0.5)(lowCtx, ev))
	assert.False(t, ConfidenceBelow(0.5)(heard("x"), ev))

	withNLU := domain.NewContext(nil, nil).WithResult(&domain.RecognitionResult{
		Utterance:      "i need help",
		Interpretation: &domain.Interpretation{TopIntent: "help"},
	})
	assert.True(t, IntentIs(r, "help")(withNLU, ev))
	assert.False(t, IntentIs(r, "book")(withNLU, ev))

	ctx := domain.NewContext(map[string]any{"day": "Monday"}, nil).Apply(domain.Patch{
		Flags:    map[string]bool{"confirmed": true},
		Counters: map[string]int{"noinput": 2},
	})
	assert.True(t, HasSlot("day")(ctx, ev))
	assert.True(t, SlotEquals("day", "Monday")(ctx, ev))
	assert.True(t, FlagSet("confirmed")(ctx, ev))
	assert.True(t, CounterAtLeast("noinput", 2)(ctx, ev))
	assert.False(t, CounterAtLeast("noinput", 3)(ctx, ev))

	assert.True(t, And(HasSlot("day"), Not(HasSlot("time")))(ctx, ev))
	assert.True(t, Or(HasSlot("time"), FlagSet("confirmed"))(ctx, ev))
	assert.False(t, Or()(ctx, ev))
}

func TestUpdates(t *testing.T) {
	r := grammar.New()
	ev := domain.Event{}

	p := Capture(r, grammar.CategoryDay, "day")(heard("monday"), ev)
	assert.Equal(t, "Monday", p.Slots["day"])
	assert.True(t, Capture(r, grammar.CategoryDay, "day")(heard("soon"), ev).IsZero(), "missing slot is not stored")

	assert.Equal(t, "hello there", CaptureUtterance("raw")(heard("hello there"), ev).Slots["raw"])

	ctx := domain.NewContext(nil, nil)
	ctx = ctx.Apply(Combine(Increment("n"), Increment("n"), SetFlag("f", true))(ctx, ev))
	assert.Equal(t, 1, ctx.Counter("n"), "each update sees the old context")
	assert.True(t, ctx.Flag("f"))

	ctx = ctx.Apply(ResetCounter("n")(ctx, ev))
	assert.Equal(t, 0, ctx.Counter("n"))

	word := func(domain.Context) string { return "apple" }
	ctx = ctx.Apply(AppendUnique("found", word)(ctx, ev))
	ctx = ctx.Apply(AppendUnique("found", word)(ctx, ev))
	assert.Equal(t, []string{"apple"}, ctx.Strings("found"))

	ctx = ctx.Apply(Set("day", "Friday")(ctx, ev))
	ctx = ctx.Apply(Unset("day")(ctx, ev))
	assert.False(t, ctx.Has("day"))
}
