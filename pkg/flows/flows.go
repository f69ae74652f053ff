package flows

import (
	"fmt"
	"sort"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/dsl"
	"github.com/aretw0/parlance/pkg/grammar"
)

// Counters and flags shared by the bundled flows.
const (
	counterNoInput = "noinput"
	flagMisheard   = "misheard"
	flagSilent     = "silent"
)

var builtin = map[string]func(*grammar.Resolver) (*domain.Definition, error){
	"appointment": Appointment,
	"intruder": func(r *grammar.Resolver) (*domain.Definition, error) {
		return Intruder(r)
	},
}

// Names lists the bundled flows.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get builds a bundled flow by name.
func Get(name string, r *grammar.Resolver) (*domain.Definition, error) {
	build, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("unknown flow: %s", name)
	}
	if r == nil {
		r = grammar.New()
	}
	return build(r)
}

// heard clears the recovery state after a usable answer.
var heard = dsl.Combine(
	dsl.ResetCounter(counterNoInput),
	dsl.SetFlag(flagMisheard, false),
	dsl.SetFlag(flagSilent, false),
)

// reprompt prefixes the question after a failed turn.
func reprompt(text func(domain.Context) string) func(domain.Context) string {
	return func(ctx domain.Context) string {
		switch {
		case ctx.Flag(flagSilent):
			return "I didn't hear you. " + text(ctx)
		case ctx.Flag(flagMisheard):
			return "Sorry, I didn't understand. " + text(ctx)
		}
		return text(ctx)
	}
}

func static(s string) func(domain.Context) string {
	return func(domain.Context) string { return s }
}

// ask adds a question with the common recovery handlers. answers declares the
// domain transitions; they run after the help check and before the fallbacks.
// A second consecutive no-input goes to giveUp.
func ask(b *dsl.Builder, id string, text func(domain.Context) string, giveUp string, answers func(q *dsl.NodeBuilder)) *dsl.NodeBuilder {
	q := b.QuestionFunc(id, reprompt(text))
	q.On(domain.EventRecognised, "help", dsl.When(dsl.Said("help", "help me", "what can i say")), dsl.Label("help"))
	answers(q)
	q.On(domain.EventRecognised, id,
		dsl.Do(dsl.Combine(heard, dsl.SetFlag(flagMisheard, true))),
		dsl.Label("not understood"))
	q.On(domain.EventNoInput, giveUp,
		dsl.When(dsl.CounterAtLeast(counterNoInput, 1)),
		dsl.Do(dsl.Increment(counterNoInput)),
		dsl.Label("no input twice"))
	q.On(domain.EventNoInput, id,
		dsl.Do(dsl.Combine(
			dsl.Increment(counterNoInput),
			dsl.SetFlag(flagMisheard, false),
			dsl.SetFlag(flagSilent, true),
		)),
		dsl.Label("no input"))
	return q
}
