package flows

import (
	"fmt"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/dsl"
	"github.com/aretw0/parlance/pkg/grammar"
)

// Appointment builds the meeting booking dialogue.
//
// The conversation asks who the meeting is with, on which day and whether it
// takes the whole day; otherwise it asks for a time. The answers are read
// back for confirmation. "help" can be said at any question and the dialogue
// resumes where it left off. Two consecutive silences end the attempt.
func Appointment(r *grammar.Resolver) (*domain.Definition, error) {
	b := dsl.New("appointment")

	b.Prepare("prepare").
		Describe("Wait for the speech service").
		On(domain.EventReady, "idle")
	b.Add("idle").
		Describe("Wait for a click").
		On(domain.EventClick, "main", dsl.Restart(), dsl.Label("start"))

	b.Compound("main", "greet").
		On(domain.EventClick, "main", dsl.Restart(), dsl.Label("restart")).
		OnDone("created")
	b.History("resume", "main", domain.HistoryShallow).Default("greet")

	b.Say("greet", "Let's create an appointment.").In("main").Then("ask_person")

	ask(b, "ask_person", static("Who are you meeting with?"), "goodbye", func(q *dsl.NodeBuilder) {
		q.On(domain.EventRecognised, "ask_day",
			dsl.When(dsl.Matches(r, grammar.CategoryPerson)),
			dsl.Do(dsl.Combine(heard, dsl.Capture(r, grammar.CategoryPerson, "person"))),
			dsl.Label("person"))
	}).In("main").WithNLU()

	ask(b, "ask_day", static("On which day is your meeting?"), "goodbye", func(q *dsl.NodeBuilder) {
		q.On(domain.EventRecognised, "ask_whole_day",
			dsl.When(dsl.Matches(r, grammar.CategoryDay)),
			dsl.Do(dsl.Combine(heard, dsl.Capture(r, grammar.CategoryDay, "day"))),
			dsl.Label("day"))
	}).In("main").WithNLU()

	ask(b, "ask_whole_day", static("Will it take the whole day?"), "goodbye", func(q *dsl.NodeBuilder) {
		q.On(domain.EventRecognised, "confirm_day",
			dsl.When(dsl.Affirmative(r)),
			dsl.Do(dsl.Combine(heard, dsl.Set("whole_day", true))),
			dsl.Label("yes"))
		q.On(domain.EventRecognised, "ask_time",
			dsl.When(dsl.Negative(r)),
			dsl.Do(dsl.Combine(heard, dsl.Set("whole_day", false))),
			dsl.Label("no"))
	}).In("main")

	ask(b, "ask_time", static("What time is your meeting?"), "goodbye", func(q *dsl.NodeBuilder) {
		q.On(domain.EventRecognised, "confirm_time",
			dsl.When(func(ctx domain.Context, _ domain.Event) bool {
				_, ok := timeOf(r, ctx)
				return ok
			}),
			dsl.Do(dsl.Combine(heard, captureTime(r))),
			dsl.Label("time"))
	}).In("main").WithNLU()

	confirm := func(id string, text func(domain.Context) string) {
		ask(b, id, text, "goodbye", func(q *dsl.NodeBuilder) {
			q.On(domain.EventRecognised, "booked",
				dsl.When(dsl.Affirmative(r)),
				dsl.Do(heard),
				dsl.Label("yes"))
			q.On(domain.EventRecognised, "ask_person",
				dsl.When(dsl.Negative(r)),
				dsl.Do(dsl.Combine(heard, dsl.Unset("person", "day", "time", "whole_day"))),
				dsl.Label("no"))
		}).In("main")
	}
	confirm("confirm_day", func(ctx domain.Context) string {
		return fmt.Sprintf("Do you want me to create an appointment with %s on %s for the whole day?",
			ctx.String("person"), ctx.String("day"))
	})
	confirm("confirm_time", func(ctx domain.Context) string {
		return fmt.Sprintf("Do you want me to create an appointment with %s on %s at %s?",
			ctx.String("person"), ctx.String("day"), ctx.String("time"))
	})

	b.Final("booked").In("main")

	b.Say("created", "Your appointment has been created.").Then("idle")
	b.Say("help", "I can book a meeting for you. Answer with a name, a day or a time, or say yes or no.").
		Then("resume")
	b.Say("goodbye", "I haven't heard from you, so I'll stop here. Click to start again.").
		Then("idle")

	return b.Build()
}

// timeOf reads a time from an NLU entity, the lexicon or a clock form.
func timeOf(r *grammar.Resolver, ctx domain.Context) (string, bool) {
	if v, ok := r.Resolve(grammar.CategoryTime, ctx.LastResult); ok {
		if t, ok := r.Time(v); ok {
			return t, true
		}
		return v, true
	}
	return r.Time(ctx.Utterance())
}

func captureTime(r *grammar.Resolver) domain.Update {
	return func(ctx domain.Context, _ domain.Event) domain.Patch {
		v, ok := timeOf(r, ctx)
		if !ok {
			return domain.Patch{}
		}
		return domain.Patch{Slots: map[string]any{"time": v}}
	}
}
