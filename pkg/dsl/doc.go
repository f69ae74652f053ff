/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing Parlance dialogue flows.

It allows developers to define hierarchical dialogue state machines using a type-safe, fluent builder pattern
instead of relying on external YAML files. Guards and updates are plain Go functions; the helpers in
this package cover the common slot-filling patterns (yes/no, captured slots, counters).

Example usage:

	r := grammar.New()
	b := dsl.New("booking")

	b.Prepare("prepare").On(domain.EventReady, "ask_day")

	b.Question("ask_day", "Which day?").
		On(domain.EventRecognised, "confirm", dsl.When(dsl.Matches(r, grammar.CategoryDay)), dsl.Do(dsl.Capture(r, grammar.CategoryDay, "day"))).
		On(domain.EventRecognised, "ask_day").
		On(domain.EventNoInput, "ask_day")

	b.SayFunc("confirm", func(ctx domain.Context) string {
		return "See you on " + ctx.String("day")
	}).Then("done")

	b.Final("done")

	def, err := b.Build()
	// ... pass def to parlance.New(...)
*/
package dsl
