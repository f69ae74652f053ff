package grammar

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/aretw0/parlance/pkg/domain"
)

// Resolver maps utterances and NLU results to canonical slot values.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	lex Lexicon
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLexicon adds (or overrides) categories on top of the built-in lexicon.
func WithLexicon(l Lexicon) Option {
	return func(r *Resolver) {
		r.lex = r.lex.Merge(l)
	}
}

// WithoutDefaults starts from an empty lexicon.
func WithoutDefaults() Option {
	return func(r *Resolver) {
		r.lex = Lexicon{}
	}
}

// New creates a resolver backed by the built-in lexicon.
func New(opts ...Option) *Resolver {
	r := &Resolver{lex: mustDefault()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lexicon returns a copy of the resolver's tables.
func (r *Resolver) Lexicon() Lexicon {
	return Lexicon{}.Merge(r.lex)
}

// Lookup finds the canonical value of an utterance in a category.
func (r *Resolver) Lookup(category, utterance string) (string, bool) {
	table, ok := r.lex[Normalize(category)]
	if !ok {
		return "", false
	}
	v, ok := table[Normalize(utterance)]
	return v, ok
}

// Resolve extracts a category value from a recognition result.
// A matching NLU entity wins; the entity text is canonicalized when the
// lexicon knows it. Otherwise the whole utterance is looked up.
func (r *Resolver) Resolve(category string, res *domain.RecognitionResult) (string, bool) {
	if res == nil {
		return "", false
	}
	if text, ok := res.Interpretation.Entity(category); ok {
		if v, ok := r.Lookup(category, text); ok {
			return v, true
		}
		return text, true
	}
	return r.Lookup(category, res.Utterance)
}

// Affirmative reports whether the utterance is a yes (true) or a no (false).
// The second result is false when the utterance is neither.
func (r *Resolver) Affirmative(utterance string) (value bool, ok bool) {
	v, ok := r.Lookup(CategoryYesNo, utterance)
	if !ok {
		return false, false
	}
	return v == Yes, true
}

// Person resolves a person name.
func (r *Resolver) Person(utterance string) (string, bool) {
	return r.Lookup(CategoryPerson, utterance)
}

// Day resolves a day name, e.g. "monday" → "Monday".
func (r *Resolver) Day(utterance string) (string, bool) {
	return r.Lookup(CategoryDay, utterance)
}

// Direction resolves a movement direction.
func (r *Resolver) Direction(utterance string) (string, bool) {
	return r.Lookup(CategoryDirection, utterance)
}

var clockPattern = regexp.MustCompile(`^(?:at )?(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm|a\.m|p\.m|o'clock)?$`)

// Time resolves a time of day as "HH:MM".
// Lexicon phrases are tried first, then clock forms like "10", "10:30" or "3 pm".
func (r *Resolver) Time(utterance string) (string, bool) {
	if v, ok := r.Lookup(CategoryTime, utterance); ok {
		return v, true
	}
	m := clockPattern.FindStringSubmatch(Normalize(utterance))
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm", "p.m":
		if hour < 12 {
			hour += 12
		}
	case "am", "a.m":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// Number resolves a cardinal number from digits or words, e.g. "4" or "four".
func (r *Resolver) Number(utterance string) (int, bool) {
	norm := Normalize(utterance)
	if n, err := strconv.Atoi(norm); err == nil {
		return n, true
	}
	v, ok := r.Lookup(CategoryNumber, norm)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Intent returns the top NLU intent when it is one of the allowed labels.
// With no allowed labels any intent is returned.
func (r *Resolver) Intent(res *domain.RecognitionResult, allowed ...string) (string, bool) {
	if res == nil {
		return "", false
	}
	intent := res.Interpretation.Intent()
	if intent == "" {
		return "", false
	}
	if len(allowed) == 0 {
		return intent, true
	}
	for _, a := range allowed {
		if Normalize(a) == Normalize(intent) {
			return a, true
		}
	}
	return "", false
}
