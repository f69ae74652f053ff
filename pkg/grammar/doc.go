// Package grammar resolves recognized utterances and NLU payloads into
// canonical slot values.
//
// A Resolver is a pure lookup over a Lexicon: category → normalized phrase →
// canonical value. Matching is exact and case-insensitive after trimming
// punctuation. Absence is reported with a boolean, never an error.
package grammar
