package grammar

import (
	"strings"
	"unicode"
)

// Normalize lowercases the utterance, trims surrounding punctuation and
// collapses runs of whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.Join(strings.Fields(s), " ")
}
