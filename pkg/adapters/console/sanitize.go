package console

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxInputSize is the longest utterance accepted from the terminal.
const MaxInputSize = 4096

// clean trims the line, drops invalid UTF-8 and strips control characters
// such as ANSI escapes so they never reach transcripts or logs.
func clean(input string) string {
	input = strings.TrimSpace(input)
	if len(input) > MaxInputSize {
		input = input[:MaxInputSize]
	}
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' {
			return -1
		}
		return r
	}, input)
}
