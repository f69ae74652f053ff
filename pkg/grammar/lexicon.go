package grammar

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Built-in categories.
const (
	CategoryYesNo     = "yes_no"
	CategoryPerson    = "person"
	CategoryDay       = "day"
	CategoryTime      = "time"
	CategoryNumber    = "number"
	CategoryDirection = "direction"
)

// Canonical values of the yes_no category.
const (
	Yes = "yes"
	No  = "no"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Lexicon maps category → normalized phrase → canonical value.
type Lexicon map[string]map[string]string

// ParseLexicon decodes a YAML lexicon.
//
//	day:
//	  Monday: [monday, mon]
//
// The canonical value is itself always a match.
func ParseLexicon(r io.Reader) (Lexicon, error) {
	var raw map[string]map[string][]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return Lexicon{}, nil
		}
		return nil, fmt.Errorf("failed to decode lexicon: %w", err)
	}
	return NewLexicon(raw)
}

// NewLexicon builds a lexicon from category → canonical value → phrases.
// A phrase mapping to two canonical values of one category is an error.
func NewLexicon(raw map[string]map[string][]string) (Lexicon, error) {
	lex := make(Lexicon, len(raw))
	for category, entries := range raw {
		table := make(map[string]string)
		for canonical, phrases := range entries {
			table[Normalize(canonical)] = canonical
			for _, p := range phrases {
				key := Normalize(p)
				if prev, ok := table[key]; ok && prev != canonical {
					return nil, fmt.Errorf("lexicon category '%s': phrase '%s' maps to both '%s' and '%s'", category, p, prev, canonical)
				}
				table[key] = canonical
			}
		}
		lex[Normalize(category)] = table
	}
	return lex, nil
}

// LoadLexicon reads a YAML lexicon file.
func LoadLexicon(path string) (Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseLexicon(f)
}

// Merge returns a copy of l with the entries of o added; o wins on conflicts.
func (l Lexicon) Merge(o Lexicon) Lexicon {
	out := make(Lexicon, len(l)+len(o))
	for c, t := range l {
		out[c] = maps.Clone(t)
	}
	for c, t := range o {
		if out[c] == nil {
			out[c] = make(map[string]string, len(t))
		}
		maps.Copy(out[c], t)
	}
	return out
}

// Values lists the distinct canonical values of a category.
func (l Lexicon) Values(category string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range l[Normalize(category)] {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

func mustDefault() Lexicon {
	lex, err := ParseLexicon(bytes.NewReader(defaultLexicon))
	if err != nil {
		panic(fmt.Sprintf("grammar: embedded lexicon: %v", err))
	}
	return lex
}
