package flows

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/dsl"
	"github.com/aretw0/parlance/pkg/grammar"
)

// DefaultThinkingTime is how long the player hears nothing before answering.
const DefaultThinkingTime = 5 * time.Second

// groupSize is the number of words taken from the main category.
const groupSize = 3

// DefaultWordBank returns the categories the game draws from.
func DefaultWordBank() map[string][]string {
	return map[string][]string{
		"animals":     {"dog", "cat", "horse", "rabbit", "tiger", "sheep"},
		"fruits":      {"apple", "banana", "cherry", "mango", "pear", "grape"},
		"colors":      {"red", "green", "blue", "yellow", "purple", "orange"},
		"vehicles":    {"car", "bus", "train", "bicycle", "truck", "plane"},
		"instruments": {"piano", "guitar", "violin", "drum", "flute", "trumpet"},
	}
}

type intruderConfig struct {
	bank     map[string][]string
	thinking time.Duration
}

// IntruderOption configures the Intruder flow.
type IntruderOption func(*intruderConfig)

// WithWordBank replaces the word categories.
func WithWordBank(bank map[string][]string) IntruderOption {
	return func(c *intruderConfig) {
		c.bank = bank
	}
}

// WithThinkingTime changes the pause between the words and the question.
func WithThinkingTime(d time.Duration) IntruderOption {
	return func(c *intruderConfig) {
		c.thinking = d
	}
}

// Intruder builds the "guess the intruder" game.
//
// Each round the game reads out three words of one category and one word of
// another, in random order, and waits a fixed thinking time before asking
// which word does not belong. The score and the intruders found so far are
// kept in the "score" counter and the "discovered" slot of the session.
func Intruder(r *grammar.Resolver, opts ...IntruderOption) (*domain.Definition, error) {
	cfg := intruderConfig{bank: DefaultWordBank(), thinking: DefaultThinkingTime}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := checkBank(cfg.bank); err != nil {
		return nil, err
	}
	if cfg.thinking <= 0 {
		return nil, errors.New("thinking time must be positive")
	}

	b := dsl.New("intruder")

	b.Prepare("prepare").
		Describe("Wait for the speech service").
		On(domain.EventReady, "idle")
	b.Add("idle").
		Describe("Wait for a click").
		On(domain.EventClick, "game", dsl.Restart(), dsl.Label("start"))

	b.Compound("game", "deal").
		On(domain.EventClick, "game", dsl.Restart(), dsl.Label("restart")).
		OnDone("farewell")
	b.History("resume", "game", domain.HistoryShallow).Default("deal")

	b.Add("deal").In("game").
		Describe("Draw a new word set").
		Always("present", dsl.Do(deal(cfg.bank)), dsl.Label("deal"))

	b.SayFunc("present", func(ctx domain.Context) string {
		return fmt.Sprintf("Listen carefully: %s. Which one is the intruder?", listWords(ctx.Strings("words")))
	}).In("game").Then("think")

	b.Add("think").In("game").
		Describe("Thinking time").
		After(cfg.thinking, "answer", dsl.Label("time's up"))

	ask(b, "answer", static("Time's up! Which word is the intruder?"), "reveal", func(q *dsl.NodeBuilder) {
		q.On(domain.EventRecognised, "correct",
			dsl.When(guessed),
			dsl.Do(dsl.Combine(
				heard,
				dsl.Increment("score"),
				dsl.AppendUnique("discovered", func(ctx domain.Context) string { return ctx.String("intruder") }),
			)),
			dsl.Label("intruder"))
		q.On(domain.EventRecognised, "wrong",
			dsl.When(namedAnyWord),
			dsl.Do(heard),
			dsl.Label("other word"))
	}).In("game")

	b.SayFunc("correct", func(ctx domain.Context) string {
		return fmt.Sprintf("Well done! %s is not one of the %s.", ctx.String("intruder"), ctx.String("category"))
	}).In("game").Then("again")
	b.SayFunc("wrong", func(ctx domain.Context) string {
		return fmt.Sprintf("Not quite. The intruder was %s.", ctx.String("intruder"))
	}).In("game").Then("again")
	b.SayFunc("reveal", func(ctx domain.Context) string {
		return fmt.Sprintf("The intruder was %s.", ctx.String("intruder"))
	}).In("game").Then("again", dsl.Do(heard))

	ask(b, "again", func(ctx domain.Context) string {
		return fmt.Sprintf("Your score is %d out of %d. Do you want to play again?",
			ctx.Counter("score"), ctx.Counter("rounds"))
	}, "over", func(q *dsl.NodeBuilder) {
		q.On(domain.EventRecognised, "deal",
			dsl.When(dsl.Affirmative(r)),
			dsl.Do(heard),
			dsl.Label("yes"))
		q.On(domain.EventRecognised, "over",
			dsl.When(dsl.Negative(r)),
			dsl.Do(heard),
			dsl.Label("no"))
	}).In("game")

	b.Final("over").In("game")

	b.SayFunc("farewell", func(ctx domain.Context) string {
		found := ctx.Strings("discovered")
		if len(found) == 0 {
			return "Thanks for playing!"
		}
		return fmt.Sprintf("Thanks for playing! You found %s.", listWords(found))
	}).Then("idle")
	b.Say("help", "Say the word that does not belong with the others. After each round, say yes to play again.").
		Then("resume")

	return b.Build()
}

func checkBank(bank map[string][]string) error {
	if len(bank) < 2 {
		return errors.New("word bank needs at least two categories")
	}
	for name, words := range bank {
		if len(words) < groupSize {
			return fmt.Errorf("category %s needs at least %d words", name, groupSize)
		}
	}
	return nil
}

// deal draws the words of a round.
func deal(bank map[string][]string) domain.Update {
	categories := make([]string, 0, len(bank))
	for name := range bank {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	return func(ctx domain.Context, _ domain.Event) domain.Patch {
		first := ctx.Intn(len(categories))
		other := ctx.Intn(len(categories) - 1)
		if other >= first {
			other++
		}
		group := slices.Clone(ctx.Shuffle(bank[categories[first]])[:groupSize])
		odd := ctx.Pick(bank[categories[other]]...)
		return domain.Patch{
			Slots: map[string]any{
				"category": categories[first],
				"intruder": odd,
				"words":    ctx.Shuffle(append(group, odd)),
			},
			Counters: map[string]int{"rounds": ctx.Counter("rounds") + 1},
		}
	}
}

// mentions reports whether the utterance is the word or contains it.
func mentions(utterance, word string) bool {
	u, w := grammar.Normalize(utterance), grammar.Normalize(word)
	if w == "" {
		return false
	}
	return u == w || slices.Contains(strings.FieldsFunc(u, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), w)
}

func guessed(ctx domain.Context, _ domain.Event) bool {
	return mentions(ctx.Utterance(), ctx.String("intruder"))
}

func namedAnyWord(ctx domain.Context, _ domain.Event) bool {
	for _, w := range ctx.Strings("words") {
		if mentions(ctx.Utterance(), w) {
			return true
		}
	}
	return false
}

func listWords(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	}
	return strings.Join(words[:len(words)-1], ", ") + " and " + words[len(words)-1]
}
