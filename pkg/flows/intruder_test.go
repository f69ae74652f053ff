package flows_test

import (
	"fmt"
	"testing"

	"github.com/aretw0/parlance/pkg/flows"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intruder(t *testing.T, seed uint64) *harness {
	t.Helper()
	def, err := flows.Intruder(grammar.New())
	require.NoError(t, err)
	h := start(t, def, seed)
	h.click()
	return h
}

// listen plays the thinking time out and waits at the answer prompt.
func (h *harness) listen() {
	h.t.Helper()
	h.spoken()
	assert.Equal(h.t, "think", h.state())
	assert.Equal(h.t, 1, h.clock.Pending())
	h.clock.Advance(flows.DefaultThinkingTime)
	h.heard("Time's up! Which word is the intruder?")
	assert.Equal(h.t, "answer.listen", h.state())
}

func TestIntruder_Round(t *testing.T) {
	h := intruder(t, 3)

	ctx := h.ctx()
	words := ctx.Strings("words")
	odd := ctx.String("intruder")
	category := ctx.String("category")
	require.Len(t, words, 4)
	assert.Contains(t, words, odd)

	bank := flows.DefaultWordBank()
	assert.NotContains(t, bank[category], odd)
	for _, w := range words {
		if w != odd {
			assert.Contains(t, bank[category], w)
		}
	}
	assert.Contains(t, h.collab.Spoken()[0], "Listen carefully: ")

	h.listen()
	h.say("I think " + odd)
	h.heard(fmt.Sprintf("Well done! %s is not one of the %s.", odd, category))
	assert.Equal(t, 1, h.ctx().Counter("score"))
	assert.Equal(t, []string{odd}, h.ctx().Strings("discovered"))
	h.heard("Your score is 1 out of 1. Do you want to play again?")

	h.say("yes")
	assert.Equal(t, "present", h.state())
	assert.Equal(t, 2, h.ctx().Counter("rounds"))
	second := h.ctx().String("intruder")

	h.listen()
	var wrong string
	for _, w := range h.ctx().Strings("words") {
		if w != second {
			wrong = w
			break
		}
	}
	h.say(wrong)
	h.heard(fmt.Sprintf("Not quite. The intruder was %s.", second))
	h.heard("Your score is 1 out of 2. Do you want to play again?")

	h.say("no")
	h.heard(fmt.Sprintf("Thanks for playing! You found %s.", odd))
	assert.Equal(t, "idle", h.state())
}

func TestIntruder_EarlyAnswerIgnored(t *testing.T) {
	h := intruder(t, 1)
	h.spoken()

	h.say(h.ctx().String("intruder"))
	assert.Equal(t, "think", h.state())
	assert.Zero(t, h.ctx().Counter("score"))
}

func TestIntruder_SilenceReveals(t *testing.T) {
	h := intruder(t, 5)
	odd := h.ctx().String("intruder")

	h.listen()
	h.say("pardon")
	h.heard("Sorry, I didn't understand. Time's up! Which word is the intruder?")
	h.silence()
	h.heard("I didn't hear you. Time's up! Which word is the intruder?")
	h.silence()
	h.heard(fmt.Sprintf("The intruder was %s.", odd))
	h.heard("Your score is 0 out of 1. Do you want to play again?")

	h.say("help")
	h.heard("Say the word that does not belong with the others. After each round, say yes to play again.")
	h.heard("Your score is 0 out of 1. Do you want to play again?")
	h.say("no")
	h.heard("Thanks for playing!")
}

func TestIntruder_SeededDeal(t *testing.T) {
	a := intruder(t, 42).ctx()
	b := intruder(t, 42).ctx()
	assert.Equal(t, a.Strings("words"), b.Strings("words"))
	assert.Equal(t, a.String("intruder"), b.String("intruder"))
}

func TestIntruder_Options(t *testing.T) {
	_, err := flows.Intruder(grammar.New(), flows.WithWordBank(map[string][]string{"a": {"x", "y", "z"}}))
	assert.ErrorContains(t, err, "at least two categories")

	_, err = flows.Intruder(grammar.New(), flows.WithWordBank(map[string][]string{
		"a": {"x", "y", "z"},
		"b": {"w"},
	}))
	assert.ErrorContains(t, err, "category b needs at least 3 words")

	_, err = flows.Intruder(grammar.New(), flows.WithThinkingTime(0))
	assert.ErrorContains(t, err, "thinking time")

	def, err := flows.Intruder(grammar.New(), flows.WithWordBank(map[string][]string{
		"a": {"x", "y", "z"},
		"b": {"w", "v", "u"},
	}))
	require.NoError(t, err)
	h := start(t, def, 9)
	h.click()
	assert.Len(t, h.ctx().Strings("words"), 4)
}
