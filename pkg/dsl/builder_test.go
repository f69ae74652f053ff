package dsl

import (
	"testing"
	"time"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_QuestionGeneratesPromptAndListen(t *testing.T) {
	r := grammar.New()
	b := New("booking")

	b.Prepare("prepare").On(domain.EventReady, "ask_day")
	b.Question("ask_day", "Which day?").
		WithNLU().
		Voice(domain.VoiceOptions{Voice: "en-US-AriaNeural"}).
		On(domain.EventRecognised, "done", When(Matches(r, grammar.CategoryDay)), Do(Capture(r, grammar.CategoryDay, "day"))).
		On(domain.EventRecognised, "ask_day", Label("not understood"))
	b.Final("done")

	def, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "prepare", def.Initial, "first top-level state is initial")
	require.Len(t, def.States, 3)

	ask := def.States[1]
	assert.Equal(t, domain.NodeCompound, ask.Kind)
	assert.Equal(t, "ask_day.prompt", ask.Initial)
	require.Len(t, ask.Children, 2)

	prompt, listen := ask.Children[0], ask.Children[1]
	assert.Equal(t, domain.EntrySpeak, prompt.Entry.Kind)
	assert.Equal(t, "Which day?", prompt.Entry.Utterance(domain.Context{}))
	assert.Equal(t, "en-US-AriaNeural", prompt.Entry.Voice.Voice)
	assert.Equal(t, "ask_day.listen", prompt.On[domain.EventSpeakComplete][0].Target)

	assert.Equal(t, domain.EntryListen, listen.Entry.Kind)
	assert.True(t, listen.Entry.Listen.NLU)

	ts := ask.On[domain.EventRecognised]
	require.Len(t, ts, 2)
	assert.Equal(t, "done", ts[0].Target)
	assert.NotNil(t, ts[0].Guard)
	assert.Equal(t, "not understood", ts[1].Label)
}

func TestBuilder_HistoryTimersAndInitial(t *testing.T) {
	b := New("game").Initial("main").Context("score", 0)

	b.Compound("main", "main.think")
	b.Say("main.think", "Think for five seconds").In("main").
		After(5*time.Second, "main.answer")
	b.Listen("main.answer").In("main").
		Stay(domain.EventNoInput, Do(Increment("silence")))
	b.History("main.hist", "main", domain.HistoryShallow).Default("main.answer")
	b.Say("help", "Say a word").Then("main.hist")

	def, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "main", def.Initial)
	assert.Equal(t, 0, def.Context["score"])

	main := def.States[0]
	require.Len(t, main.Children, 3)
	assert.Equal(t, 5*time.Second, main.Children[0].After[0].Delay)
	assert.True(t, main.Children[1].On[domain.EventNoInput][0].Internal())
	assert.Equal(t, domain.NodeHistory, main.Children[2].Kind)
	assert.Equal(t, "main.answer", main.Children[2].Default)
}

func TestBuilder_InvalidFlow(t *testing.T) {
	b := New("broken")
	b.Say("start", "Hi").Then("nowhere")

	_, err := b.Build()
	var defErr *domain.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "start", defErr.StateID)

	b2 := New("orphan")
	b2.Add("child").In("ghost")
	_, err = b2.Build()
	require.ErrorAs(t, err, &defErr)

	assert.Panics(t, func() { New("empty").MustBuild() })
}

func TestBuilder_AddReturnsExisting(t *testing.T) {
	b := New("x")
	first := b.Add("a")
	assert.Same(t, first, b.Add("a"))
}
