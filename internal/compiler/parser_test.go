package compiler_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/parlance/internal/compiler"
	"github.com/aretw0/parlance/internal/runtime"
	"github.com/aretw0/parlance/internal/testutils"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/dsl"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/aretw0/parlance/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T, opts ...compiler.Option) *domain.Definition {
	t.Helper()
	def, err := compiler.NewParser(opts...).ParseFile(filepath.Join("testdata", "pizza.yaml"))
	require.NoError(t, err)
	return def
}

func find(def *domain.Definition, id string) *domain.Node {
	for _, n := range def.Nodes() {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func TestParser_Structure(t *testing.T) {
	def := parseFixture(t)

	assert.Equal(t, "pizza", def.ID)
	assert.Equal(t, "setup", def.Initial)
	assert.Equal(t, map[string]any{"size": ""}, def.Context)

	order := find(def, "order")
	require.NotNil(t, order)
	assert.Equal(t, domain.NodeCompound, order.Kind)
	assert.Equal(t, "ask_size", order.Initial)
	assert.Equal(t, domain.HistoryShallow, order.History)
	assert.Contains(t, order.On, domain.DoneEvent("order"))

	ask := find(def, "ask_size")
	require.NotNil(t, ask)
	assert.Equal(t, "ask_size"+dsl.PromptSuffix, ask.Initial)

	listen := find(def, "ask_size"+dsl.ListenSuffix)
	require.NotNil(t, listen)
	assert.Equal(t, domain.EntryListen, listen.Entry.Kind)
	assert.True(t, listen.Entry.Listen.NLU)
	assert.Equal(t, 5*time.Second, listen.Entry.Listen.NoInputTimeout)

	recognised := ask.On[domain.EventRecognised]
	require.Len(t, recognised, 2)
	assert.Equal(t, "confirm", recognised[0].Target)
	assert.Equal(t, "matches", recognised[0].Label)
	assert.NotNil(t, recognised[0].Guard)
	assert.NotNil(t, recognised[0].Update)
	assert.Nil(t, recognised[1].Guard)

	goodbye := find(def, "goodbye")
	require.NotNil(t, goodbye)
	assert.True(t, goodbye.On[domain.EventClick][0].Reset)

	assert.Equal(t, domain.NodeFinal, find(def, "placed").Kind)
	assert.Equal(t, domain.EntryPrepare, find(def, "setup").Entry.Kind)
}

func TestParser_RunsConversation(t *testing.T) {
	def := parseFixture(t)
	collab := &testutils.Collaborator{}
	m, err := runtime.New(def,
		runtime.WithCollaborator(collab),
		runtime.WithClock(testutils.NewFakeClock()),
		runtime.WithSeed(7),
	)
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	ctx := context.Background()
	send := func(ev domain.Event) {
		t.Helper()
		require.NoError(t, m.Send(ctx, ev))
	}
	spoken := func() { send(domain.Event{Type: domain.EventSpeakComplete}) }
	last := func() string {
		s := collab.Spoken()
		require.NotEmpty(t, s)
		return s[len(s)-1]
	}

	require.NoError(t, m.Start(ctx))
	send(domain.Event{Type: domain.EventReady})
	assert.Contains(t, []string{"Hello!", "Hi there!"}, last())
	spoken()
	assert.Equal(t, "What size would you like?", last())
	spoken()
	assert.Equal(t, "ask_size.listen", m.Snapshot().Value)

	// Flow-local lexicon: "big" is a synonym of "large".
	send(domain.Recognised("Big!"))
	assert.Equal(t, "large", m.Snapshot().Context.String("size"))
	assert.Equal(t, "A large pizza, right?", last())
	spoken()

	// Help leaves the compound; coming back resumes the confirmation.
	send(domain.Recognised("help"))
	assert.Equal(t, "help", m.Snapshot().Value)
	spoken()
	assert.Equal(t, "confirm.prompt", m.Snapshot().Value)
	assert.Equal(t, "A large pizza, right?", last())
	spoken()

	send(domain.Recognised("of course"))
	assert.Equal(t, "Your large pizza is on its way.", last())
	spoken()
	snap := m.Snapshot()
	assert.Equal(t, "end", snap.Value)
	assert.Equal(t, domain.StatusDone, snap.Status)
}

func TestParser_CustomGuardAndUpdate(t *testing.T) {
	src := []byte(`
id: custom
states:
  - id: ask
    listen: true
    on:
      RECOGNISED:
        - target: ok
          when: {long: {min: 3}}
          unless: {said: {phrases: [stop]}}
          do: [shout, {set: {slot: seen, value: true}}]
        - ask
  - id: ok
    final: true
`)
	p := compiler.NewParser(
		compiler.WithGuard("long", func(args map[string]any) (domain.Guard, error) {
			n := args["min"].(int)
			return func(ctx domain.Context, _ domain.Event) bool { return len(ctx.Utterance()) >= n }, nil
		}),
		compiler.WithUpdate("shout", func(map[string]any) (domain.Update, error) {
			return func(ctx domain.Context, _ domain.Event) domain.Patch {
				return domain.Patch{Slots: map[string]any{"loud": ctx.Utterance() + "!"}}
			}, nil
		}),
	)
	def, err := p.Parse(src)
	require.NoError(t, err)

	tr := find(def, "ask").On[domain.EventRecognised][0]
	assert.Equal(t, "long && !said", tr.Label)

	base := domain.NewContext(nil, nil)
	assert.True(t, tr.Allows(base.WithResult(&domain.RecognitionResult{Utterance: "hello"}), domain.Event{}))
	assert.False(t, tr.Allows(base.WithResult(&domain.RecognitionResult{Utterance: "stop"}), domain.Event{}))
	assert.False(t, tr.Allows(base.WithResult(&domain.RecognitionResult{Utterance: "hi"}), domain.Event{}))

	patch := tr.Update(base.WithResult(&domain.RecognitionResult{Utterance: "hello"}), domain.Event{})
	assert.Equal(t, "hello!", patch.Slots["loud"])
	assert.Equal(t, true, patch.Slots["seen"])
}

func TestParser_RegistryWithFlowLexicon(t *testing.T) {
	reg := registry.Default(grammar.New())
	reg.RegisterGuard("lucky", func(map[string]any) (domain.Guard, error) {
		return func(domain.Context, domain.Event) bool { return true }, nil
	})
	always := func(map[string]any) (domain.Guard, error) {
		return func(domain.Context, domain.Event) bool { return true }, nil
	}
	p := compiler.NewParser(compiler.WithRegistry(reg), compiler.WithGuard("extra", always))

	def, err := p.Parse([]byte(`
id: colors
lexicon: {color: {red: [red, crimson]}}
states:
  - id: ask
    listen: true
    on:
      RECOGNISED:
        - target: done
          when: [lucky, extra, {matches: {category: color}}]
        - ask
  - id: done
    final: true
`))
	require.NoError(t, err)

	tr := find(def, "ask").On[domain.EventRecognised][0]
	base := domain.NewContext(nil, nil)
	assert.True(t, tr.Allows(base.WithResult(&domain.RecognitionResult{Utterance: "crimson"}), domain.Event{}))
	assert.False(t, tr.Allows(base.WithResult(&domain.RecognitionResult{Utterance: "blue"}), domain.Event{}))

	_, err = p.Parse([]byte("id: plain\nstates:\n  - id: a\n    always: {target: b, when: lucky}\n  - id: b\n    final: true\n"))
	require.NoError(t, err)

	guards, _ := reg.Names()
	assert.Contains(t, guards, "lucky")
	assert.NotContains(t, guards, "extra")
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"malformed", "id: [", "failed to parse flow"},
		{"missing id", "states: [{id: a}]", "flow missing id"},
		{"unknown field", "id: x\nstates: [{id: a, speak: hi}]", "field speak not found"},
		{"unknown guard", "id: x\nstates:\n  - id: a\n    on: {CLICK: {target: a, when: nope}}", "guard not found: nope"},
		{"bad guard args", "id: x\nstates:\n  - id: a\n    on: {CLICK: {target: a, when: {has_slot: {}}}}", "missing argument 'slot'"},
		{"unknown target", "id: x\nstates:\n  - id: a\n    on: {CLICK: b}", "transition to unknown state 'b'"},
		{"top-level history", "id: x\nstates: [{id: h, kind: history}]", "history state must be nested"},
		{"bad template", "id: x\nstates: [{id: a, say: '{{.x'}]", "invalid prompt template"},
		{"lexicon conflict", "id: x\nlexicon: {c: {a: [z], b: [z]}}\nstates: [{id: a}]", "flow x"},
		{"zero delay", "id: x\nstates:\n  - id: a\n    after: [{delay: 0s, target: a}]", "positive delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.NewParser().Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParser_AfterAndHistoryState(t *testing.T) {
	src := []byte(`
id: timers
states:
  - id: game
    states:
      - id: think
        after:
          - delay: 5s
            target: answer
      - id: answer
        listen: true
      - id: back
        kind: history
        history: deep
        default: think
    on:
      CLICK: pause
  - id: pause
    on:
      CLICK: back
`)
	def, err := compiler.NewParser().Parse(src)
	require.NoError(t, err)

	think := find(def, "think")
	require.Len(t, think.After, 1)
	assert.Equal(t, 5*time.Second, think.After[0].Delay)
	assert.Equal(t, "answer", think.After[0].Target)

	back := find(def, "back")
	assert.Equal(t, domain.NodeHistory, back.Kind)
	assert.Equal(t, domain.HistoryDeep, back.History)
	assert.Equal(t, "think", back.Default)
	assert.Equal(t, "think", find(def, "game").Initial)
}
