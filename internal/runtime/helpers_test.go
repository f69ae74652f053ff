package runtime_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/parlance/internal/runtime"
	"github.com/aretw0/parlance/internal/testutils"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/stretchr/testify/require"
)

func atomic(id string) *domain.Node {
	return &domain.Node{ID: id, Kind: domain.NodeAtomic}
}

func speak(id, text, next string) *domain.Node {
	return &domain.Node{
		ID:    id,
		Kind:  domain.NodeAtomic,
		Entry: domain.Entry{Kind: domain.EntrySpeak, Text: text},
		On:    map[domain.EventType][]domain.Transition{domain.EventSpeakComplete: {{Target: next}}},
	}
}

func listen(id string) *domain.Node {
	return &domain.Node{ID: id, Kind: domain.NodeAtomic, Entry: domain.Entry{Kind: domain.EntryListen}}
}

// question is a compound that speaks a prompt, then listens.
// Recognition handlers are declared on the compound itself.
func question(id string, say func(domain.Context) string, on map[domain.EventType][]domain.Transition) *domain.Node {
	prompt := speak(id+".prompt", "", id+".listen")
	prompt.Entry.Say = say
	return &domain.Node{
		ID:       id,
		Kind:     domain.NodeCompound,
		Initial:  id + ".prompt",
		On:       on,
		Children: []*domain.Node{prompt, listen(id + ".listen")},
	}
}

func text(s string) func(domain.Context) string {
	return func(domain.Context) string { return s }
}

func final(id string) *domain.Node {
	return &domain.Node{ID: id, Kind: domain.NodeFinal}
}

// bookingFlow asks for a day, confirms it, and gives up after two
// consecutive no-inputs.
func bookingFlow(r *grammar.Resolver) *domain.Definition {
	dayKnown := func(ctx domain.Context, _ domain.Event) bool {
		_, ok := r.Day(ctx.Utterance())
		return ok
	}
	setDay := func(ctx domain.Context, _ domain.Event) domain.Patch {
		day, _ := r.Day(ctx.Utterance())
		return domain.Patch{Slots: map[string]any{"day": day}, Counters: map[string]int{"noinput": 0}}
	}
	missed := func(ctx domain.Context, _ domain.Event) domain.Patch {
		return domain.Patch{Counters: map[string]int{"noinput": ctx.Counter("noinput") + 1}}
	}
	answered := func(yes bool) domain.Guard {
		return func(ctx domain.Context, _ domain.Event) bool {
			v, ok := r.Affirmative(ctx.Utterance())
			return ok && v == yes
		}
	}

	prepare := atomic("prepare")
	prepare.Entry.Kind = domain.EntryPrepare
	prepare.On = map[domain.EventType][]domain.Transition{domain.EventReady: {{Target: "greet"}}}

	idle := atomic("idle")
	idle.On = map[domain.EventType][]domain.Transition{domain.EventClick: {{Target: "greet", Reset: true}}}

	return &domain.Definition{
		ID:      "booking",
		Initial: "prepare",
		States: []*domain.Node{
			prepare,
			speak("greet", "Hello", "ask_day"),
			question("ask_day", text("Which day?"), map[domain.EventType][]domain.Transition{
				domain.EventRecognised: {
					{Guard: dayKnown, Update: setDay, Target: "confirm_day", Label: "day"},
					{Target: "ask_day", Label: "not understood"},
				},
				domain.EventNoInput: {
					{Guard: func(ctx domain.Context, _ domain.Event) bool { return ctx.Counter("noinput") >= 1 }, Update: missed, Target: "goodbye"},
					{Update: missed, Target: "ask_day"},
				},
			}),
			question("confirm_day", func(ctx domain.Context) string {
				return fmt.Sprintf("Did you say %s?", ctx.String("day"))
			}, map[domain.EventType][]domain.Transition{
				domain.EventRecognised: {
					{Guard: answered(true), Target: "booked"},
					{Guard: answered(false), Target: "ask_day", Update: func(domain.Context, domain.Event) domain.Patch {
						return domain.Patch{Unset: []string{"day"}}
					}},
					{Target: "confirm_day"},
				},
			}),
			{ID: "booked", Kind: domain.NodeAtomic,
				Entry: domain.Entry{Kind: domain.EntrySpeak, Say: func(ctx domain.Context) string {
					return "Booked for " + ctx.String("day")
				}},
				On: map[domain.EventType][]domain.Transition{domain.EventSpeakComplete: {{Target: "finished"}}},
			},
			speak("goodbye", "Goodbye", "idle"),
			idle,
			final("finished"),
		},
	}
}

type harness struct {
	t      *testing.T
	m      *runtime.Machine
	collab *testutils.Collaborator
	clock  *testutils.FakeClock
}

func newHarness(t *testing.T, def *domain.Definition, opts ...runtime.Option) *harness {
	t.Helper()
	h := &harness{t: t, collab: &testutils.Collaborator{}, clock: testutils.NewFakeClock()}
	all := append([]runtime.Option{
		runtime.WithSessionID("sess-1"),
		runtime.WithCollaborator(h.collab),
		runtime.WithClock(h.clock),
		runtime.WithSeed(42),
	}, opts...)
	m, err := runtime.New(def, all...)
	require.NoError(t, err)
	h.m = m
	t.Cleanup(m.Stop)
	return h
}

func (h *harness) start() *harness {
	h.t.Helper()
	require.NoError(h.t, h.m.Start(context.Background()))
	return h
}

func (h *harness) send(ev domain.Event) {
	h.t.Helper()
	require.NoError(h.t, h.m.Send(context.Background(), ev))
}

func (h *harness) ready() { h.t.Helper(); h.send(domain.Event{Type: domain.EventReady}) }
func (h *harness) spoken() { h.t.Helper(); h.send(domain.Event{Type: domain.EventSpeakComplete}) }
func (h *harness) say(u string) { h.t.Helper(); h.send(domain.Recognised(u)) }
func (h *harness) silence() { h.t.Helper(); h.send(domain.Event{Type: domain.EventNoInput}) }
func (h *harness) click() { h.t.Helper(); h.send(domain.Event{Type: domain.EventClick}) }
func (h *harness) value() string { return h.m.Snapshot().Value }

func (h *harness) lastSpoken() string {
	s := h.collab.Spoken()
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

// toDayListen drives the booking flow to the day question's listen state.
func (h *harness) toDayListen() {
	h.t.Helper()
	h.start()
	h.ready()
	h.spoken() // greet
	h.spoken() // ask_day.prompt
	require.Equal(h.t, "ask_day.listen", h.value())
}
