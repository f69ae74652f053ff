package turn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	cmds []domain.Command
	err  error
}

func (r *recorder) Send(_ context.Context, cmd domain.Command) error {
	r.cmds = append(r.cmds, cmd)
	return r.err
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("turn-%d", n)
	}
}

func always(string) bool { return true }

func newTestExecutor(collab ports.Collaborator) *Executor {
	return NewExecutor(collab, WithSessionID("sess-1"), WithIDGenerator(sequentialIDs()))
}

func TestExecutor_CommandsCarryTurnAndSession(t *testing.T) {
	rec := &recorder{}
	x := newTestExecutor(rec)
	ctx := context.Background()

	_, err := x.Prepare(ctx, "prepare")
	require.NoError(t, err)
	_, err = x.Speak(ctx, "greet", "Hello", domain.VoiceOptions{Voice: "en-US-DavisNeural"})
	require.NoError(t, err)
	_, err = x.Listen(ctx, "ask", domain.ListenOptions{NLU: true})
	require.NoError(t, err)

	require.Len(t, rec.cmds, 3)
	assert.Equal(t, domain.CommandPrepare, rec.cmds[0].Type)
	assert.Equal(t, "turn-1", rec.cmds[0].TurnID)
	assert.Nil(t, rec.cmds[0].Voice)

	assert.Equal(t, "Hello", rec.cmds[1].Utterance)
	require.NotNil(t, rec.cmds[1].Voice)
	assert.Equal(t, "en-US-DavisNeural", rec.cmds[1].Voice.Voice)

	require.NotNil(t, rec.cmds[2].Listen)
	assert.True(t, rec.cmds[2].Listen.NLU)
	for _, c := range rec.cmds {
		assert.Equal(t, "sess-1", c.SessionID)
	}

	h, ok := x.InFlight()
	require.True(t, ok)
	assert.Equal(t, "turn-3", h.TurnID, "the latest request supersedes earlier ones")
	assert.Equal(t, domain.TurnListening, x.Phase())
}

func TestExecutor_AcceptAttributesTurn(t *testing.T) {
	x := newTestExecutor(&recorder{})
	_, _ = x.Speak(context.Background(), "greet", "Hi", domain.VoiceOptions{})

	ev, reason, ok := x.Accept(domain.Event{Type: domain.EventSpeakComplete}, always)
	require.True(t, ok, reason)
	assert.Equal(t, "turn-1", ev.TurnID)

	_, ok = x.InFlight()
	assert.False(t, ok, "completion ends the request")
}

func TestExecutor_ExactlyOneTerminalPerListen(t *testing.T) {
	x := newTestExecutor(&recorder{})
	_, _ = x.Listen(context.Background(), "ask", domain.ListenOptions{})

	_, _, ok := x.Accept(domain.Recognised("monday"), always)
	require.True(t, ok)
	assert.Equal(t, domain.TurnNone, x.Phase())

	_, reason, ok := x.Accept(domain.Event{Type: domain.EventNoInput}, always)
	assert.False(t, ok)
	assert.Equal(t, domain.ReasonDuplicate, reason)

	_, _, ok = x.Accept(domain.Event{Type: domain.EventListenComplete}, always)
	assert.True(t, ok)
}

func TestExecutor_StaleEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("No request in flight", func(t *testing.T) {
		x := newTestExecutor(&recorder{})
		_, reason, ok := x.Accept(domain.Event{Type: domain.EventSpeakComplete}, always)
		assert.False(t, ok)
		assert.Equal(t, domain.ReasonStale, reason)
	})

	t.Run("Superseded turn id", func(t *testing.T) {
		x := newTestExecutor(&recorder{})
		_, _ = x.Listen(ctx, "ask", domain.ListenOptions{})
		_, _ = x.Speak(ctx, "confirm", "Really?", domain.VoiceOptions{})

		_, reason, ok := x.Accept(domain.Event{Type: domain.EventRecognised, TurnID: "turn-1"}, always)
		assert.False(t, ok)
		assert.Equal(t, domain.ReasonStale, reason)
	})

	t.Run("Wrong kind", func(t *testing.T) {
		x := newTestExecutor(&recorder{})
		_, _ = x.Speak(ctx, "greet", "Hi", domain.VoiceOptions{})
		_, _, ok := x.Accept(domain.Event{Type: domain.EventListenComplete}, always)
		assert.False(t, ok)
	})

	t.Run("Issuing state inactive", func(t *testing.T) {
		x := newTestExecutor(&recorder{})
		_, _ = x.Listen(ctx, "ask", domain.ListenOptions{})
		_, reason, ok := x.Accept(domain.Recognised("yes"), func(id string) bool { return id != "ask" })
		assert.False(t, ok)
		assert.Equal(t, domain.ReasonStale, reason)
	})
}

func TestExecutor_NonCollaboratorEventsPassThrough(t *testing.T) {
	x := newTestExecutor(&recorder{})
	ev, _, ok := x.Accept(domain.Event{Type: domain.EventClick}, func(string) bool { return false })
	assert.True(t, ok)
	assert.Empty(t, ev.TurnID)
}

func TestExecutor_SendFailure(t *testing.T) {
	x := newTestExecutor(&recorder{err: errors.New("socket closed")})
	_, err := x.Speak(context.Background(), "greet", "Hi", domain.VoiceOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPEAK")

	_, ok := x.InFlight()
	assert.False(t, ok)
}
