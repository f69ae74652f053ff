package console_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parlance/pkg/adapters/console"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Send(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// syncBuffer guards the output written by Run while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	c   *console.Console
	in  *io.PipeWriter
	out *syncBuffer
	rec *recorder
}

func run(t *testing.T, opts ...console.Option) *fixture {
	t.Helper()
	pr, pw := io.Pipe()
	f := &fixture{in: pw, out: &syncBuffer{}, rec: &recorder{}}
	f.c = console.New(pr, f.out, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.c.Run(ctx, f.rec) }()
	t.Cleanup(func() {
		cancel()
		_ = pw.Close()
		<-done
	})
	return f
}

func (f *fixture) send(t *testing.T, cmd domain.Command) {
	t.Helper()
	require.NoError(t, f.c.Send(context.Background(), cmd))
}

func (f *fixture) waitFor(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.rec.types()) >= n }, time.Second, 5*time.Millisecond)
}

func TestConsole_PrepareAndSpeak(t *testing.T) {
	f := run(t, console.WithInteractive(false))

	f.send(t, domain.Command{Type: domain.CommandPrepare, TurnID: "t1"})
	f.send(t, domain.Command{Type: domain.CommandSpeak, TurnID: "t2", Utterance: "  Which day?  "})
	f.waitFor(t, 2)

	assert.Equal(t, []domain.EventType{domain.EventReady, domain.EventSpeakComplete}, f.rec.types())
	assert.Equal(t, "t2", f.rec.last().TurnID)
	assert.Equal(t, "system: Which day?\n", f.out.String())
}

func TestConsole_Listen(t *testing.T) {
	f := run(t, console.WithInteractive(false))

	f.send(t, domain.Command{Type: domain.CommandListen, TurnID: "t1"})
	_, err := io.WriteString(f.in, "monday\x1b\n")
	require.NoError(t, err)
	f.waitFor(t, 2)

	events := f.rec.types()
	assert.Equal(t, []domain.EventType{domain.EventRecognised, domain.EventListenComplete}, events)
	f.rec.mu.Lock()
	rec := f.rec.events[0]
	f.rec.mu.Unlock()
	assert.Equal(t, "t1", rec.TurnID)
	assert.Equal(t, "monday", rec.Result.Utterance)
	assert.Contains(t, f.out.String(), "user: monday")

	f.send(t, domain.Command{Type: domain.CommandListen, TurnID: "t2"})
	_, err = io.WriteString(f.in, "   \n")
	require.NoError(t, err)
	f.waitFor(t, 4)
	assert.Equal(t, domain.EventNoInput, f.rec.types()[2])
}

func TestConsole_NoInputTimeout(t *testing.T) {
	f := run(t, console.WithInteractive(true))

	f.send(t, domain.Command{
		Type:   domain.CommandListen,
		TurnID: "t1",
		Listen: &domain.ListenOptions{NoInputTimeout: 20 * time.Millisecond},
	})
	f.waitFor(t, 2)
	assert.Equal(t, []domain.EventType{domain.EventNoInput, domain.EventListenComplete}, f.rec.types())
	assert.True(t, strings.HasPrefix(f.out.String(), "> "))
}

func TestConsole_Clicks(t *testing.T) {
	t.Run("interactive line while idle", func(t *testing.T) {
		f := run(t, console.WithInteractive(true))
		_, err := io.WriteString(f.in, "\n")
		require.NoError(t, err)
		f.waitFor(t, 1)
		assert.Equal(t, domain.EventClick, f.rec.last().Type)
	})

	t.Run("scripted input waits for the listen", func(t *testing.T) {
		f := run(t, console.WithInteractive(false))
		_, err := io.WriteString(f.in, console.ClickLine+"\n")
		require.NoError(t, err)
		f.waitFor(t, 1)

		go func() { _, _ = io.WriteString(f.in, "yes\n") }()
		time.Sleep(20 * time.Millisecond)
		assert.Len(t, f.rec.types(), 1, "held until a listen is requested")

		f.send(t, domain.Command{Type: domain.CommandListen, TurnID: "t9"})
		f.waitFor(t, 3)
		assert.Equal(t, []domain.EventType{domain.EventClick, domain.EventRecognised, domain.EventListenComplete}, f.rec.types())
	})
}

func TestConsole_Renderer(t *testing.T) {
	f := run(t,
		console.WithInteractive(false),
		console.WithRenderer(func(s string) (string, error) { return "<" + s + ">\n\n", nil }),
	)
	f.send(t, domain.Command{Type: domain.CommandSpeak, TurnID: "t1", Utterance: "hi"})
	f.waitFor(t, 1)
	assert.Equal(t, "system: <hi>\n", f.out.String())
}

func TestConsole_EndOfInput(t *testing.T) {
	c := console.New(strings.NewReader("hello\nworld"), io.Discard, console.WithInteractive(false))
	rec := &recorder{}
	require.NoError(t, c.Send(context.Background(), domain.Command{Type: domain.CommandListen, TurnID: "t1"}))

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), rec) }()

	// "world" is held until the second listen.
	require.Eventually(t, func() bool { return len(rec.types()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Send(context.Background(), domain.Command{Type: domain.CommandListen, TurnID: "t2"}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return at end of input")
	}
	assert.Len(t, rec.types(), 4)
	assert.Equal(t, "t2", rec.last().TurnID)
}
