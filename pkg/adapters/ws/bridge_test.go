package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parlance/pkg/adapters/ws"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recorder) Send(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) list() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func serve(t *testing.T, hub *ws.Hub, sink *recorder) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, strings.TrimPrefix(r.URL.Path, "/"), sink)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func write(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))
}

func TestBridge_RelaysCommandsAndEvents(t *testing.T) {
	hub := ws.NewHub()
	sink := &recorder{}
	conn := dial(t, serve(t, hub, sink)+"/s1")

	b := hub.Bridge("s1")
	require.Eventually(t, b.Connected, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Send(context.Background(), domain.Command{Type: domain.CommandSpeak, TurnID: "t1", Utterance: "Which day?"}))
	var cmd domain.Command
	read(t, conn, &cmd)
	assert.Equal(t, domain.CommandSpeak, cmd.Type)
	assert.Equal(t, "Which day?", cmd.Utterance)

	write(t, conn, domain.Event{Type: domain.EventSpeakComplete, TurnID: "t1"})
	write(t, conn, domain.Event{Type: domain.EventRecognised, Result: &domain.RecognitionResult{Utterance: "monday"}})
	require.Eventually(t, func() bool { return len(sink.list()) == 2 }, time.Second, 5*time.Millisecond)

	events := sink.list()
	assert.Equal(t, "t1", events[0].TurnID)
	assert.Equal(t, "monday", events[1].Result.Utterance)
}

func TestBridge_FlushesPendingOnConnect(t *testing.T) {
	hub := ws.NewHub()
	collab, err := hub.Collaborator("s2")
	require.NoError(t, err)
	require.NoError(t, collab.Send(context.Background(), domain.Command{Type: domain.CommandPrepare, TurnID: "p"}))

	conn := dial(t, serve(t, hub, &recorder{})+"/s2")
	var cmd domain.Command
	read(t, conn, &cmd)
	assert.Equal(t, domain.CommandPrepare, cmd.Type)
	assert.Equal(t, "p", cmd.TurnID)
}

func TestBridge_ControlMessages(t *testing.T) {
	hub := ws.NewHub()
	sink := &recorder{}
	conn := dial(t, serve(t, hub, sink)+"/s3")

	var reply map[string]string
	write(t, conn, map[string]string{"type": "ping"})
	read(t, conn, &reply)
	assert.Equal(t, "pong", reply["type"])

	write(t, conn, domain.Event{Type: domain.EventAfter})
	read(t, conn, &reply)
	assert.Equal(t, "error", reply["type"])
	assert.Contains(t, reply["error"], "not accepted")

	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte("{")))
	read(t, conn, &reply)
	assert.Contains(t, reply["error"], "invalid message")

	sink.mu.Lock()
	sink.err = errors.New("machine stopped")
	sink.mu.Unlock()
	write(t, conn, domain.Event{Type: domain.EventClick})
	read(t, conn, &reply)
	assert.Equal(t, "machine stopped", reply["error"])
	assert.Empty(t, sink.list())
}

func TestBridge_ReplacedConnection(t *testing.T) {
	hub := ws.NewHub()
	url := serve(t, hub, &recorder{}) + "/s4"

	first := dial(t, url)
	require.Eventually(t, hub.Bridge("s4").Connected, time.Second, 5*time.Millisecond)
	second := dial(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := first.Read(ctx)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))

	require.NoError(t, hub.Bridge("s4").Send(context.Background(), domain.Command{Type: domain.CommandListen, TurnID: "l"}))
	var cmd domain.Command
	read(t, second, &cmd)
	assert.Equal(t, "l", cmd.TurnID)

	hub.Remove("s4")
	_, _, err = second.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}
