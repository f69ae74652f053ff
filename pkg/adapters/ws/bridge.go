// Package ws bridges a remote speech host over a websocket.
//
// The host (typically a browser running speech synthesis and recognition)
// connects once per session. Commands from the machine are written to the
// socket as JSON domain.Command values; the host answers with JSON
// domain.Event values which are delivered to the dialogue.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/parlance/internal/logging"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/coder/websocket"
)

const (
	// DefaultWriteTimeout bounds a single socket write.
	DefaultWriteTimeout = 5 * time.Second
	// maxPending is how many commands are kept while no host is connected.
	maxPending = 32
	// outboundSize buffers commands between the machine and the socket writer.
	outboundSize = 64
)

// ErrLagging is returned when the host does not keep up with the commands.
var ErrLagging = errors.New("speech host is not reading")

// message is the envelope for control frames that are not commands or events.
type message struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// Hub tracks one Bridge per session.
type Hub struct {
	mu           sync.Mutex
	bridges      map[string]*Bridge
	logger       *slog.Logger
	writeTimeout time.Duration
	origins      []string
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithWriteTimeout bounds socket writes.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.writeTimeout = d
	}
}

// WithOriginPatterns sets the origins allowed to connect. Same-origin
// requests are always accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) {
		h.origins = patterns
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		bridges:      make(map[string]*Bridge),
		logger:       logging.NewNop(),
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Collaborator returns the session's bridge. Its signature matches the
// engine's collaborator factory.
func (h *Hub) Collaborator(sessionID string) (ports.Collaborator, error) {
	return h.Bridge(sessionID), nil
}

// Bridge returns the bridge of a session, creating it on first use.
func (h *Hub) Bridge(sessionID string) *Bridge {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.bridges[sessionID]
	if !ok {
		b = &Bridge{
			sessionID:    sessionID,
			logger:       h.logger.With("session_id", sessionID),
			writeTimeout: h.writeTimeout,
		}
		h.bridges[sessionID] = b
	}
	return b
}

// Remove drops a session's bridge and disconnects its host.
func (h *Hub) Remove(sessionID string) {
	h.mu.Lock()
	b, ok := h.bridges[sessionID]
	delete(h.bridges, sessionID)
	h.mu.Unlock()
	if ok {
		b.disconnect(websocket.StatusNormalClosure, "session closed")
	}
}

// Serve upgrades the request and runs the bridge of sessionID until the
// host disconnects or the request context ends.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string, sink ports.EventSink) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("failed to accept websocket", "session_id", sessionID, "err", err)
		return
	}
	h.Bridge(sessionID).Serve(r.Context(), conn, sink)
}

// Bridge is the ports.Collaborator of one session.
type Bridge struct {
	sessionID    string
	logger       *slog.Logger
	writeTimeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	out     chan []byte
	pending [][]byte
}

// Send forwards a command to the host. While no host is connected the most
// recent commands are kept and flushed on connect.
func (b *Bridge) Send(_ context.Context, cmd domain.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.out == nil {
		b.pending = append(b.pending, data)
		if len(b.pending) > maxPending {
			b.pending = b.pending[len(b.pending)-maxPending:]
		}
		return nil
	}
	select {
	case b.out <- data:
		return nil
	default:
		return ErrLagging
	}
}

// Connected reports whether a host is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Serve attaches conn as the session's host, replacing any previous one,
// and relays events to sink until the connection closes.
func (b *Bridge) Serve(ctx context.Context, conn *websocket.Conn, sink ports.EventSink) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := b.attach(conn)
	defer b.detach(conn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.writeLoop(ctx, conn, out)
	}()

	b.readLoop(ctx, conn, sink)
	cancel()
	<-done
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func (b *Bridge) attach(conn *websocket.Conn) chan []byte {
	b.mu.Lock()
	old := b.conn
	out := make(chan []byte, outboundSize+maxPending)
	for _, data := range b.pending {
		out <- data
	}
	b.conn, b.out, b.pending = conn, out, nil
	b.mu.Unlock()

	if old != nil {
		_ = old.Close(websocket.StatusPolicyViolation, "replaced by a new connection")
	}
	b.logger.Info("speech host connected")
	return out
}

func (b *Bridge) detach(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != conn {
		return
	}
	b.conn, b.out = nil, nil
	b.logger.Info("speech host disconnected")
}

func (b *Bridge) disconnect(code websocket.StatusCode, reason string) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn != nil {
		_ = conn.Close(code, reason)
	}
}

func (b *Bridge) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-out:
			if err := b.write(ctx, conn, data); err != nil {
				if ctx.Err() == nil {
					b.logger.Debug("websocket write error", "err", err)
				}
				return
			}
		}
	}
}

func (b *Bridge) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, b.writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn, sink ports.EventSink) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				b.logger.Warn("websocket read error", "err", err)
			}
			return
		}

		var ev domain.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			b.reply(ctx, conn, message{Type: "error", Error: "invalid message: " + err.Error()})
			continue
		}
		switch {
		case ev.Type == "ping":
			b.reply(ctx, conn, message{Type: "pong"})
			continue
		case !ev.Type.FromCollaborator() && ev.Type != domain.EventClick:
			b.reply(ctx, conn, message{Type: "error", Error: fmt.Sprintf("event %s not accepted", ev.Type)})
			continue
		}

		if err := sink.Send(ctx, ev); err != nil {
			b.logger.Warn("event rejected", "event", ev.Type, "turn_id", ev.TurnID, "err", err)
			b.reply(ctx, conn, message{Type: "error", Error: err.Error()})
		}
	}
}

func (b *Bridge) reply(ctx context.Context, conn *websocket.Conn, msg message) {
	data, _ := json.Marshal(msg)
	if err := b.write(ctx, conn, data); err != nil {
		b.logger.Debug("failed to reply", "type", msg.Type, "err", err)
	}
}
