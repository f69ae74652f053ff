// Package turn drives single request/response interactions with the speech collaborator.
package turn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/parlance/internal/logging"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/google/uuid"
)

// Handle identifies the one outstanding collaborator request.
type Handle struct {
	TurnID  string
	Kind    domain.CommandType
	StateID string

	// terminal is set once RECOGNISED or ASR_NOINPUT was accepted for a listen.
	terminal bool
}

// Executor issues PREPARE, SPEAK and LISTEN commands and filters the
// asynchronous events that come back.
//
// It holds no state beyond the in-flight handle. A new request supersedes the
// previous one; late events for a superseded request are reported as stale.
// Executor is not safe for concurrent use; the machine owns it.
type Executor struct {
	collab    ports.Collaborator
	sessionID string
	newID     func() string
	logger    *slog.Logger

	inflight *Handle
}

// Option configures an Executor.
type Option func(*Executor)

// WithSessionID stamps commands with the session they belong to.
func WithSessionID(id string) Option {
	return func(x *Executor) {
		x.sessionID = id
	}
}

// WithIDGenerator overrides the turn ID generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(x *Executor) {
		x.newID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Executor) {
		x.logger = logger
	}
}

// NewExecutor creates an executor bound to a collaborator.
func NewExecutor(collab ports.Collaborator, opts ...Option) *Executor {
	x := &Executor{
		collab: collab,
		newID:  uuid.NewString,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Prepare asks the collaborator to initialize audio. READY is expected once.
func (x *Executor) Prepare(ctx context.Context, stateID string) (domain.Command, error) {
	return x.send(ctx, domain.Command{Type: domain.CommandPrepare, StateID: stateID})
}

// Speak requests synthesis of an utterance. SPEAK_COMPLETE is expected.
func (x *Executor) Speak(ctx context.Context, stateID, utterance string, voice domain.VoiceOptions) (domain.Command, error) {
	cmd := domain.Command{Type: domain.CommandSpeak, StateID: stateID, Utterance: utterance}
	if voice != (domain.VoiceOptions{}) {
		cmd.Voice = &voice
	}
	return x.send(ctx, cmd)
}

// Listen requests one recognition turn. Exactly one of RECOGNISED or
// ASR_NOINPUT is accepted, followed by LISTEN_COMPLETE.
func (x *Executor) Listen(ctx context.Context, stateID string, opts domain.ListenOptions) (domain.Command, error) {
	return x.send(ctx, domain.Command{Type: domain.CommandListen, StateID: stateID, Listen: &opts})
}

func (x *Executor) send(ctx context.Context, cmd domain.Command) (domain.Command, error) {
	cmd.TurnID = x.newID()
	cmd.SessionID = x.sessionID

	// The handle is recorded before sending so events echoed synchronously
	// by the collaborator are attributed to this request.
	x.inflight = &Handle{TurnID: cmd.TurnID, Kind: cmd.Type, StateID: cmd.StateID}

	if x.collab == nil {
		return cmd, nil
	}
	if err := x.collab.Send(ctx, cmd); err != nil {
		x.inflight = nil
		return cmd, fmt.Errorf("collaborator rejected %s: %w", cmd.Type, err)
	}
	return cmd, nil
}

// InFlight returns the outstanding request, if any.
func (x *Executor) InFlight() (Handle, bool) {
	if x.inflight == nil {
		return Handle{}, false
	}
	return *x.inflight, true
}

// Phase reports what the executor is waiting for.
func (x *Executor) Phase() domain.TurnPhase {
	if x.inflight == nil {
		return domain.TurnNone
	}
	switch x.inflight.Kind {
	case domain.CommandPrepare:
		return domain.TurnPreparing
	case domain.CommandSpeak:
		return domain.TurnSpeaking
	case domain.CommandListen:
		if x.inflight.terminal {
			return domain.TurnNone
		}
		return domain.TurnListening
	}
	return domain.TurnNone
}

// Clear forgets the outstanding request.
func (x *Executor) Clear() {
	x.inflight = nil
}

// Accept filters an incoming event.
//
// Events outside the collaborator vocabulary pass through untouched.
// Collaborator events are dropped (ok=false, with a reason) when there is no
// request in flight, when they carry another request's TurnID, when they do
// not belong to the request kind, when the issuing state is no longer active,
// or when a listen already produced its terminal outcome. Accepted events
// without a TurnID are stamped with the in-flight one.
func (x *Executor) Accept(ev domain.Event, isActive func(stateID string) bool) (domain.Event, string, bool) {
	if !ev.Type.FromCollaborator() {
		return ev, "", true
	}

	h := x.inflight
	if h == nil {
		return ev, domain.ReasonStale, false
	}
	if ev.TurnID != "" && ev.TurnID != h.TurnID {
		return ev, domain.ReasonStale, false
	}
	if expectedKind(ev.Type) != h.Kind {
		return ev, domain.ReasonStale, false
	}
	if isActive != nil && !isActive(h.StateID) {
		x.logger.Debug("dropping completion for inactive state", "state", h.StateID, "event", ev.Type)
		return ev, domain.ReasonStale, false
	}

	if ev.Type.Terminal() {
		if h.terminal {
			return ev, domain.ReasonDuplicate, false
		}
		h.terminal = true
	}

	ev.TurnID = h.TurnID

	switch ev.Type {
	case domain.EventReady, domain.EventSpeakComplete, domain.EventListenComplete:
		x.inflight = nil
	}
	return ev, "", true
}

func expectedKind(t domain.EventType) domain.CommandType {
	switch t {
	case domain.EventReady:
		return domain.CommandPrepare
	case domain.EventSpeakComplete:
		return domain.CommandSpeak
	default:
		return domain.CommandListen
	}
}
