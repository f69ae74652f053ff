package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/parlance/pkg/domain"
)

// LoggingHooks logs every lifecycle notification at debug level,
// collaborator failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_enter", "session_id", e.SessionID, "state", e.StateID, "kind", e.Kind)
		},
		OnStateExit: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_exit", "session_id", e.SessionID, "state", e.StateID)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"session_id", e.SessionID,
				"event", e.Event,
				"source", e.Source,
				"target", e.Target,
				"label", e.Label,
				"internal", e.Internal,
			)
		},
		OnCommand: func(ctx context.Context, e *domain.CommandEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "command_failed",
					"session_id", e.SessionID, "type", e.Command.Type, "turn_id", e.Command.TurnID, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "command",
				"session_id", e.SessionID, "type", e.Command.Type, "turn_id", e.Command.TurnID, "utterance", e.Command.Utterance)
		},
		OnCollaborator: func(ctx context.Context, e *domain.CollaboratorEvent) {
			attrs := []any{"session_id", e.SessionID, "type", e.Event.Type, "turn_id", e.Event.TurnID, "state", e.StateID}
			if r := e.Event.Result; r != nil {
				attrs = append(attrs, "utterance", r.Utterance)
			}
			logger.DebugContext(ctx, "collaborator_event", attrs...)
		},
		OnEventIgnored: func(ctx context.Context, e *domain.IgnoredEvent) {
			logger.DebugContext(ctx, "event_ignored", "session_id", e.SessionID, "event", e.Event, "state", e.StateID, "reason", e.Reason)
		},
	}
}
