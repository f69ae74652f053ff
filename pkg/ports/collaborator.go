package ports

import (
	"context"

	"github.com/aretw0/parlance/pkg/domain"
)

// Collaborator is the speech/NLU side of a conversation.
// The machine emits commands; the host implements this interface to perform
// them and later feeds the resulting events back into the machine.
//
// Send must not block waiting for the outcome: completion is always signaled
// asynchronously as an event.
type Collaborator interface {
	Send(ctx context.Context, cmd domain.Command) error
}

// CollaboratorFunc adapts a function to the Collaborator interface.
type CollaboratorFunc func(ctx context.Context, cmd domain.Command) error

// Send calls f(ctx, cmd).
func (f CollaboratorFunc) Send(ctx context.Context, cmd domain.Command) error {
	return f(ctx, cmd)
}

// EventSink accepts events for a running dialogue.
// Collaborator adapters hold one to deliver their asynchronous outcomes.
type EventSink interface {
	Send(ctx context.Context, ev domain.Event) error
}
