package ports

import (
	"context"

	"github.com/aretw0/parlance/pkg/domain"
)

// Dialogue is a running conversation as seen by hosts and adapters (HTTP, console, websocket).
type Dialogue interface {
	EventSink

	// ID returns the session identifier.
	ID() string

	// Start enters the initial state. It is an error to call it twice.
	Start(ctx context.Context) error

	// Snapshot returns the state after the last completed macrostep.
	Snapshot() domain.Snapshot

	// Subscribe returns a channel of snapshots. Slow readers only see the latest one.
	// The channel is closed when ctx is done or the dialogue stops.
	Subscribe(ctx context.Context) <-chan domain.Snapshot

	// Stop cancels timers and closes subscriptions.
	Stop()
}
