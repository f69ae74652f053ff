package ports

import (
	"context"

	"github.com/aretw0/parlance/pkg/domain"
)

// TranscriptSink records conversation turns for auditing.
// It is an append-only log; it is never read back to resume a conversation.
type TranscriptSink interface {
	// Append stores one transcript line.
	Append(ctx context.Context, entry domain.TranscriptEntry) error

	// List returns the lines of a session in append order.
	// An unknown session yields an empty slice, not an error.
	List(ctx context.Context, sessionID string) ([]domain.TranscriptEntry, error)

	// Delete removes all lines of a session.
	Delete(ctx context.Context, sessionID string) error
}
