package ports

import (
	"context"
	"time"
)

// ReleaseFunc gives up ownership of a session.
type ReleaseFunc func(ctx context.Context) error

// SessionLocker grants one replica at a time the right to drive a session's
// machine. Ownership lapses after ttl if the holder dies without releasing it.
type SessionLocker interface {
	// Lock blocks until sessionID is owned or ctx is done.
	Lock(ctx context.Context, sessionID string, ttl time.Duration) (ReleaseFunc, error)
}
