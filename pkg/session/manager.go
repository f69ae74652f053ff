package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/parlance/internal/logging"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/google/uuid"
)

// Factory builds a new, unstarted dialogue for the given session ID.
type Factory func(sessionID string) (ports.Dialogue, error)

// Observer is notified when sessions start and end.
type Observer interface {
	SessionStarted()
	SessionEnded()
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the live dialogues of this process and serializes access
// to each of them. It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	factory Factory

	mu       sync.Mutex            // Global lock for the maps
	locks    map[string]*lockEntry // Map of active locks
	sessions map[string]ports.Dialogue

	locker   ports.SessionLocker // Optional distributed locker
	lockTTL  time.Duration
	newID    func() string
	observer Observer
	logger   *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking, so that a session is driven
// by a single replica at a time.
func WithLocker(locker ports.SessionLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiration of distributed locks. Defaults to 30s.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithIDGenerator overrides the session ID generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// WithObserver reports session starts and ends, e.g. to metrics.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// NewManager creates a new Session Manager building dialogues with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory:  factory,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]ports.Dialogue),
		lockTTL:  30 * time.Second,
		newID:    uuid.NewString,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

func (m *Manager) lookup(sessionID string) (ports.Dialogue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.sessions[sessionID]
	return d, ok
}

// Create builds and starts a dialogue. An empty sessionID gets a generated one.
func (m *Manager) Create(ctx context.Context, sessionID string) (ports.Dialogue, error) {
	if sessionID == "" {
		sessionID = m.newID()
	}

	var d ports.Dialogue
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, exists := m.lookup(sessionID); exists {
			return fmt.Errorf("%w: %s", domain.ErrSessionExists, sessionID)
		}

		var err error
		d, err = m.factory(sessionID)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		// Registered before Start so events sent synchronously by the
		// collaborator during entry find the session.
		m.mu.Lock()
		m.sessions[sessionID] = d
		m.mu.Unlock()

		if err := d.Start(ctx); err != nil {
			m.mu.Lock()
			delete(m.sessions, sessionID)
			m.mu.Unlock()
			d.Stop()
			return fmt.Errorf("failed to start session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.observer != nil {
		m.observer.SessionStarted()
	}
	m.logger.Info("session created", "session_id", sessionID)
	return d, nil
}

// Get returns a live dialogue.
func (m *Manager) Get(sessionID string) (ports.Dialogue, error) {
	d, ok := m.lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return d, nil
}

// Send delivers an event to a session while holding its lock.
// Collaborators reacting synchronously to a command must send to the
// dialogue itself, not through the manager.
func (m *Manager) Send(ctx context.Context, sessionID string, ev domain.Event) error {
	d, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return d.Send(ctx, ev)
	})
}

// Close stops a dialogue and forgets it.
func (m *Manager) Close(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		d, ok := m.sessions[sessionID]
		delete(m.sessions, sessionID)
		m.mu.Unlock()

		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		d.Stop()
		if m.observer != nil {
			m.observer.SessionEnded()
		}
		m.logger.Info("session closed", "session_id", sessionID)
		return nil
	})
}

// CloseAll stops every live dialogue.
func (m *Manager) CloseAll(ctx context.Context) {
	for _, id := range m.List() {
		if err := m.Close(ctx, id); err != nil {
			m.logger.Warn("failed to close session", "session_id", id, "err", err)
		}
	}
}

// List returns the IDs of live sessions, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
