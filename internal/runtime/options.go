package runtime

import (
	"log/slog"
	"math/rand/v2"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
)

// Option configures a Machine.
type Option func(*Machine)

// WithSessionID sets the session identifier reported in snapshots, hooks and commands.
func WithSessionID(id string) Option {
	return func(m *Machine) {
		m.id = id
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithClock overrides the host clock (timers and timestamps).
func WithClock(c Clock) Option {
	return func(m *Machine) {
		m.clock = c
	}
}

// WithCollaborator sets the speech collaborator receiving commands.
func WithCollaborator(c ports.Collaborator) Option {
	return func(m *Machine) {
		m.collab = c
	}
}

// WithRandSource makes prompt randomization deterministic.
func WithRandSource(src rand.Source) Option {
	return func(m *Machine) {
		m.rand = src
	}
}

// WithSeed is shorthand for WithRandSource(rand.NewPCG(seed, seed)).
func WithSeed(seed uint64) Option {
	return WithRandSource(rand.NewPCG(seed, seed))
}

// WithMaxSteps overrides the eventless transition bound.
func WithMaxSteps(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxSteps = n
		}
	}
}

// WithTurnIDs overrides the turn ID generator.
func WithTurnIDs(fn func() string) Option {
	return func(m *Machine) {
		m.turnIDs = fn
	}
}

// WithDefaultVoice fills unset voice options of speak entries.
func WithDefaultVoice(v domain.VoiceOptions) Option {
	return func(m *Machine) {
		m.voice = v
	}
}

// WithDefaultListen fills unset listen options of listen entries.
func WithDefaultListen(l domain.ListenOptions) Option {
	return func(m *Machine) {
		m.listen = l
	}
}
