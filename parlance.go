package parlance

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/parlance/internal/compiler"
	"github.com/aretw0/parlance/internal/logging"
	"github.com/aretw0/parlance/internal/runtime"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/google/uuid"
)

// Clock is the host clock driving delayed transitions.
type Clock = runtime.Clock

// CollaboratorFactory returns the speech collaborator for a new session.
type CollaboratorFactory func(sessionID string) (ports.Collaborator, error)

// Engine is the high-level entry point for the library.
// It holds a compiled flow and spawns one machine per conversation.
type Engine struct {
	graph    *runtime.Graph
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	clock    Clock
	collab   CollaboratorFactory
	seed     *uint64
	seq      atomic.Uint64
	maxSteps int
	voice    domain.VoiceOptions
	listen   domain.ListenOptions
	Name     string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the host clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithCollaborator shares one speech collaborator between all sessions.
// Commands carry the session ID so the collaborator can route them.
func WithCollaborator(c ports.Collaborator) Option {
	return func(e *Engine) {
		e.collab = func(string) (ports.Collaborator, error) { return c, nil }
	}
}

// WithCollaboratorFactory creates a collaborator per session.
func WithCollaboratorFactory(f CollaboratorFactory) Option {
	return func(e *Engine) {
		e.collab = f
	}
}

// WithSeed makes randomized prompts reproducible. The n-th spawned session
// uses seed+n, so a given session replays identically across runs.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.seed = &seed
	}
}

// WithMaxSteps overrides the bound on chained eventless transitions.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithDefaultVoice sets voice options used when a state sets none.
func WithDefaultVoice(v domain.VoiceOptions) Option {
	return func(e *Engine) {
		e.voice = v
	}
}

// WithDefaultListen sets listen options used when a state sets none.
func WithDefaultListen(l domain.ListenOptions) Option {
	return func(e *Engine) {
		e.listen = l
	}
}

// New compiles a flow definition into an Engine.
func New(def *domain.Definition, opts ...Option) (*Engine, error) {
	g, err := runtime.Compile(def)
	if err != nil {
		return nil, err
	}

	eng := &Engine{graph: g, Name: def.ID}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	return eng, nil
}

// Load parses the YAML flow called name from loader and compiles it.
// Guards and updates of the flow are bound to res (the built-in lexicon when nil).
func Load(loader ports.FlowLoader, name string, res *grammar.Resolver, opts ...Option) (*Engine, error) {
	data, err := loader.GetFlow(name)
	if err != nil {
		return nil, err
	}
	var popts []compiler.Option
	if res != nil {
		popts = append(popts, compiler.WithResolver(res))
	}
	def, err := compiler.NewParser(popts...).Parse(data)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", name, err)
	}
	return New(def, opts...)
}

// Definition returns the flow the engine runs.
func (e *Engine) Definition() *domain.Definition {
	return e.graph.Definition()
}

// Spawn creates an unstarted conversation. An empty sessionID gets a generated one.
// Its signature matches session.Factory.
func (e *Engine) Spawn(sessionID string) (ports.Dialogue, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	opts := []runtime.Option{
		runtime.WithSessionID(sessionID),
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithDefaultVoice(e.voice),
		runtime.WithDefaultListen(e.listen),
	}
	if e.clock != nil {
		opts = append(opts, runtime.WithClock(e.clock))
	}
	if e.seed != nil {
		opts = append(opts, runtime.WithSeed(*e.seed+e.seq.Add(1)-1))
	}
	if e.maxSteps > 0 {
		opts = append(opts, runtime.WithMaxSteps(e.maxSteps))
	}
	if e.collab != nil {
		c, err := e.collab(sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to create collaborator: %w", err)
		}
		opts = append(opts, runtime.WithCollaborator(c))
	}
	return runtime.NewMachine(e.graph, opts...), nil
}
