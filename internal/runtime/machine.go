package runtime

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/aretw0/parlance/internal/logging"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/aretw0/parlance/pkg/turn"
	"github.com/google/uuid"
)

type itemKind int

const (
	itemEvent itemKind = iota
	itemStart
	itemStop
)

type item struct {
	kind itemKind
	ev   domain.Event
}

// Machine is one running conversation: a hierarchical state machine that
// owns its Session Context exclusively.
//
// Events are processed one at a time, to completion, in arrival order.
// Events sent while another one is being processed (including events sent
// synchronously by the collaborator or by hooks) are queued.
type Machine struct {
	g        *Graph
	id       string
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	clock    Clock
	collab   ports.Collaborator
	rand     rand.Source
	turnIDs  func() string
	maxSteps int
	voice    domain.VoiceOptions
	listen   domain.ListenOptions

	base   context.Context
	cancel context.CancelFunc

	// Guarded by mu.
	mu       sync.Mutex
	queue    []item
	draining bool
	started  bool
	stopped  bool

	// Owned by the draining goroutine.
	exec     *turn.Executor
	ctx      domain.Context
	active   []string
	history  map[string][]string
	entries  map[string]uint64
	timers   map[string][]Timer
	internal []domain.Event
	gen      uint64
	status   domain.Status
	steps    int
	dirty    bool

	snapMu  sync.RWMutex
	snap    domain.Snapshot
	subs    map[int]chan domain.Snapshot
	nextSub int
}

// NewMachine creates a machine for a compiled graph. It does nothing until Start.
func NewMachine(g *Graph, opts ...Option) *Machine {
	m := &Machine{
		g:        g,
		logger:   logging.NewNop(),
		clock:    RealClock{},
		turnIDs:  uuid.NewString,
		maxSteps: DefaultMaxSteps,
		history:  make(map[string][]string),
		entries:  make(map[string]uint64),
		timers:   make(map[string][]Timer),
		status:   domain.StatusIdle,
		subs:     make(map[int]chan domain.Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.id == "" {
		m.id = uuid.NewString()
	}
	m.logger = m.logger.With("flow", g.def.ID, "session_id", m.id)
	m.exec = turn.NewExecutor(m.collab,
		turn.WithSessionID(m.id),
		turn.WithIDGenerator(m.turnIDs),
		turn.WithLogger(m.logger),
	)
	m.ctx = domain.NewContext(g.def.Context, m.rand)
	m.base, m.cancel = context.WithCancel(context.Background())
	m.snap = domain.Snapshot{
		SessionID: m.id,
		FlowID:    g.def.ID,
		Status:    domain.StatusIdle,
		Context:   m.ctx.Detached(),
	}
	return m
}

// New compiles a definition and creates a machine for it.
func New(def *domain.Definition, opts ...Option) (*Machine, error) {
	g, err := Compile(def)
	if err != nil {
		return nil, err
	}
	return NewMachine(g, opts...), nil
}

// ID returns the session identifier.
func (m *Machine) ID() string {
	return m.id
}

// Graph returns the compiled graph the machine runs.
func (m *Machine) Graph() *Graph {
	return m.g
}

// Start enters the initial state and runs until the machine waits for an event.
// A canceled ctx leaves the machine unstarted.
func (m *Machine) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("machine already started")
	}
	m.started = true
	return m.enqueue(item{kind: itemStart})
}

// Send queues an event and, unless another goroutine is already draining the
// queue, processes it and everything queued behind it.
// It returns the first processing error of the drained events.
func (m *Machine) Send(ctx context.Context, ev domain.Event) error {
	if ev.Type == "" {
		return errors.New("event type is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	switch {
	case !m.started:
		m.mu.Unlock()
		return domain.ErrNotStarted
	case m.stopped:
		m.mu.Unlock()
		return domain.ErrMachineStopped
	}
	if m.Snapshot().Status == domain.StatusDone {
		m.mu.Unlock()
		return domain.ErrMachineDone
	}
	return m.enqueue(item{kind: itemEvent, ev: ev})
}

// Stop cancels pending timers and closes all subscriptions.
// Events sent afterwards are rejected.
func (m *Machine) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if !m.started {
		m.mu.Unlock()
		m.finishStop()
		return
	}
	_ = m.enqueue(item{kind: itemStop})
}

// enqueue must be called with mu held; it releases it.
func (m *Machine) enqueue(it item) error {
	m.queue = append(m.queue, it)
	if m.draining {
		m.mu.Unlock()
		return nil
	}
	m.draining = true

	var first error
	for len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		if err := m.process(next); err != nil && first == nil {
			first = err
		}

		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
	return first
}

func (m *Machine) process(it item) error {
	switch it.kind {
	case itemStart:
		return m.start()
	case itemStop:
		m.cancelAllTimers()
		m.exec.Clear()
		m.status = domain.StatusStopped
		m.dirty = true
		m.publish()
		m.finishStop()
		return nil
	default:
		return m.macrostep(it.ev)
	}
}

func (m *Machine) finishStop() {
	m.cancel()
	m.snapMu.Lock()
	defer m.snapMu.Unlock()
	if m.snap.Status != domain.StatusStopped {
		m.snap.Status = domain.StatusStopped
	}
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}
