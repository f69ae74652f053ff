// Package testutils provides deterministic doubles shared by package tests.
package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/parlance/internal/runtime"
	"github.com/aretw0/parlance/pkg/domain"
)

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	at      time.Time
	f       func()
	stopped bool
}

// NewFakeClock returns a clock frozen at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run when the clock is advanced past d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) runtime.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending returns the number of armed timers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Advance moves time forward and runs due callbacks in deadline order,
// outside the clock's lock.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, rest []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Collaborator records commands. It is safe for concurrent use.
type Collaborator struct {
	mu   sync.Mutex
	cmds []domain.Command
	// OnSend, if set, is called after recording, outside the lock.
	OnSend func(ctx context.Context, cmd domain.Command) error
}

// Send records the command.
func (c *Collaborator) Send(ctx context.Context, cmd domain.Command) error {
	c.mu.Lock()
	c.cmds = append(c.cmds, cmd)
	hook := c.OnSend
	c.mu.Unlock()
	if hook != nil {
		return hook(ctx, cmd)
	}
	return nil
}

// Commands returns a copy of the recorded commands.
func (c *Collaborator) Commands() []domain.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Command(nil), c.cmds...)
}

// Last returns the most recent command.
func (c *Collaborator) Last() (domain.Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cmds) == 0 {
		return domain.Command{}, false
	}
	return c.cmds[len(c.cmds)-1], true
}

// Spoken returns the utterances of all SPEAK commands.
func (c *Collaborator) Spoken() []string {
	var out []string
	for _, cmd := range c.Commands() {
		if cmd.Type == domain.CommandSpeak {
			out = append(out, cmd.Utterance)
		}
	}
	return out
}
