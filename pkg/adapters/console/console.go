// Package console implements a speech collaborator on a terminal.
//
// Speech output is printed and completes at once. Recognition reads one line
// of input: a non-empty line is the recognised utterance, a blank line is no
// input. The line "/click" is a click. On an interactive terminal any line
// typed while nothing is being listened for is a click too; scripted input
// instead waits for the next recognition request.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/parlance/internal/logging"
	"github.com/aretw0/parlance/internal/presentation/tui"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
	"golang.org/x/term"
)

// ClickLine is the input line that always sends a click.
const ClickLine = "/click"

// queueSize bounds the commands buffered between the machine and Run.
const queueSize = 16

// Console is a ports.Collaborator backed by line-oriented terminal I/O.
type Console struct {
	source      io.Reader
	out         io.Writer
	interactive bool
	render      func(string) (string, error)
	logger      *slog.Logger

	cmds      chan domain.Command
	lines     chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// Option configures a Console.
type Option func(*Console)

// WithRenderer formats system utterances, e.g. as markdown.
func WithRenderer(render func(string) (string, error)) Option {
	return func(c *Console) {
		c.render = render
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		c.logger = logger
	}
}

// WithInteractive overrides terminal detection. Interactive consoles show an
// input prompt; others echo what the user said.
func WithInteractive(on bool) Option {
	return func(c *Console) {
		c.interactive = on
	}
}

// New creates a console over r and w (stdin and stdout when nil).
func New(r io.Reader, w io.Writer, opts ...Option) *Console {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	c := &Console{
		source: r,
		out:    w,
		logger: logging.NewNop(),
		cmds:   make(chan domain.Command, queueSize),
	}
	if f, ok := r.(*os.File); ok {
		c.interactive = term.IsTerminal(int(f.Fd()))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send queues a command for Run. It does not wait for terminal I/O.
func (c *Console) Send(ctx context.Context, cmd domain.Command) error {
	select {
	case c.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("console command queue is full")
	}
}

// Run performs queued commands and feeds the outcomes to the dialogue until
// ctx is done or the input ends. End of input is not an error; lines still
// waiting for a listen are answered first.
func (c *Console) Run(ctx context.Context, d ports.EventSink) error {
	c.startOnce.Do(func() {
		c.lines = make(chan inputResult)
		go c.pump(ctx)
	})

	var (
		listening *domain.Command
		held      []string
		inputDone bool
		timer     *time.Timer
		timeout   <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timeout = nil, nil
	}
	defer stopTimer()

	finishListen := func(text string) {
		stopTimer()
		turn := listening.TurnID
		listening = nil
		ev := domain.Event{Type: domain.EventNoInput}
		if text != "" {
			ev = domain.Recognised(text)
		}
		ev.TurnID = turn
		c.emit(ctx, d, ev)
		c.emit(ctx, d, domain.Event{Type: domain.EventListenComplete, TurnID: turn})
	}

	handle := func(cmd domain.Command) {
		switch cmd.Type {
		case domain.CommandPrepare:
			c.emit(ctx, d, domain.Event{Type: domain.EventReady, TurnID: cmd.TurnID})
		case domain.CommandSpeak:
			c.say(cmd.Utterance)
			c.emit(ctx, d, domain.Event{Type: domain.EventSpeakComplete, TurnID: cmd.TurnID})
		case domain.CommandListen:
			stopTimer()
			listening = &cmd
			if len(held) > 0 {
				text := held[0]
				held = held[1:]
				finishListen(text)
				return
			}
			if c.interactive {
				fmt.Fprint(c.out, "> ")
			}
			if cmd.Listen != nil && cmd.Listen.NoInputTimeout > 0 {
				timer = time.NewTimer(cmd.Listen.NoInputTimeout)
				timeout = timer.C
			}
		}
	}

	for {
		// Commands queued by the last event go first, so input is matched
		// against the request it answers.
		select {
		case cmd := <-c.cmds:
			handle(cmd)
			continue
		default:
		}

		// Scripted input is over once every line has been answered.
		if inputDone && len(held) == 0 {
			return nil
		}
		lines := c.lines
		if inputDone {
			lines = nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-c.cmds:
			handle(cmd)

		case <-timeout:
			c.logger.Debug("no input before timeout", "turn_id", listening.TurnID)
			if c.interactive {
				fmt.Fprintln(c.out)
			} else {
				fmt.Fprintln(c.out, tui.Label(c.out, "user"), "...")
			}
			finishListen("")

		case res, ok := <-lines:
			if !ok {
				inputDone = true
				continue
			}
			if res.err != nil {
				return res.err
			}
			text := clean(res.text)
			if !c.interactive {
				fmt.Fprintln(c.out, tui.Label(c.out, "user"), text)
			}
			switch {
			case text == ClickLine || (listening == nil && c.interactive):
				c.emit(ctx, d, domain.Event{Type: domain.EventClick})
			case listening == nil:
				held = append(held, text)
			default:
				finishListen(text)
			}
		}
	}
}

func (c *Console) say(text string) {
	output := text
	if c.render != nil {
		if rendered, err := c.render(text); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(c.out, tui.Label(c.out, "system"), strings.TrimSpace(output))
}

// emit delivers an event. A rejected event is logged; the console keeps going.
func (c *Console) emit(ctx context.Context, d ports.EventSink, ev domain.Event) {
	if err := d.Send(ctx, ev); err != nil {
		c.logger.Warn("event rejected", "event", ev.Type, "turn_id", ev.TurnID, "err", err)
	}
}

func (c *Console) pump(ctx context.Context) {
	defer close(c.lines)
	reader := bufio.NewReader(c.source)
	for {
		text, err := reader.ReadString('\n')
		if text != "" || (err != nil && err != io.EOF) {
			select {
			case c.lines <- inputResult{text: text, err: ignoreEOF(err)}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
