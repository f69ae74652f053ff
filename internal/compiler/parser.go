package compiler

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/dsl"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/aretw0/parlance/pkg/registry"
	"gopkg.in/yaml.v3"
)

// Parser is responsible for converting YAML flow files into a Definition.
type Parser struct {
	resolver *grammar.Resolver
	registry *registry.Registry
	guards   map[string]registry.GuardFactory
	updates  map[string]registry.UpdateFactory
}

// Option configures a Parser.
type Option func(*Parser)

// WithResolver sets the resolver the built-in guards and updates are bound to.
func WithResolver(r *grammar.Resolver) Option {
	return func(p *Parser) {
		p.resolver = r
	}
}

// WithRegistry replaces the built-in guard and update registry. The parser
// works on a copy; r itself is never modified.
func WithRegistry(r *registry.Registry) Option {
	return func(p *Parser) {
		p.registry = r
	}
}

// WithGuard makes a custom guard available to flows under name.
func WithGuard(name string, fn registry.GuardFactory) Option {
	return func(p *Parser) {
		p.guards[name] = fn
	}
}

// WithUpdate makes a custom update available to flows under name.
func WithUpdate(name string, fn registry.UpdateFactory) Option {
	return func(p *Parser) {
		p.updates[name] = fn
	}
}

// NewParser creates a new parser instance.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		guards:  make(map[string]registry.GuardFactory),
		updates: make(map[string]registry.UpdateFactory),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads and parses a flow file.
func (p *Parser) ParseFile(path string) (*domain.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow: %w", err)
	}
	return p.Parse(data)
}

// Parse decodes a YAML flow and compiles it into a validated Definition.
func (p *Parser) Parse(data []byte) (*domain.Definition, error) {
	var f flowFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse flow: %w", err)
	}
	if f.ID == "" {
		return nil, fmt.Errorf("flow missing id")
	}

	reg, err := p.registryFor(f)
	if err != nil {
		return nil, err
	}

	c := &compilation{reg: reg, b: dsl.New(f.ID)}
	if f.Initial != "" {
		c.b.Initial(f.Initial)
	}
	for k, v := range f.Context {
		c.b.Context(k, v)
	}
	for i := range f.States {
		if err := c.state(&f.States[i], ""); err != nil {
			return nil, err
		}
	}
	return c.b.Build()
}

// registryFor binds the guards and updates to a resolver that knows the
// flow's own lexicon categories.
func (p *Parser) registryFor(f flowFile) (*registry.Registry, error) {
	res := p.resolver
	if len(f.Lexicon) > 0 {
		lex, err := grammar.NewLexicon(f.Lexicon)
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", f.ID, err)
		}
		var opts []grammar.Option
		if res != nil {
			opts = append(opts, grammar.WithLexicon(res.Lexicon()))
		}
		res = grammar.New(append(opts, grammar.WithLexicon(lex))...)
	}
	if res == nil {
		res = grammar.New()
	}

	var reg *registry.Registry
	switch {
	case p.registry == nil:
		reg = registry.Default(res)
	case len(f.Lexicon) > 0:
		reg = p.registry.Clone()
		reg.Bind(res)
	default:
		reg = p.registry.Clone()
	}
	for name, fn := range p.guards {
		reg.RegisterGuard(name, fn)
	}
	for name, fn := range p.updates {
		reg.RegisterUpdate(name, fn)
	}
	return reg, nil
}

type flowFile struct {
	ID      string                         `yaml:"id"`
	Initial string                         `yaml:"initial"`
	Context map[string]any                 `yaml:"context"`
	Lexicon map[string]map[string][]string `yaml:"lexicon"`
	States  []stateSpec                    `yaml:"states"`
}

type stateSpec struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Kind        string `yaml:"kind"`

	Prepare   bool     `yaml:"prepare"`
	Say       string   `yaml:"say"`
	SayRandom []string `yaml:"say_random"`
	Question  string   `yaml:"question"`
	Listen    bool     `yaml:"listen"`
	NLU       bool     `yaml:"nlu"`

	Voice         *domain.VoiceOptions  `yaml:"voice"`
	ListenOptions *domain.ListenOptions `yaml:"listen_options"`

	Initial string `yaml:"initial"`
	History string `yaml:"history"`
	Default string `yaml:"default"`
	Final   bool   `yaml:"final"`

	Then   transitionList            `yaml:"then"`
	On     map[string]transitionList `yaml:"on"`
	Always transitionList            `yaml:"always"`
	After  []afterSpec               `yaml:"after"`

	States []stateSpec `yaml:"states"`
}

type transitionSpec struct {
	Target string   `yaml:"target"`
	When   callList `yaml:"when"`
	Unless callList `yaml:"unless"`
	Do     callList `yaml:"do"`
	Reset  bool     `yaml:"reset"`
	Label  string   `yaml:"label"`
}

type afterSpec struct {
	Delay          time.Duration `yaml:"delay"`
	transitionSpec `yaml:",inline"`
}

// transitionList accepts a bare target, a single transition or a list of either.
type transitionList []transitionSpec

func (l *transitionList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = transitionList{{Target: node.Value}}
		return nil
	case yaml.MappingNode:
		var t transitionSpec
		if err := node.Decode(&t); err != nil {
			return err
		}
		*l = transitionList{t}
		return nil
	case yaml.SequenceNode:
		out := make(transitionList, 0, len(node.Content))
		for _, item := range node.Content {
			var one transitionList
			if err := one.UnmarshalYAML(item); err != nil {
				return err
			}
			out = append(out, one...)
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: invalid transition", node.Line)
}

type call struct {
	Name string
	Args map[string]any
}

// callList accepts "name", {name: args} (several keys allowed) or a list of either.
type callList []call

func (l *callList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = callList{{Name: node.Value}}
		return nil
	case yaml.MappingNode:
		out := make(callList, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var args map[string]any
			if v := node.Content[i+1]; !(v.Kind == yaml.ScalarNode && v.Tag == "!!null") {
				if err := v.Decode(&args); err != nil {
					return fmt.Errorf("line %d: arguments of %s: %w", v.Line, node.Content[i].Value, err)
				}
			}
			out = append(out, call{Name: node.Content[i].Value, Args: args})
		}
		*l = out
		return nil
	case yaml.SequenceNode:
		var out callList
		for _, item := range node.Content {
			var one callList
			if err := one.UnmarshalYAML(item); err != nil {
				return err
			}
			out = append(out, one...)
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: invalid guard or update", node.Line)
}

type compilation struct {
	reg *registry.Registry
	b   *dsl.Builder
}

func (c *compilation) state(s *stateSpec, parent string) error {
	if s.ID == "" {
		return &domain.DefinitionError{Reason: "state with empty id"}
	}
	nb, err := c.node(s, parent)
	if err != nil {
		return err
	}
	if parent != "" {
		nb.In(parent)
	}
	if s.Description != "" {
		nb.Describe(s.Description)
	}
	if s.Voice != nil {
		nb.Voice(*s.Voice)
	}
	if s.ListenOptions != nil {
		nb.ListenOptions(*s.ListenOptions)
	}
	if s.NLU {
		nb.WithNLU()
	}
	if s.Default != "" {
		nb.Default(s.Default)
	}
	if s.History != "" && s.Kind != string(domain.NodeHistory) {
		nb.Remember(domain.HistoryMode(s.History))
	}

	for _, t := range s.Then {
		opts, err := c.options(s.ID, t)
		if err != nil {
			return err
		}
		nb.Then(t.Target, opts...)
	}
	for ev, ts := range s.On {
		evType := domain.EventType(ev)
		if ev == "done" {
			evType = domain.DoneEvent(s.ID)
		}
		for _, t := range ts {
			opts, err := c.options(s.ID, t)
			if err != nil {
				return err
			}
			nb.On(evType, t.Target, opts...)
		}
	}
	for _, t := range s.Always {
		opts, err := c.options(s.ID, t)
		if err != nil {
			return err
		}
		nb.Always(t.Target, opts...)
	}
	for _, a := range s.After {
		if a.Delay <= 0 {
			return &domain.DefinitionError{StateID: s.ID, Reason: "after transition without a positive delay"}
		}
		opts, err := c.options(s.ID, a.transitionSpec)
		if err != nil {
			return err
		}
		nb.After(a.Delay, a.Target, opts...)
	}

	for i := range s.States {
		if err := c.state(&s.States[i], s.ID); err != nil {
			return err
		}
	}
	return nil
}

// node creates the state with the entry action its fields describe.
func (c *compilation) node(s *stateSpec, parent string) (*dsl.NodeBuilder, error) {
	switch {
	case s.Final || s.Kind == string(domain.NodeFinal):
		return c.b.Final(s.ID), nil
	case s.Kind == string(domain.NodeHistory):
		if parent == "" {
			return nil, &domain.DefinitionError{StateID: s.ID, Reason: "history state must be nested"}
		}
		mode := domain.HistoryMode(s.History)
		if mode == domain.HistoryNone {
			mode = domain.HistoryShallow
		}
		return c.b.History(s.ID, parent, mode), nil
	case s.Question != "":
		say, err := sayFunc(s.ID, s.Question, nil)
		if err != nil {
			return nil, err
		}
		return c.b.QuestionFunc(s.ID, say), nil
	case len(s.States) > 0 || s.Kind == string(domain.NodeCompound):
		initial := s.Initial
		if initial == "" && len(s.States) > 0 {
			initial = s.States[0].ID
		}
		return c.b.Compound(s.ID, initial), nil
	case s.Prepare:
		return c.b.Prepare(s.ID), nil
	case s.Say != "" || len(s.SayRandom) > 0:
		say, err := sayFunc(s.ID, s.Say, s.SayRandom)
		if err != nil {
			return nil, err
		}
		return c.b.SayFunc(s.ID, say), nil
	case s.Listen:
		return c.b.Listen(s.ID), nil
	}
	return c.b.Add(s.ID), nil
}

func (c *compilation) options(stateID string, t transitionSpec) ([]dsl.TransitionOption, error) {
	var opts []dsl.TransitionOption

	var guards []domain.Guard
	for _, g := range t.When {
		fn, err := c.reg.Guard(g.Name, g.Args)
		if err != nil {
			return nil, &domain.DefinitionError{StateID: stateID, Reason: err.Error()}
		}
		guards = append(guards, fn)
	}
	for _, g := range t.Unless {
		fn, err := c.reg.Guard(g.Name, g.Args)
		if err != nil {
			return nil, &domain.DefinitionError{StateID: stateID, Reason: err.Error()}
		}
		guards = append(guards, dsl.Not(fn))
	}
	switch len(guards) {
	case 0:
	case 1:
		opts = append(opts, dsl.When(guards[0]))
	default:
		opts = append(opts, dsl.When(dsl.And(guards...)))
	}

	var updates []domain.Update
	for _, u := range t.Do {
		fn, err := c.reg.Update(u.Name, u.Args)
		if err != nil {
			return nil, &domain.DefinitionError{StateID: stateID, Reason: err.Error()}
		}
		updates = append(updates, fn)
	}
	if len(updates) > 0 {
		opts = append(opts, dsl.Do(dsl.Combine(updates...)))
	}

	if t.Reset {
		opts = append(opts, dsl.Restart())
	}
	label := t.Label
	if label == "" {
		label = describe(t)
	}
	if label != "" {
		opts = append(opts, dsl.Label(label))
	}
	return opts, nil
}

// describe derives a graph label from the guard names.
func describe(t transitionSpec) string {
	var parts []string
	for _, g := range t.When {
		parts = append(parts, g.Name)
	}
	for _, g := range t.Unless {
		parts = append(parts, "!"+g.Name)
	}
	return strings.Join(parts, " && ")
}

// sayFunc compiles prompt text. Variants are picked with the session's
// random source; text containing "{{" is a text/template over the context.
func sayFunc(stateID, text string, variants []string) (func(domain.Context) string, error) {
	if text != "" {
		variants = append([]string{text}, variants...)
	}
	renders := make([]func(domain.Context) string, 0, len(variants))
	for i, v := range variants {
		if !strings.Contains(v, "{{") {
			v := v
			renders = append(renders, func(domain.Context) string { return v })
			continue
		}
		tmpl, err := template.New(fmt.Sprintf("%s.%d", stateID, i)).Option("missingkey=zero").Parse(v)
		if err != nil {
			return nil, &domain.DefinitionError{StateID: stateID, Reason: fmt.Sprintf("invalid prompt template: %v", err)}
		}
		renders = append(renders, func(ctx domain.Context) string {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, templateData(ctx)); err != nil {
				return v
			}
			return buf.String()
		})
	}
	if len(renders) == 1 {
		return renders[0], nil
	}
	return func(ctx domain.Context) string {
		return renders[ctx.Intn(len(renders))](ctx)
	}, nil
}

func templateData(ctx domain.Context) map[string]any {
	data := make(map[string]any, len(ctx.Slots)+3)
	for k, v := range ctx.Slots {
		data[k] = v
	}
	data["flags"] = ctx.Flags
	data["counters"] = ctx.Counters
	data["utterance"] = ctx.Utterance()
	return data
}
