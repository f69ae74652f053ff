package dsl

import (
	"fmt"

	"github.com/aretw0/parlance/pkg/domain"
)

// Suffixes of the child states generated by Question.
const (
	PromptSuffix = ".prompt"
	ListenSuffix = ".listen"
)

// Builder manages the flow construction.
type Builder struct {
	id      string
	initial string
	context map[string]any
	order   []string
	nodes   map[string]*NodeBuilder
}

// New creates a new flow builder.
func New(id string) *Builder {
	return &Builder{
		id:      id,
		context: make(map[string]any),
		nodes:   make(map[string]*NodeBuilder),
	}
}

// Initial sets the top-level state entered on start.
// By default it is the first top-level state added.
func (b *Builder) Initial(id string) *Builder {
	b.initial = id
	return b
}

// Context adds an initial slot value.
func (b *Builder) Context(key string, value any) *Builder {
	b.context[key] = value
	return b
}

// Add creates a new atomic state.
// If the state already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    &domain.Node{ID: id, Kind: domain.NodeAtomic},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Prepare adds a state that asks the collaborator to initialize audio.
func (b *Builder) Prepare(id string) *NodeBuilder {
	nb := b.Add(id)
	nb.node.Entry.Kind = domain.EntryPrepare
	return nb
}

// Say adds a state that speaks a fixed utterance.
func (b *Builder) Say(id, text string) *NodeBuilder {
	nb := b.Add(id)
	nb.node.Entry.Kind = domain.EntrySpeak
	nb.node.Entry.Text = text
	nb.speak = nb.node
	return nb
}

// SayFunc adds a state that speaks an utterance computed from the context.
func (b *Builder) SayFunc(id string, say func(domain.Context) string) *NodeBuilder {
	nb := b.Say(id, "")
	nb.node.Entry.Say = say
	return nb
}

// Listen adds a state that requests one recognition turn.
func (b *Builder) Listen(id string) *NodeBuilder {
	nb := b.Add(id)
	nb.node.Entry.Kind = domain.EntryListen
	nb.listen = nb.node
	return nb
}

// Question adds a compound state that speaks a prompt and then listens.
// It generates the children "<id>.prompt" and "<id>.listen"; the returned
// builder configures the compound, so recognition handlers declared on it
// apply while either child is active.
func (b *Builder) Question(id, text string) *NodeBuilder {
	return b.QuestionFunc(id, func(domain.Context) string { return text })
}

// QuestionFunc is like Question with a computed prompt.
func (b *Builder) QuestionFunc(id string, say func(domain.Context) string) *NodeBuilder {
	nb := b.Compound(id, id+PromptSuffix)
	prompt := b.SayFunc(id+PromptSuffix, say).In(id).Then(id + ListenSuffix)
	listen := b.Listen(id + ListenSuffix).In(id)
	nb.speak = prompt.node
	nb.listen = listen.node
	return nb
}

// Compound adds a state with nested children entered at initial.
func (b *Builder) Compound(id, initial string) *NodeBuilder {
	nb := b.Add(id)
	nb.node.Kind = domain.NodeCompound
	nb.node.Initial = initial
	return nb
}

// History adds a history pseudo-state inside parent.
func (b *Builder) History(id, parent string, mode domain.HistoryMode) *NodeBuilder {
	nb := b.Add(id).In(parent)
	nb.node.Kind = domain.NodeHistory
	nb.node.History = mode
	return nb
}

// Final adds a final state.
func (b *Builder) Final(id string) *NodeBuilder {
	nb := b.Add(id)
	nb.node.Kind = domain.NodeFinal
	return nb
}

// Build assembles the tree and validates it.
func (b *Builder) Build() (*domain.Definition, error) {
	def := &domain.Definition{
		ID:      b.id,
		Initial: b.initial,
		Context: b.context,
	}

	for _, id := range b.order {
		nb := b.nodes[id]
		nb.node.Children = nil
	}
	for _, id := range b.order {
		nb := b.nodes[id]
		if nb.parent == "" {
			def.States = append(def.States, nb.node)
			if def.Initial == "" {
				def.Initial = id
			}
			continue
		}
		parent, ok := b.nodes[nb.parent]
		if !ok {
			return nil, &domain.DefinitionError{StateID: id, Reason: fmt.Sprintf("unknown parent '%s'", nb.parent)}
		}
		parent.node.Children = append(parent.node.Children, nb.node)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *domain.Definition {
	def, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("dsl: %v", err))
	}
	return def
}
