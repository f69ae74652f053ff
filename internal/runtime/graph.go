package runtime

import (
	"fmt"

	"github.com/aretw0/parlance/pkg/domain"
)

// Graph is a validated, indexed flow definition.
// It is immutable and shared by every machine spawned from it.
type Graph struct {
	def    *domain.Definition
	nodes  map[string]*domain.Node
	parent map[string]string
}

// Compile validates a definition and indexes its nodes.
func Compile(def *domain.Definition) (*Graph, error) {
	if def == nil {
		return nil, &domain.DefinitionError{Reason: "nil definition"}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		def:    def,
		nodes:  make(map[string]*domain.Node),
		parent: make(map[string]string),
	}
	_ = def.Walk(func(n, parent *domain.Node) error {
		g.nodes[n.ID] = n
		if parent != nil {
			g.parent[n.ID] = parent.ID
		}
		return nil
	})
	return g, nil
}

// MustCompile is like Compile but panics on error. It is intended for
// package-level flow variables.
func MustCompile(def *domain.Definition) *Graph {
	g, err := Compile(def)
	if err != nil {
		panic(fmt.Sprintf("runtime: %v", err))
	}
	return g
}

// Definition returns the underlying definition.
func (g *Graph) Definition() *domain.Definition {
	return g.def
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*domain.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parent returns the parent ID, or "" for top-level states.
func (g *Graph) Parent(id string) string {
	return g.parent[id]
}

// Path returns the IDs from the top-level ancestor down to id.
func (g *Graph) Path(id string) []string {
	var rev []string
	for cur := id; cur != ""; cur = g.parent[cur] {
		rev = append(rev, cur)
	}
	out := make([]string, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// IsAncestor reports whether a is a proper ancestor of id.
func (g *Graph) IsAncestor(a, id string) bool {
	for p := g.parent[id]; p != ""; p = g.parent[p] {
		if p == a {
			return true
		}
	}
	return false
}

// transitionDomain returns the state whose descendants are exited and
// re-entered by an external transition from source to target: the nearest
// proper ancestor of source that also contains target. "" means the root.
func (g *Graph) transitionDomain(source, target string) string {
	for a := g.parent[source]; a != ""; a = g.parent[a] {
		if g.IsAncestor(a, target) {
			return a
		}
	}
	return ""
}
