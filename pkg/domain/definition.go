package domain

import "fmt"

// Definition is a complete dialogue flow: a forest of top-level states,
// the initial one, and the initial slot values of the context.
type Definition struct {
	ID      string         `json:"id"`
	Initial string         `json:"initial"`
	Context map[string]any `json:"context,omitempty"`
	States  []*Node        `json:"states"`
}

// Walk visits every node depth-first, passing its parent (nil at top level).
// Returning an error stops the walk.
func (d *Definition) Walk(fn func(n, parent *Node) error) error {
	var visit func(nodes []*Node, parent *Node) error
	visit = func(nodes []*Node, parent *Node) error {
		for _, n := range nodes {
			if err := fn(n, parent); err != nil {
				return err
			}
			if err := visit(n.Children, n); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(d.States, nil)
}

// Nodes returns all nodes in depth-first order.
func (d *Definition) Nodes() []*Node {
	var out []*Node
	_ = d.Walk(func(n, _ *Node) error {
		out = append(out, n)
		return nil
	})
	return out
}

// Validate checks the structural integrity of the graph.
func (d *Definition) Validate() error {
	if len(d.States) == 0 {
		return &DefinitionError{Reason: "no states"}
	}

	parents := make(map[string]*Node)
	seen := make(map[string]bool)
	err := d.Walk(func(n, parent *Node) error {
		if n == nil || n.ID == "" {
			return &DefinitionError{Reason: "state with empty id"}
		}
		if seen[n.ID] {
			return &DefinitionError{StateID: n.ID, Reason: "duplicate id"}
		}
		seen[n.ID] = true
		parents[n.ID] = parent
		return nil
	})
	if err != nil {
		return err
	}

	if d.Initial == "" {
		return &DefinitionError{Reason: "missing initial state"}
	}
	if !isTopLevel(d.States, d.Initial) {
		return &DefinitionError{StateID: d.Initial, Reason: "initial state is not a top-level state"}
	}

	return d.Walk(func(n, parent *Node) error {
		return validateNode(n, parent, seen, parents)
	})
}

func validateNode(n, parent *Node, seen map[string]bool, parents map[string]*Node) error {
	switch n.Kind {
	case NodeAtomic, NodeFinal:
		if len(n.Children) > 0 {
			return &DefinitionError{StateID: n.ID, Reason: fmt.Sprintf("%s state cannot have children", n.Kind)}
		}
	case NodeCompound:
		if len(n.Children) == 0 {
			return &DefinitionError{StateID: n.ID, Reason: "compound state has no children"}
		}
		initial := n.Child(n.Initial)
		if initial == nil {
			return &DefinitionError{StateID: n.ID, Reason: fmt.Sprintf("initial '%s' is not a direct child", n.Initial)}
		}
		if initial.Kind == NodeHistory {
			return &DefinitionError{StateID: n.ID, Reason: "initial child cannot be a history state"}
		}
	case NodeHistory:
		if parent == nil || parent.Kind != NodeCompound {
			return &DefinitionError{StateID: n.ID, Reason: "history state must be a child of a compound state"}
		}
		if len(n.Children) > 0 || len(n.On) > 0 || len(n.Always) > 0 || len(n.After) > 0 || n.Entry.Kind != EntryNone {
			return &DefinitionError{StateID: n.ID, Reason: "history state cannot declare children, transitions or entry actions"}
		}
		if n.Default != "" && !isDescendant(n.Default, parent.ID, parents) {
			return &DefinitionError{StateID: n.ID, Reason: fmt.Sprintf("default '%s' is outside '%s'", n.Default, parent.ID)}
		}
	default:
		return &DefinitionError{StateID: n.ID, Reason: fmt.Sprintf("unknown kind '%s'", n.Kind)}
	}

	if n.Kind == NodeFinal && (len(n.On) > 0 || len(n.Always) > 0 || len(n.After) > 0) {
		return &DefinitionError{StateID: n.ID, Reason: "final state cannot have outgoing transitions"}
	}

	check := func(t Transition) error {
		if t.Target != "" && !seen[t.Target] {
			return &DefinitionError{StateID: n.ID, Reason: fmt.Sprintf("transition to unknown state '%s'", t.Target)}
		}
		return nil
	}
	for ev, ts := range n.On {
		if ev == "" {
			return &DefinitionError{StateID: n.ID, Reason: "transition with empty event type"}
		}
		for _, t := range ts {
			if err := check(t); err != nil {
				return err
			}
		}
	}
	for _, t := range n.Always {
		if t.Target == "" {
			return &DefinitionError{StateID: n.ID, Reason: "eventless transition must have a target"}
		}
		if err := check(t); err != nil {
			return err
		}
	}
	for _, t := range n.After {
		if t.Delay <= 0 {
			return &DefinitionError{StateID: n.ID, Reason: "delayed transition needs a positive delay"}
		}
		if err := check(t.Transition); err != nil {
			return err
		}
	}
	return nil
}

func isTopLevel(nodes []*Node, id string) bool {
	for _, n := range nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

func isDescendant(id, ancestor string, parents map[string]*Node) bool {
	for p := parents[id]; p != nil; p = parents[p.ID] {
		if p.ID == ancestor {
			return true
		}
	}
	return false
}
