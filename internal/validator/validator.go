// Package validator checks flows beyond structural integrity: it crawls the
// graph from the initial state and reports states no conversation can reach.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/parlance/pkg/domain"
)

// ValidateGraph checks the definition for broken links and unreachable states.
func ValidateGraph(def *domain.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	unreachable := Unreachable(def)
	if len(unreachable) > 0 {
		return fmt.Errorf("found %d unreachable states:\n- %s", len(unreachable), strings.Join(unreachable, "\n- "))
	}
	return nil
}

// Unreachable lists, sorted, the states never entered from def.Initial.
// Entering a state also enters its ancestors and, for compounds, the
// initial child.
func Unreachable(def *domain.Definition) []string {
	nodes := make(map[string]*domain.Node)
	parents := make(map[string]string)
	_ = def.Walk(func(n, parent *domain.Node) error {
		nodes[n.ID] = n
		if parent != nil {
			parents[n.ID] = parent.ID
		}
		return nil
	})

	visited := make(map[string]bool)
	queue := []string{def.Initial}

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		n, ok := nodes[currentID]
		if !ok {
			continue
		}
		visited[currentID] = true

		var next []string
		if p, ok := parents[currentID]; ok {
			next = append(next, p)
		}
		if n.Initial != "" {
			next = append(next, n.Initial)
		}
		if n.Default != "" {
			next = append(next, n.Default)
		}
		for _, ts := range n.On {
			for _, t := range ts {
				next = append(next, t.Target)
			}
		}
		for _, t := range n.Always {
			next = append(next, t.Target)
		}
		for _, t := range n.After {
			next = append(next, t.Target)
		}

		for _, target := range next {
			if target != "" && !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	var out []string
	for id := range nodes {
		if !visited[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
