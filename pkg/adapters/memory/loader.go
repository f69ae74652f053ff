package memory

import (
	"fmt"
	"sort"
)

// Loader implements ports.FlowLoader using an in-memory map.
type Loader struct {
	flows map[string][]byte
}

// NewLoader creates a new Loader with the provided raw flow documents (YAML).
func NewLoader(data map[string]string) *Loader {
	flows := make(map[string][]byte)
	for k, v := range data {
		flows[k] = []byte(v)
	}
	return &Loader{
		flows: flows,
	}
}

// GetFlow retrieves the raw definition of a flow by name.
func (l *Loader) GetFlow(name string) ([]byte, error) {
	content, ok := l.flows[name]
	if !ok {
		return nil, fmt.Errorf("flow not found: %s", name)
	}
	return content, nil
}

// ListFlows returns all available flow names.
func (l *Loader) ListFlows() ([]string, error) {
	keys := make([]string, 0, len(l.flows))
	for k := range l.flows {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
