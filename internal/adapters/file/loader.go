package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader implements ports.FlowLoader over a directory of YAML flow files.
// A flow is addressed by its file name without extension.
type Loader struct {
	BasePath string
}

// NewLoader creates a Loader reading from dir.
func NewLoader(dir string) *Loader {
	return &Loader{BasePath: dir}
}

var flowExts = []string{".yaml", ".yml"}

// GetFlow reads <name>.yaml (or .yml).
func (l *Loader) GetFlow(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return nil, fmt.Errorf("invalid flow name: %q", name)
	}
	for _, ext := range flowExts {
		data, err := os.ReadFile(filepath.Join(l.BasePath, name+ext))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read flow %s: %w", name, err)
		}
	}
	return nil, fmt.Errorf("flow not found: %s", name)
}

// ListFlows returns the names of all flow files in the directory.
func (l *Loader) ListFlows() ([]string, error) {
	entries, err := os.ReadDir(l.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
