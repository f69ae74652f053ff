package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/parlance/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	// ActivePath lists the active states from the outermost compound down.
	ActivePath   []string
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromSnapshot highlights the active configuration of a session.
func OverlayFromSnapshot(s domain.Snapshot) *GraphOverlay {
	return &GraphOverlay{ActivePath: s.Path, CurrentNode: s.Value}
}

// GenerateMermaid produces a Mermaid flowchart for a definition.
// Compound states become subgraphs. It applies semantic styling:
// - Prepare: ((Circle))
// - Listen: [/Parallelogram/]
// - History: {{Hexagon}}
// - Final: (((Double circle)))
// - Default: [Rectangle]
// Eventless transitions are dotted, delayed ones carry the delay.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(def *domain.Definition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	if def.Initial != "" {
		fmt.Fprintf(&sb, "    %s((\" \")) --> %s\n", startID(""), sanitizeMermaidID(def.Initial))
	}
	writeNodes(&sb, def.States, "    ")

	var edges strings.Builder
	_ = def.Walk(func(n, _ *domain.Node) error {
		writeEdges(&edges, n)
		return nil
	})
	sb.WriteString(edges.String())

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef active fill:#fff8e1,stroke:#fbc02d,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		for _, id := range overlay.ActivePath {
			if id != overlay.CurrentNode && id != "" {
				fmt.Fprintf(&sb, "    class %s active;\n", sanitizeMermaidID(id))
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func writeNodes(sb *strings.Builder, nodes []*domain.Node, indent string) {
	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.ID)

		if node.IsCompound() {
			title := node.ID
			if node.History != domain.HistoryNone {
				title += " (H)"
			}
			fmt.Fprintf(sb, "%ssubgraph %s[\"%s\"]\n", indent, safeID, title)
			if node.Initial != "" {
				fmt.Fprintf(sb, "%s    %s((\" \")) --> %s\n", indent, startID(node.ID), sanitizeMermaidID(node.Initial))
			}
			writeNodes(sb, node.Children, indent+"    ")
			fmt.Fprintf(sb, "%send\n", indent)
			continue
		}

		opener, closer := "[", "]"
		label := node.ID
		switch {
		case node.Kind == domain.NodeFinal:
			opener, closer = "(((", ")))"
		case node.Kind == domain.NodeHistory:
			opener, closer = "{{", "}}"
			label = "H"
			if node.History == domain.HistoryDeep {
				label = "H*"
			}
			label += " " + node.ID
		case node.Entry.Kind == domain.EntryPrepare:
			opener, closer = "((", "))"
		case node.Entry.Kind == domain.EntryListen:
			opener, closer = "[/", "/]"
		case node.Entry.Kind == domain.EntrySpeak && node.Entry.Say == nil && node.Entry.Text != "":
			label = fmt.Sprintf("%s <br/> 🔊 %s", node.ID, escape(node.Entry.Text))
		}
		fmt.Fprintf(sb, "%s%s%s\"%s\"%s\n", indent, safeID, opener, label, closer)
	}
}

func writeEdges(sb *strings.Builder, node *domain.Node) {
	safeID := sanitizeMermaidID(node.ID)

	if node.Kind == domain.NodeHistory && node.Default != "" {
		fmt.Fprintf(sb, "    %s -. \"default\" .-> %s\n", safeID, sanitizeMermaidID(node.Default))
	}

	events := make([]string, 0, len(node.On))
	for ev := range node.On {
		events = append(events, string(ev))
	}
	sort.Strings(events)
	for _, ev := range events {
		name := ev
		if domain.EventType(ev).IsDone() {
			name = "done"
		}
		for _, t := range node.On[domain.EventType(ev)] {
			writeEdge(sb, safeID, name, t, "--", "-->")
		}
	}
	for _, t := range node.Always {
		writeEdge(sb, safeID, "always", t, "-.", ".->")
	}
	for _, d := range node.After {
		writeEdge(sb, safeID, "⏱️ "+d.Delay.String(), d.Transition, "-.", ".->")
	}
}

func writeEdge(sb *strings.Builder, from, name string, t domain.Transition, open, close string) {
	to := from
	if t.Target != "" {
		to = sanitizeMermaidID(t.Target)
	}
	label := name
	if t.Label != "" {
		label += " [" + t.Label + "]"
	}
	if t.Reset {
		label += " ⟲"
	}
	fmt.Fprintf(sb, "    %s %s \"%s\" %s %s\n", from, open, escape(label), close, to)
}

func startID(parent string) string {
	if parent == "" {
		return "_start"
	}
	return sanitizeMermaidID(parent) + "__start"
}

// escape replaces double quotes, which Mermaid labels cannot contain.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	// "end" closes a subgraph in Mermaid.
	if strings.EqualFold(s, "end") {
		s += "_"
	}
	return s
}
