package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tale/pkg/domain"
)

// Overlay contains session state to visualize on the graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart for a story graph.
// Shapes follow the node's role:
// - Entry: ((Circle))
// - Battle: {{Hexagon}}
// - Ending: ([Stadium])
// - Default: [Rectangle]
// Edges are labeled with "index. label"; the edge taken on timeout is drawn thick.
// Overlay styles (visited/current) are applied when overlay is not nil.
func GenerateMermaid(g *domain.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	entry := g.Entry()
	for _, node := range g.Nodes() {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node == entry:
			opener, closer = "((", "))"
		case node.Terminal():
			opener, closer = "([", "])"
		case node.Kind == domain.KindBattle:
			opener, closer = "{{", "}}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, node.ID, closer)

		for i, choice := range node.Choices {
			arrow := "-->"
			if i == domain.TimeoutChoice {
				arrow = "==>"
			}
			label := strings.ReplaceAll(choice.Label, "\"", "'")
			fmt.Fprintf(&sb, "    %s %s|\"%d. %s\"| %s\n", safeID, arrow, i+1, label, sanitizeMermaidID(choice.Target.ID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

// OverlayFor builds an overlay from a session snapshot.
func OverlayFor(s domain.Snapshot) *Overlay {
	return &Overlay{VisitedNodes: s.History, CurrentNode: s.NodeID}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
