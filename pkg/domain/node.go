package domain

// Kind classifies a node. Kinds share the same control flow today; the tag is
// carried so adapters and future rules can tell scenes apart.
type Kind string

const (
	// KindDialogue is a narrative scene with conversational choices.
	KindDialogue Kind = "dialogue"
	// KindBattle is an encounter scene.
	KindBattle Kind = "battle"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindDialogue || k == KindBattle
}

// Choice is a labeled edge to another node.
type Choice struct {
	Label  string
	Target *Node
}

// Node represents a unit of narrative content in the graph.
// Nodes are built once by a builder and never mutated afterwards.
type Node struct {
	ID          string
	Kind        Kind
	Description string

	// Choices is ordered. Index 0 is the default taken when the countdown expires.
	Choices []Choice
}

// Terminal reports whether the node ends the story (no outgoing choices).
func (n *Node) Terminal() bool {
	return len(n.Choices) == 0
}

// Labels returns the choice labels in order.
func (n *Node) Labels() []string {
	labels := make([]string, len(n.Choices))
	for i, c := range n.Choices {
		labels[i] = c.Label
	}
	return labels
}

// View returns the presentation payload for this node.
func (n *Node) View(remaining int) NodeView {
	return NodeView{
		NodeID:      n.ID,
		Kind:        n.Kind,
		Description: n.Description,
		Choices:     n.Labels(),
		Remaining:   remaining,
		Terminal:    n.Terminal(),
	}
}

// NodeView is what a presenter needs to render a node.
type NodeView struct {
	NodeID      string   `json:"node_id"`
	Kind        Kind     `json:"kind"`
	Description string   `json:"description"`
	Choices     []string `json:"choices"`
	Remaining   int      `json:"remaining"`
	Terminal    bool     `json:"terminal"`
}
