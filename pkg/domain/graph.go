package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is the read-only set of nodes reachable from the entry node.
type Graph struct {
	entry *Node
	nodes map[string]*Node
}

// NewGraph indexes every node reachable from entry.
// Builders are expected to have validated the nodes beforehand.
func NewGraph(entry *Node) *Graph {
	g := &Graph{
		entry: entry,
		nodes: make(map[string]*Node),
	}
	if entry == nil {
		return g
	}

	queue := []*Node{entry}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if _, seen := g.nodes[n.ID]; seen {
			continue
		}
		g.nodes[n.ID] = n
		for _, c := range n.Choices {
			if c.Target != nil {
				queue = append(queue, c.Target)
			}
		}
	}
	return g
}

// Entry returns the fixed starting node of every session.
func (g *Graph) Entry() *Node {
	return g.entry
}

// Node looks up a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by ID, entry first.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i] == g.entry {
			return true
		}
		if out[j] == g.entry {
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of reachable nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Terminals returns the IDs of all ending nodes, sorted.
func (g *Graph) Terminals() []string {
	var ids []string
	for id, n := range g.nodes {
		if n.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Validate checks that every reachable node is fully wired: the entry exists,
// nodes carry an ID, a known kind and a description, and no choice slot is left
// without a label or target. It returns an *IntegrityError listing every defect.
func Validate(g *Graph) error {
	if g == nil || g.entry == nil {
		return &IntegrityError{Problems: []string{"graph has no entry node"}}
	}

	var problems []string
	for _, n := range g.Nodes() {
		if n.ID == "" {
			problems = append(problems, "node with empty ID")
		}
		if !n.Kind.Valid() {
			problems = append(problems, fmt.Sprintf("node '%s' has unknown kind '%s'", n.ID, n.Kind))
		}
		if strings.TrimSpace(n.Description) == "" {
			problems = append(problems, fmt.Sprintf("node '%s' has no description", n.ID))
		}
		for i, c := range n.Choices {
			if strings.TrimSpace(c.Label) == "" {
				problems = append(problems, fmt.Sprintf("node '%s' choice %d has no label", n.ID, i))
			}
			if c.Target == nil {
				problems = append(problems, fmt.Sprintf("node '%s' choice %d (%q) has no target", n.ID, i, c.Label))
			}
		}
	}

	if len(problems) > 0 {
		return &IntegrityError{Problems: problems}
	}
	return nil
}
