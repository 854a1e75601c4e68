package dsl

import (
	"fmt"
	"sort"

	"github.com/aretw0/tale/pkg/domain"
)

// DefaultEntry is the node ID used as entry when Entry is not called.
const DefaultEntry = "start"

// Builder manages the graph construction.
type Builder struct {
	nodes map[string]*NodeBuilder
	order []string
	entry string

	collisions []string
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
		entry: DefaultEntry,
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder; describing it a
// second time is reported by Build as a collision.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		id:      id,
		kind:    domain.KindDialogue,
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Entry sets the node every session starts from.
func (b *Builder) Entry(id string) *Builder {
	b.entry = id
	return b
}

// Build wires every choice to its target node and validates the result.
// Any unresolved or unfilled choice slot is a builder defect and is reported
// as a *domain.IntegrityError; no partial graph is returned.
func (b *Builder) Build() (*domain.Graph, error) {
	var problems []string
	for _, id := range b.collisions {
		problems = append(problems, fmt.Sprintf("node '%s' is declared more than once", id))
	}

	nodes := make(map[string]*domain.Node, len(b.nodes))
	for _, id := range b.order {
		nb := b.nodes[id]
		if id == "" {
			problems = append(problems, "node with empty ID")
			continue
		}
		nodes[id] = &domain.Node{
			ID:          id,
			Kind:        nb.kind,
			Description: nb.description,
			Choices:     make([]domain.Choice, len(nb.choices)),
		}
	}

	for _, id := range b.order {
		nb := b.nodes[id]
		node, ok := nodes[id]
		if !ok {
			continue
		}
		for i, c := range nb.choices {
			node.Choices[i].Label = c.label
			if c.target == "" {
				problems = append(problems, fmt.Sprintf("node '%s' choice %d (%q) has no target", id, i, c.label))
				continue
			}
			target, ok := nodes[c.target]
			if !ok {
				problems = append(problems, fmt.Sprintf("node '%s' choice %d (%q) points to unknown node '%s'", id, i, c.label, c.target))
				continue
			}
			node.Choices[i].Target = target
		}
	}

	entry, ok := nodes[b.entry]
	if !ok {
		problems = append(problems, fmt.Sprintf("entry node '%s' is not defined", b.entry))
	}

	if len(problems) > 0 {
		return nil, &domain.IntegrityError{Problems: problems}
	}

	g := domain.NewGraph(entry)
	if err := domain.Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Unreachable lists the IDs of defined nodes that cannot be reached from the entry.
// Build drops them silently; validators report them as warnings.
func (b *Builder) Unreachable() []string {
	g, err := b.Build()
	if err != nil {
		return nil
	}
	var ids []string
	for _, id := range b.order {
		if _, ok := g.Node(id); !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
