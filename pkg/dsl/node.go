package dsl

import "github.com/aretw0/tale/pkg/domain"

type choiceSpec struct {
	label  string
	target string
}

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	id          string
	kind        domain.Kind
	description string
	choices     []choiceSpec
	declared    bool
	builder     *Builder
}

// Dialogue sets the description and marks the node as a dialogue scene.
func (n *NodeBuilder) Dialogue(description string) *NodeBuilder {
	n.declare()
	n.kind = domain.KindDialogue
	n.description = description
	return n
}

// Battle sets the description and marks the node as a battle scene.
func (n *NodeBuilder) Battle(description string) *NodeBuilder {
	n.declare()
	n.kind = domain.KindBattle
	n.description = description
	return n
}

// declare records a second description on the same ID as a collision.
func (n *NodeBuilder) declare() {
	if n.declared {
		n.builder.collisions = append(n.builder.collisions, n.id)
	}
	n.declared = true
}

// Kind overrides the node kind.
func (n *NodeBuilder) Kind(kind domain.Kind) *NodeBuilder {
	n.kind = kind
	return n
}

// Choice appends a labeled edge to the node with the given ID.
// The first choice added is the one taken when the countdown expires.
func (n *NodeBuilder) Choice(label, targetID string) *NodeBuilder {
	n.choices = append(n.choices, choiceSpec{label: label, target: targetID})
	return n
}

// Ending marks the node as terminal by discarding any choices.
func (n *NodeBuilder) Ending() *NodeBuilder {
	n.choices = nil
	return n
}

// Add is a shortcut to start a new node from the parent builder.
func (n *NodeBuilder) Add(id string) *NodeBuilder {
	return n.builder.Add(id)
}
