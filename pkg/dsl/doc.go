/*
Package dsl provides a Go DSL for programmatically constructing Tale story graphs.

Nodes are declared by ID and wired to each other by ID; Build resolves every
reference into direct node pointers and runs the integrity check, so a story with
an unfilled choice slot never reaches a session.

Example usage:

	b := dsl.New().Entry("gate")

	b.Add("gate").
		Dialogue("A locked gate blocks the road.").
		Choice("Knock", "guard").
		Choice("Turn back", "home")

	b.Add("guard").
		Battle("A guard steps out, sword drawn.").
		Choice("Fight", "home").
		Choice("Run", "gate") // cycles are fine

	b.Add("home").
		Dialogue("You are home.").
		Ending()

	graph, err := b.Build()
*/
package dsl
