/*
Package tale is a timed interactive-narrative engine for building choose-your-own-adventure games, terminal demos and HTTP or MCP driven playthroughs.

A story is a directed graph of nodes. Every non-terminal node offers choices and a countdown: the player either picks a choice before it reaches zero, or the first choice is taken for them. A short processing step runs between a commit and the next node; if it fails the same node is presented again.

# Concept

Each playthrough is driven by a session controller running a single event loop, so countdown ticks, player choices and commit results are serialized without locks in the callers. Frontends implement ports.Presenter to render nodes and ticks; observers implement ports.EventSink to receive lifecycle events. This Hexagonal Architecture allows Tale to be embedded in any interface: CLI, HTTP Server, or AI Agent infrastructure.

# Key Features

  - Single-writer sessions: at most one commit per node activation, stale ticks and results are dropped.
  - Integrity checks: graphs are validated once, before any session starts.
  - Observable: Prometheus metrics, structured logs and a Redis Streams journal plug in as event sinks.
  - Adapters: terminal presenter, HTTP API with server-sent events, and an MCP server.

# Usage

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/aretw0/tale"
		"github.com/aretw0/tale/pkg/story"
	)

	func main() {
		eng, err := tale.New(story.MustCave())
		if err != nil {
			log.Fatal(err)
		}

		snap, err := tale.NewRunner(os.Stdin, os.Stdout).Run(context.Background(), eng)
		if err != nil {
			log.Fatal(err)
		}
		log.Println("reached", snap.NodeID)
	}

Servers create sessions through Engine.Registry and address them by ID; see pkg/adapters/http and pkg/adapters/mcp.
*/
package tale
