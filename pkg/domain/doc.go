/*
Package domain contains the core domain models of the Tale engine.

It defines the fundamental entities of the narrative state machine, such as Nodes,
Choices, the Graph and the session Snapshot. This package is kept pure and free of
external dependencies like I/O or timers, following Hexagonal Architecture principles.

# Key Entities

  - Node: A scene in the story (description + ordered choices). Zero choices means an ending.
  - Choice: A labeled edge to another Node. Index 0 is the timeout default.
  - Graph: The immutable set of nodes reachable from the entry node.
  - Snapshot: A read-only copy of a session's progress (node, status, countdown, history).
  - Event: A lifecycle notification emitted by the session controller.
*/
package domain
