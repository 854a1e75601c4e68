/*
Package ports defines the driven ports (interfaces) for the Tale engine.

These interfaces decouple the session controller from external implementations,
allowing the engine to be rendered by any frontend and observed by any backend.

# Key Interfaces

  - Presenter: Receives node activations, countdown ticks, endings and recoverable errors.
  - Transitioner: Performs the (simulated) processing step that runs between a commit and the next node.
  - EventSink: Receives lifecycle events for metrics, journals and live streams.
  - Session: The surface adapters use to drive and inspect a running session.
*/
package ports
