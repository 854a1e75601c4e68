/*
Package observability provides event sinks for monitoring the Tale engine.

Sessions emit lifecycle events (node entered, tick, commit, failure, rejection, end)
to every registered ports.EventSink. This package turns them into Prometheus
metrics and structured log lines.
*/
package observability
