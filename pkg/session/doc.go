/*
Package session implements the Session Controller: the state machine that moves a
single playthrough through a story graph.

A Controller owns one event loop goroutine, which is the only writer of the
session state (current node, countdown, status, generation). Three kinds of
events reach the loop:

  - countdown ticks from the activation's ticker,
  - player choices queued by Submit (safe from any goroutine, never blocks),
  - completions of the commit step, stamped with the generation they belong to.

Every activation bumps the generation, stops the previous ticker and cancels the
previous commit, so a stale callback can never mutate a state that has moved on.

	ctrl, err := session.New(graph, presenter, session.WithCountdown(10))
	if err != nil {
		return err
	}
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	<-ctrl.Done()
*/
package session
