package session

import (
	"log/slog"
	"time"

	"github.com/aretw0/tale/pkg/clock"
	"github.com/aretw0/tale/pkg/ports"
)

// DefaultTickInterval is the countdown step.
const DefaultTickInterval = time.Second

// DefaultTransitionDelay is the simulated processing time of a commit.
const DefaultTransitionDelay = time.Second

// Option defines a functional option for configuring the Controller.
type Option func(*Controller)

// WithID sets the session identifier used in snapshots, events and logs.
func WithID(id string) Option {
	return func(c *Controller) {
		c.id = id
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces the wall clock (used by tests to drive the countdown by hand).
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithCountdown sets the number of seconds granted per node.
func WithCountdown(seconds int) Option {
	return func(c *Controller) {
		if seconds > 0 {
			c.countdown = seconds
		}
	}
}

// WithTickInterval sets the duration of one countdown step.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTransitioner replaces the commit step.
func WithTransitioner(t ports.Transitioner) Option {
	return func(c *Controller) {
		if t != nil {
			c.transition = t
		}
	}
}

// WithTransitionDelay uses the default commit step with the given simulated latency.
func WithTransitionDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.transition = Delay(d)
	}
}

// WithEventSink registers sinks that receive lifecycle events.
func WithEventSink(sinks ...ports.EventSink) Option {
	return func(c *Controller) {
		for _, s := range sinks {
			if s != nil {
				c.sinks = append(c.sinks, s)
			}
		}
	}
}
