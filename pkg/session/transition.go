package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
)

// ErrSimulatedFailure is returned by Flaky when it decides to fail a commit.
var ErrSimulatedFailure = errors.New("simulated processing failure")

// Delay returns the default commit step: it waits d (simulated loading time)
// and succeeds, or returns ctx.Err() if the activation is cancelled first.
func Delay(d time.Duration) ports.Transitioner {
	return ports.TransitionFunc(func(ctx context.Context, _ *domain.Node, _ int) error {
		if d <= 0 {
			return ctx.Err()
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})
}

// Flaky wraps next and fails every n-th commit with ErrSimulatedFailure.
// It is deterministic; n <= 0 disables failures.
func Flaky(next ports.Transitioner, n int) ports.Transitioner {
	var count atomic.Int64
	return ports.TransitionFunc(func(ctx context.Context, from *domain.Node, index int) error {
		if err := next.Commit(ctx, from, index); err != nil {
			return err
		}
		if n > 0 && count.Add(1)%int64(n) == 0 {
			return ErrSimulatedFailure
		}
		return nil
	})
}
