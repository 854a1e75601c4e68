package tale

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/tale/pkg/adapters/text"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/muesli/termenv"
)

// Runner plays one session on a line-oriented terminal using the provided IO.
// This allows for easy testing and integration with different frontends.
type Runner struct {
	Input  io.Reader
	Output io.Writer
	// Headless disables colors and per-second countdown lines (pipes, CI).
	Headless bool
	// Renderer transforms node descriptions before they are printed (e.g. markdown to ANSI).
	Renderer text.ContentRenderer
}

// NewRunner creates a Runner reading from in and writing to out.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out}
}

// Run starts a session of engine and blocks until it reaches an ending, the
// player quits or ctx is cancelled. The countdown keeps driving the story after
// the input is exhausted. The final snapshot is returned in every case.
func (r *Runner) Run(ctx context.Context, engine *Engine) (domain.Snapshot, error) {
	if r.Input == nil {
		return domain.Snapshot{}, fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return domain.Snapshot{}, fmt.Errorf("output writer must be set (use os.Stdout)")
	}

	var opts []text.Option
	if r.Renderer != nil {
		opts = append(opts, text.WithRenderer(r.Renderer))
	}
	if r.Headless {
		opts = append(opts, text.WithQuietCountdown(), text.WithProfile(termenv.Ascii))
	}

	// The presenter serializes every write; Pump and the quit message go through it too.
	presenter := text.NewPresenter(r.Output, opts...)
	ctrl, err := engine.NewSession(presenter)
	if err != nil {
		return domain.Snapshot{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := ctrl.Start(ctx); err != nil {
		return ctrl.Snapshot(), err
	}
	defer ctrl.Stop()

	err = text.Pump(ctx, r.Input, presenter, ctrl)
	switch {
	case errors.Is(err, text.ErrQuit):
		fmt.Fprintln(presenter, "Bye!")
		ctrl.Stop()
		return ctrl.Snapshot(), nil
	case err != nil:
		ctrl.Stop()
		return ctrl.Snapshot(), err
	}

	if err := ctrl.Wait(ctx); err != nil {
		ctrl.Stop()
		return ctrl.Snapshot(), err
	}
	snap := ctrl.Snapshot()
	if snap.Status != domain.StatusEnded && ctx.Err() != nil {
		return snap, ctx.Err()
	}
	return snap, nil
}
