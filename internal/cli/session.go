package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/tale"
	"github.com/aretw0/tale/internal/config"
	"github.com/aretw0/tale/internal/logging"
	"github.com/aretw0/tale/internal/presentation/tui"
	"github.com/aretw0/tale/pkg/observability"
	"golang.org/x/term"
)

// PlayOptions configures an interactive playthrough.
type PlayOptions struct {
	Config   config.Config
	Logger   *slog.Logger
	Headless bool
	In       io.Reader
	Out      io.Writer
}

// isTerminal reports whether w is an interactive terminal, and its width.
func isTerminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return true, 0
	}
	return true, width
}

// RunPlay plays one session on the terminal until an ending, a quit or a signal.
// Output that is not a terminal is played headless.
func RunPlay(ctx context.Context, opts PlayOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	tty, width := isTerminal(opts.Out)
	headless := opts.Headless || !tty

	engine, err := NewEngine(opts.Config, logger, observability.LogSink(logger))
	if err != nil {
		return err
	}
	defer engine.Close()

	runner := tale.NewRunner(opts.In, opts.Out)
	runner.Headless = headless
	if !headless {
		tui.PrintBanner(opts.Out)
		if render, err := tui.NewRenderer(width); err == nil {
			runner.Renderer = render
		} else {
			logger.Warn("markdown rendering disabled", "err", err)
		}
	}

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	snap, runErr := runner.Run(sigCtx, engine)
	logCompletion(opts.Out, snap, runErr, headless, sigCtx.Signal())
	return handleExecutionError(runErr)
}
