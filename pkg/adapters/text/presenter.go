// Package text renders a session on a line-oriented terminal and reads choices from a reader.
package text

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/tale/pkg/domain"
	"github.com/muesli/termenv"
)

// ContentRenderer transforms a node description before it is printed (e.g. markdown).
type ContentRenderer func(string) (string, error)

// Presenter implements ports.Presenter by writing to a terminal.
type Presenter struct {
	mu       sync.Mutex
	w        io.Writer
	out      *termenv.Output
	profile  *termenv.Profile
	renderer ContentRenderer
	quiet    bool // suppress per-second countdown lines
}

// Option configures the Presenter.
type Option func(*Presenter)

// WithRenderer configures the description renderer.
func WithRenderer(r ContentRenderer) Option {
	return func(p *Presenter) {
		p.renderer = r
	}
}

// WithProfile forces a color profile (termenv.Ascii disables colors).
func WithProfile(profile termenv.Profile) Option {
	return func(p *Presenter) {
		p.profile = &profile
	}
}

// WithQuietCountdown prints only the final timeout line instead of every tick.
func WithQuietCountdown() Option {
	return func(p *Presenter) {
		p.quiet = true
	}
}

// NewPresenter creates a presenter writing to w (os.Stdout when nil).
func NewPresenter(w io.Writer, opts ...Option) *Presenter {
	if w == nil {
		w = os.Stdout
	}
	p := &Presenter{w: w}
	for _, opt := range opts {
		opt(p)
	}
	if p.profile != nil {
		p.out = termenv.NewOutput(w, termenv.WithProfile(*p.profile))
	} else {
		p.out = termenv.NewOutput(w)
	}
	return p
}

func (p *Presenter) styled(s, color string) termenv.Style {
	return p.out.String(s).Foreground(p.out.Color(color))
}

// NodeActivated prints the description, the numbered choices and the countdown.
func (p *Presenter) NodeActivated(_ context.Context, view domain.NodeView) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w)
	if view.Kind == domain.KindBattle {
		fmt.Fprintln(p.w, p.styled("[Battle]", "#ef4444").Bold())
	}

	desc := view.Description
	if p.renderer != nil {
		if rendered, err := p.renderer(desc); err == nil {
			desc = rendered
		}
	}
	fmt.Fprintln(p.w, strings.TrimSpace(desc))

	if view.Terminal {
		return
	}
	for i, label := range view.Choices {
		fmt.Fprintf(p.w, "  %s %s\n", p.styled(fmt.Sprintf("%d.", i+1), "#2980b9").Bold(), label)
	}
	fmt.Fprintln(p.w, p.styled(timeLeft(view.Remaining), "#eab308"))
}

// Tick prints the remaining time, or the timeout notice when it reaches zero.
func (p *Presenter) Tick(_ context.Context, remaining int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if remaining <= 0 {
		fmt.Fprintln(p.w, p.styled("Time's up! Choosing the first option.", "#eab308").Bold())
		return
	}
	if !p.quiet {
		fmt.Fprintln(p.w, p.styled(timeLeft(remaining), "#eab308"))
	}
}

// Ended prints the closing line.
func (p *Presenter) Ended(_ context.Context, view domain.NodeView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.styled("The End.", "#a78bfa").Bold())
}

// Error prints a recoverable error.
func (p *Presenter) Error(_ context.Context, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.styled("Error: "+err.Error(), "#ef4444"))
}

// Write passes b through to the underlying writer under the presenter's lock,
// so other goroutines (the input Pump) can share the terminal with the session loop.
func (p *Presenter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.Write(b)
}

func timeLeft(n int) string {
	return fmt.Sprintf("Time Left: %d seconds", n)
}
