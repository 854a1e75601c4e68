package text

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/tale/pkg/ports"
)

// Pump reads one choice per line from r and submits it to the session.
// Choices are numbered from 1 on screen; "q" or "quit" stops the pump.
// Lines that are not numbers, or fail Sanitize, are reported on w and skipped.
// Out-of-range numbers are forwarded so the session can reject them.
// Pump returns nil when the session is done or the input is exhausted.
func Pump(ctx context.Context, r io.Reader, w io.Writer, sess ports.Session) error {
	lines := make(chan string)
	errs := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sess.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return fmt.Errorf("failed to read input: %w", err)
				default:
					return nil
				}
			}
			clean, err := Sanitize(line)
			if err != nil {
				fmt.Fprintf(w, "Ignoring input: %v\n", err)
				continue
			}
			input := strings.TrimSpace(clean)
			switch strings.ToLower(input) {
			case "":
				continue
			case "q", "quit", "exit":
				return ErrQuit
			}
			index, err := ParseChoice(input)
			if err != nil {
				fmt.Fprintf(w, "Please enter a choice number, got %q\n", input)
				continue
			}
			sess.Submit(index)
		}
	}
}
