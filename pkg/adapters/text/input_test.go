package text_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tale/pkg/adapters/text"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession records submitted choices.
type fakeSession struct {
	mu      sync.Mutex
	choices []int
	done    chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{done: make(chan struct{})}
}

func (f *fakeSession) ID() string                { return "fake" }
func (f *fakeSession) Snapshot() domain.Snapshot { return domain.Snapshot{} }
func (f *fakeSession) View() domain.NodeView     { return domain.NodeView{} }
func (f *fakeSession) Done() <-chan struct{}     { return f.done }

func (f *fakeSession) Submit(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.choices = append(f.choices, index)
}

func (f *fakeSession) submitted() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.choices...)
}

func TestPump_SubmitsZeroBasedChoices(t *testing.T) {
	sess := newFakeSession()
	out := &bytes.Buffer{}

	err := text.Pump(context.Background(), strings.NewReader("1\n\n 3 \nabc\n0\n"), out, sess)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, -1}, sess.submitted())
	assert.Contains(t, out.String(), `Please enter a choice number, got "abc"`)
}

func TestPump_Quit(t *testing.T) {
	sess := newFakeSession()
	err := text.Pump(context.Background(), strings.NewReader("2\nq\n1\n"), io.Discard, sess)

	assert.ErrorIs(t, err, text.ErrQuit)
	assert.Equal(t, []int{1}, sess.submitted())
}

func TestPump_StopsWhenSessionEnds(t *testing.T) {
	sess := newFakeSession()
	r, w := io.Pipe()
	defer w.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- text.Pump(context.Background(), r, io.Discard, sess)
	}()

	close(sess.done)
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Pump did not return after the session ended")
	}
}

func TestPump_ContextCancel(t *testing.T) {
	sess := newFakeSession()
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := text.Pump(ctx, r, io.Discard, sess)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPump_SkipsUnsafeLines(t *testing.T) {
	sess := newFakeSession()
	out := &bytes.Buffer{}
	input := strings.Repeat("9", text.MaxLineSize+1) + "\n\x002\x07\n"

	err := text.Pump(context.Background(), strings.NewReader(input), out, sess)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, sess.submitted())
	assert.Contains(t, out.String(), "Ignoring input: input exceeds maximum allowed size")
}
