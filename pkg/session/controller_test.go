package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tale/pkg/adapters/memory"
	"github.com/aretw0/tale/pkg/clock"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/dsl"
	"github.com/aretw0/tale/pkg/ports"
	"github.com/aretw0/tale/pkg/session"
	"github.com/aretw0/tale/pkg/story"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// pendingCommit is a commit step held open until the test releases it.
type pendingCommit struct {
	from    string
	index   int
	release chan error
}

// gate is a Transitioner whose commits block until released.
type gate struct {
	calls chan pendingCommit
}

func newGate() *gate {
	return &gate{calls: make(chan pendingCommit, 16)}
}

func (g *gate) Commit(ctx context.Context, from *domain.Node, index int) error {
	p := pendingCommit{from: from.ID, index: index, release: make(chan error, 1)}
	g.calls <- p
	select {
	case err := <-p.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) next(t *testing.T) pendingCommit {
	t.Helper()
	select {
	case p := <-g.calls:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a commit")
		return pendingCommit{}
	}
}

func (g *gate) none(t *testing.T) {
	t.Helper()
	select {
	case p := <-g.calls:
		t.Fatalf("unexpected commit of choice %d on %s", p.index, p.from)
	case <-time.After(50 * time.Millisecond):
	}
}

type harness struct {
	ctx    context.Context
	clk    *clock.Manual
	rec    *memory.Recorder
	events chan domain.Event
	ctrl   *session.Controller
}

func newHarness(t *testing.T, g *domain.Graph, opts ...session.Option) *harness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	h := &harness{
		ctx:    ctx,
		clk:    clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		rec:    memory.NewRecorder(1024),
		events: make(chan domain.Event, 1024),
	}
	sink := ports.EventSinkFunc(func(_ context.Context, ev domain.Event) {
		h.events <- ev
	})

	base := []session.Option{
		session.WithID("test"),
		session.WithClock(h.clk),
		session.WithEventSink(sink),
	}
	ctrl, err := session.New(g, h.rec, append(base, opts...)...)
	require.NoError(t, err)
	h.ctrl = ctrl
	t.Cleanup(ctrl.Stop)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Start(h.ctx))
}

func (h *harness) waitCall(t *testing.T, kind memory.CallKind) memory.Call {
	t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, waitTimeout)
	defer cancel()
	c, err := h.rec.WaitFor(ctx, kind)
	require.NoError(t, err)
	return c
}

func (h *harness) waitEvent(t *testing.T, typ domain.EventType) domain.Event {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case ev := <-h.events:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", typ)
			return domain.Event{}
		}
	}
}

func (h *harness) activated(t *testing.T, nodeID string) memory.Call {
	t.Helper()
	c := h.waitCall(t, memory.CallActivated)
	require.Equal(t, nodeID, c.View.NodeID)
	return c
}

func TestController_TerminalEntryEndsImmediately(t *testing.T) {
	b := dsl.New()
	b.Add("start").Dialogue("It is already over.").Ending()
	g, err := b.Build()
	require.NoError(t, err)

	h := newHarness(t, g)
	h.start(t)

	select {
	case <-h.ctrl.Done():
	default:
		t.Fatal("session should be done once Start returns")
	}

	calls := h.rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, memory.CallActivated, calls[0].Kind)
	assert.Equal(t, memory.CallEnded, calls[1].Kind)
	assert.Zero(t, h.rec.Count(memory.CallTick))
	assert.Equal(t, domain.StatusEnded, h.ctrl.Status())
	assert.Zero(t, h.clk.Active(), "no countdown on a terminal node")
}

func TestController_StartTwice(t *testing.T) {
	h := newHarness(t, story.MustCave(), session.WithTransitioner(newGate()))
	h.start(t)
	assert.ErrorIs(t, h.ctrl.Start(h.ctx), session.ErrAlreadyStarted)
}

func TestController_CountdownIsStrictlyDecreasing(t *testing.T) {
	g := newGate()
	h := newHarness(t, story.MustCave(), session.WithTransitioner(g), session.WithCountdown(3))
	h.start(t)

	first := h.activated(t, story.CaveEntrance)
	assert.Equal(t, 3, first.View.Remaining)

	var got []int
	for i := 0; i < 3; i++ {
		require.Equal(t, 1, h.clk.Tick())
		got = append(got, h.waitCall(t, memory.CallTick).Remaining)
	}
	if diff := cmp.Diff([]int{2, 1, 0}, got); diff != "" {
		t.Errorf("ticks mismatch (-want +got):\n%s", diff)
	}

	p := g.next(t)
	assert.Equal(t, domain.TimeoutChoice, p.index)
	assert.Equal(t, story.CaveEntrance, p.from)

	ev := h.waitEvent(t, domain.EventCommit)
	assert.True(t, ev.Timeout)
	assert.Equal(t, story.CaveInterior, ev.Target)
}

func TestController_TimeoutCommitsExactlyOnce(t *testing.T) {
	g := newGate()
	h := newHarness(t, story.MustCave(), session.WithTransitioner(g), session.WithCountdown(1))
	h.start(t)
	h.activated(t, story.CaveEntrance)

	require.Equal(t, 1, h.clk.Tick())
	p := g.next(t)
	assert.Equal(t, 0, p.index)

	// The countdown is stopped while transitioning.
	require.NoError(t, h.clk.WaitActive(h.ctx, 0))
	assert.Zero(t, h.clk.Tick())
	g.none(t)
	assert.Equal(t, domain.StatusTransitioning, h.ctrl.Status())

	p.release <- nil
	next := h.activated(t, story.CaveInterior)
	assert.Equal(t, 1, next.View.Remaining)
}

func TestController_ChoiceRoundTrip(t *testing.T) {
	g := newGate()
	h := newHarness(t, story.MustCave(), session.WithTransitioner(g))
	h.start(t)
	h.activated(t, story.CaveEntrance)

	h.ctrl.Submit(1)
	p := g.next(t)
	assert.Equal(t, story.CaveEntrance, p.from)
	assert.Equal(t, 1, p.index)
	assert.Equal(t, domain.StatusTransitioning, h.ctrl.Snapshot().Status)

	p.release <- nil
	end := h.activated(t, story.ReturnHome)
	assert.True(t, end.View.Terminal)
	h.waitCall(t, memory.CallEnded)

	require.NoError(t, h.ctrl.Wait(h.ctx))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, domain.StatusEnded, snap.Status)
	assert.Equal(t, []string{story.CaveEntrance, story.ReturnHome}, snap.History)
}

func TestController_ChoiceWhileTransitioningIsIgnored(t *testing.T) {
	g := newGate()
	h := newHarness(t, story.MustCave(), session.WithTransitioner(g))
	h.start(t)
	h.activated(t, story.CaveEntrance)

	h.ctrl.Submit(0)
	p := g.next(t)

	h.ctrl.Submit(1)
	ev := h.waitEvent(t, domain.EventIgnored)
	assert.Equal(t, 1, ev.Choice)
	g.none(t)

	p.release <- nil
	h.activated(t, story.CaveInterior)
	assert.Zero(t, h.rec.Count(memory.CallError))
}

func TestController_OutOfRangeChoiceIsRejected(t *testing.T) {
	g := newGate()
	h := newHarness(t, story.MustCave(), session.WithTransitioner(g))
	h.start(t)
	h.activated(t, story.CaveEntrance)

	require.Equal(t, 1, h.clk.Tick())
	h.waitCall(t, memory.CallTick)
	before := h.ctrl.Snapshot()

	for _, idx := range []int{2, -1, 99} {
		h.ctrl.Submit(idx)
		c := h.waitCall(t, memory.CallError)

		var choiceErr *domain.ChoiceError
		require.ErrorAs(t, c.Err, &choiceErr)
		assert.Equal(t, idx, choiceErr.Index)
		assert.Equal(t, 2, choiceErr.Count)
		assert.ErrorIs(t, c.Err, domain.ErrInvalidChoice)
	}
	g.none(t)

	after := h.ctrl.Snapshot()
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("rejected choices mutated the session (-before +after):\n%s", diff)
	}
	assert.Equal(t, 9, after.Remaining)
}

func TestController_CommitFailureRearmsSameNode(t *testing.T) {
	g := newGate()
	h := newHarness(t, story.MustCave(), session.WithTransitioner(g))
	h.start(t)
	h.activated(t, story.CaveEntrance)

	require.Equal(t, 1, h.clk.Tick())
	h.waitCall(t, memory.CallTick)
	genBefore := h.ctrl.Snapshot().Generation

	h.ctrl.Submit(0)
	p := g.next(t)
	cause := errors.New("disk on fire")
	p.release <- cause

	c := h.waitCall(t, memory.CallError)
	assert.ErrorIs(t, c.Err, domain.ErrTransitionFailed)
	assert.ErrorIs(t, c.Err, cause)
	assert.Contains(t, c.Err.Error(), "an error occurred while processing choice 0 on node entrance")

	again := h.activated(t, story.CaveEntrance)
	assert.Equal(t, domain.DefaultCountdown, again.View.Remaining)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, domain.StatusIdle, snap.Status)
	assert.Equal(t, []string{story.CaveEntrance}, snap.History, "a re-arm is not a new visit")
	assert.Greater(t, snap.Generation, genBefore)

	failed := h.waitEvent(t, domain.EventCommitFailed)
	assert.Equal(t, 0, failed.Choice)
	assert.NotEmpty(t, failed.Error)

	// The session keeps going after the failure.
	h.ctrl.Submit(0)
	g.next(t).release <- nil
	h.activated(t, story.CaveInterior)
}

func TestController_TimeoutFailureRearmsSameNode(t *testing.T) {
	g := newGate()
	h := newHarness(t, story.MustCave(), session.WithTransitioner(g), session.WithCountdown(2))
	h.start(t)
	h.activated(t, story.CaveEntrance)

	require.Equal(t, 1, h.clk.Tick())
	require.Equal(t, 1, h.clk.Tick())
	p := g.next(t)
	require.Equal(t, domain.TimeoutChoice, p.index)
	p.release <- errors.New("boom")

	c := h.waitCall(t, memory.CallError)
	var transErr *domain.TransitionError
	require.ErrorAs(t, c.Err, &transErr)
	assert.True(t, transErr.Timeout)
	assert.Equal(t, story.CaveEntrance, transErr.NodeID)
	assert.Contains(t, c.Err.Error(), "timeout 0 on node entrance")

	again := h.activated(t, story.CaveEntrance)
	assert.Equal(t, 2, again.View.Remaining)
	assert.Equal(t, domain.StatusIdle, h.ctrl.Status())

	failed := h.waitEvent(t, domain.EventCommitFailed)
	assert.True(t, failed.Timeout)

	// The countdown runs again and the next timeout commits normally.
	require.NoError(t, h.clk.WaitActive(h.ctx, 1))
	require.Equal(t, 1, h.clk.Tick())
	require.Equal(t, 1, h.clk.Tick())
	g.next(t).release <- nil
	h.activated(t, story.CaveInterior)
}

func TestController_CaveScenario(t *testing.T) {
	h := newHarness(t, story.MustCave(), session.WithTransitioner(session.Delay(0)))

	script := map[string]int{
		story.CaveEntrance:  0,
		story.CaveInterior:  1,
		story.TreasureChest: 1,
		story.Battle:        1,
	}
	h.rec.OnActivated = func(v domain.NodeView) {
		if idx, ok := script[v.NodeID]; ok {
			h.ctrl.Submit(idx)
		}
	}
	h.start(t)

	end := h.waitCall(t, memory.CallEnded)
	assert.Equal(t, story.ReturnHome, end.View.NodeID)
	require.NoError(t, h.ctrl.Wait(h.ctx))

	want := []string{story.CaveEntrance, story.CaveInterior, story.TreasureChest, story.Battle, story.ReturnHome}
	if diff := cmp.Diff(want, h.ctrl.Snapshot().History); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, h.rec.Count(memory.CallTick))
}

func TestController_EntryTimeoutMovesToInterior(t *testing.T) {
	h := newHarness(t, story.MustCave(), session.WithTransitioner(session.Delay(0)), session.WithCountdown(2))
	h.start(t)
	h.activated(t, story.CaveEntrance)

	h.clk.Tick()
	h.waitCall(t, memory.CallTick)
	h.clk.Tick()
	h.waitCall(t, memory.CallTick)

	next := h.activated(t, story.CaveInterior)
	assert.Equal(t, 2, next.View.Remaining, "countdown restarts on the new node")
	assert.Equal(t, []string{"Investigate the strange sound", "Look for treasure", "Leave the cave"}, next.View.Choices)
}

func TestController_ConcurrentSubmitsCommitOnce(t *testing.T) {
	g := newGate()
	h := newHarness(t, story.MustCave(), session.WithTransitioner(g))
	h.start(t)
	h.activated(t, story.CaveEntrance)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			h.ctrl.Submit(idx % 2)
		}(i)
	}
	wg.Wait()

	g.next(t)
	g.none(t)
}

func TestController_StopDuringTransition(t *testing.T) {
	g := newGate()
	h := newHarness(t, story.MustCave(), session.WithTransitioner(g))
	h.start(t)
	h.activated(t, story.CaveEntrance)

	h.ctrl.Submit(0)
	g.next(t)

	h.ctrl.Stop()
	select {
	case <-h.ctrl.Done():
	default:
		t.Fatal("Stop must wait for the loop to exit")
	}
	assert.Zero(t, h.clk.Active())

	// Submitting after the session is done is harmless.
	h.ctrl.Submit(0)
	assert.Equal(t, story.CaveEntrance, h.ctrl.Current().ID)
}

func TestController_ContextCancelStops(t *testing.T) {
	h := newHarness(t, story.MustCave(), session.WithTransitioner(newGate()))
	ctx, cancel := context.WithCancel(h.ctx)
	require.NoError(t, h.ctrl.Start(ctx))
	h.activated(t, story.CaveEntrance)

	cancel()
	require.NoError(t, h.ctrl.Wait(h.ctx))
	assert.Equal(t, domain.StatusIdle, h.ctrl.Status())
}

func TestNew_RejectsBrokenGraph(t *testing.T) {
	n := &domain.Node{ID: "start", Kind: domain.KindDialogue, Description: "x", Choices: []domain.Choice{{Label: "go"}}}
	_, err := session.New(domain.NewGraph(n), nil)

	var integrity *domain.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestFlaky(t *testing.T) {
	tr := session.Flaky(session.Delay(0), 2)
	ctx := context.Background()
	node := &domain.Node{ID: "a"}

	assert.NoError(t, tr.Commit(ctx, node, 0))
	assert.ErrorIs(t, tr.Commit(ctx, node, 0), session.ErrSimulatedFailure)
	assert.NoError(t, tr.Commit(ctx, node, 0))
}

func TestDelay_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := session.Delay(time.Hour).Commit(ctx, &domain.Node{ID: "a"}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
