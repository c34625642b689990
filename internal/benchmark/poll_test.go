package benchmark

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifest-network/benchie/internal/config"
	"github.com/manifest-network/benchie/internal/models"
)

// growingSource adds `step` swap events and one unrelated event on every read.
type growingSource struct {
	mu     sync.Mutex
	step   int
	delay  int
	reads  int
	events []models.Event
}

func (g *growingSource) Events() []models.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads++
	if g.reads > g.delay {
		for i := 0; i < g.step; i++ {
			g.events = append(g.events, models.Event{Type: "Swap"})
		}
		g.events = append(g.events, models.Event{Type: "outbound"})
	}
	out := make([]models.Event, len(g.events))
	copy(out, g.events)
	return out
}

type staticHeights struct {
	height int64
}

func (s staticHeights) BlockHeight(context.Context) (int64, error) {
	return s.height, nil
}

func TestCountCompleted(t *testing.T) {
	events := []models.Event{{Type: "swap"}, {Type: "SWAP"}, {Type: "add"}, {Type: "add_liquidity"}, {Type: "outbound"}}
	assert.Equal(t, 2, CountCompleted(events, config.WorkloadSwap))
	assert.Equal(t, 1, CountCompleted(events, config.WorkloadAdd))
	assert.Equal(t, 0, CountCompleted(nil, config.WorkloadAdd))
}

func TestPollerWait(t *testing.T) {
	src := &growingSource{step: 2, delay: 2}
	var ticks []Progress
	p := &Poller{
		Events:   src,
		Workload: config.WorkloadSwap,
		Target:   7,
		Interval: time.Millisecond,
		Timeout:  5 * time.Second,
		OnTick:   func(pr Progress) { ticks = append(ticks, pr) },
	}

	progress, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, progress.State)
	assert.Equal(t, 8, progress.Completed)

	require.Len(t, ticks, 6)
	assert.Equal(t, StateWaiting, ticks[0].State)
	assert.Equal(t, StateWaiting, ticks[1].State)
	for i := 1; i < len(ticks); i++ {
		assert.GreaterOrEqual(t, ticks[i].Completed, ticks[i-1].Completed, "completed must not decrease")
	}
	for _, tick := range ticks[:len(ticks)-1] {
		assert.NotEqual(t, StateDone, tick.State)
		assert.Less(t, tick.Completed, p.Target)
	}
	assert.Equal(t, StateCounting, ticks[2].State)
	assert.Equal(t, StateDone, ticks[len(ticks)-1].State)
}

func TestPollerWaitDoneExactlyAtTarget(t *testing.T) {
	src := &growingSource{step: 1}
	p := &Poller{
		Events:   src,
		Workload: config.WorkloadSwap,
		Target:   3,
		Interval: time.Millisecond,
		Timeout:  5 * time.Second,
	}

	progress, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Completed)
	assert.Equal(t, 3, progress.Ticks)
}

func TestPollerWaitZeroTarget(t *testing.T) {
	src := &growingSource{step: 1}
	p := &Poller{Events: src, Workload: config.WorkloadAdd, Target: 0, Interval: time.Second}

	progress, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, progress.State)
	assert.Zero(t, src.reads)
}

func TestPollerWaitTimeout(t *testing.T) {
	// Only unrelated events ever arrive.
	src := &growingSource{step: 0}
	p := &Poller{
		Events:   src,
		Workload: config.WorkloadSwap,
		Target:   5,
		Interval: 10 * time.Millisecond,
		Timeout:  100 * time.Millisecond,
	}

	start := time.Now()
	progress, err := p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StateCounting, progress.State)
	assert.Zero(t, progress.Completed)
}

func TestPollerWaitCancelled(t *testing.T) {
	src := &growingSource{step: 0, delay: 1000}
	p := &Poller{Events: src, Workload: config.WorkloadSwap, Target: 1, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	progress, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateWaiting, progress.State)
}

func TestPollerMeasure(t *testing.T) {
	p := &Poller{
		Events:     &growingSource{step: 5},
		Heights:    staticHeights{height: 120},
		Workload:   config.WorkloadSwap,
		Target:     5,
		Interval:   time.Millisecond,
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	}
	start := Mark{Height: 100, Time: time.Now().Add(-2 * time.Second)}

	result, err := p.Measure(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, "swap", result.Workload)
	assert.Equal(t, 5, result.Count)
	assert.Equal(t, 5, result.Completed)
	assert.Equal(t, int64(100), result.StartHeight)
	assert.Equal(t, int64(120), result.EndHeight)
	assert.Equal(t, int64(20), result.TotalBlocks)
	assert.GreaterOrEqual(t, result.TotalTime, 2*time.Second)
	assert.Equal(t, start.Time, result.StartedAt)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "counting", StateCounting.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "state(9)", State(9).String())
}
