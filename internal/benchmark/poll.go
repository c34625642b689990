package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/manifest-network/benchie/internal/config"
	"github.com/manifest-network/benchie/internal/metrics"
	"github.com/manifest-network/benchie/internal/models"
	"github.com/manifest-network/benchie/internal/utils"
)

// ErrTimeout is returned when the target count is not reached before the deadline.
var ErrTimeout = errors.New("timed out waiting for completion events")

// State is the state of a completion wait.
type State int

const (
	StateWaiting State = iota
	StateCounting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateCounting:
		return "counting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventSource returns every event observed on the target network so far.
type EventSource interface {
	Events() []models.Event
}

// Progress is the state of a completion wait after a tick.
type Progress struct {
	State     State
	Completed int
	Target    int
	Ticks     int
}

// Mark is a point in the run: wall time and target-network block height.
type Mark struct {
	Height int64
	Time   time.Time
}

// CountCompleted returns the number of events completing a transaction of workload w.
func CountCompleted(events []models.Event, w config.Workload) int {
	n := 0
	for _, e := range events {
		if w.Matches(e.Type) {
			n++
		}
	}
	return n
}

// Poller waits for the target network to report Target completion events.
type Poller struct {
	Events     EventSource
	Heights    utils.HeightSource
	Workload   config.Workload
	Target     int
	Interval   time.Duration
	Timeout    time.Duration
	MaxRetries uint

	// Bar and Metrics are optional.
	Bar     *progressbar.ProgressBar
	Metrics *metrics.Metrics
	// OnTick, when set, is called after every poll.
	OnTick func(Progress)
}

// NewProgressBar returns a progress bar for n transactions.
func NewProgressBar(n int) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		n,
		progressbar.OptionSetDescription("Waiting for transactions..."),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *Poller) tick(progress *Progress) {
	progress.Ticks++
	events := p.Events.Events()
	if len(events) == 0 {
		return
	}
	progress.State = StateCounting
	completed := CountCompleted(events, p.Workload)
	if completed > progress.Completed {
		progress.Completed = completed
	}
	if progress.Completed >= p.Target {
		progress.State = StateDone
	}

	if p.Bar != nil {
		if err := p.Bar.Set(min(progress.Completed, p.Target)); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
	p.Metrics.SetProgress(progress.Completed, p.Target)
}

// Wait polls the event source every Interval until Target completion events have been observed.
// The event history is rescanned on every tick. Wait returns ErrTimeout if Timeout, or ctx's own
// deadline, passes first.
func (p *Poller) Wait(ctx context.Context) (Progress, error) {
	progress := Progress{State: StateWaiting, Target: p.Target}
	if p.Target <= 0 {
		progress.State = StateDone
		return progress, nil
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		p.tick(&progress)
		if p.OnTick != nil {
			p.OnTick(progress)
		}
		if progress.State == StateDone {
			if p.Bar != nil {
				if err := p.Bar.Finish(); err != nil {
					slog.Warn("Failed to finish progress bar", "error", err)
				}
			}
			return progress, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return progress, fmt.Errorf("%w: %d/%d %s events: %w",
					ErrTimeout, progress.Completed, p.Target, p.Workload, ctx.Err())
			}
			return progress, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Measure waits for completion and returns the run's metrics relative to start.
func (p *Poller) Measure(ctx context.Context, start Mark) (*models.Result, error) {
	progress, err := p.Wait(ctx)
	if err != nil {
		return nil, err
	}
	end := time.Now()

	height, err := utils.GetBlockHeightWithRetry(ctx, p.Heights, p.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to read end block height: %w", err)
	}

	return &models.Result{
		Workload:    p.Workload.String(),
		Count:       p.Target,
		Completed:   progress.Completed,
		StartHeight: start.Height,
		EndHeight:   height,
		TotalBlocks: height - start.Height,
		TotalTime:   end.Sub(start.Time),
		StartedAt:   start.Time,
		FinishedAt:  end,
	}, nil
}
