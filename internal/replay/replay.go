// Package replay drives a reporting sink through the host lifecycle: start,
// a paced sequence of realtime batches, a final batch, and teardown.
package replay

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/renholt/otelsink/stats"
)

// Reporter is the sink lifecycle as seen by the driver.
type Reporter interface {
	Start(ctx context.Context) error
	SaveRealtimeMetrics(ctx context.Context, metrics []stats.MetricStat) error
	SaveRealtimeStats(ctx context.Context, scenarios []stats.ScenarioStats) error
	SaveFinalStats(ctx context.Context, node stats.NodeStats) error
	Stop(ctx context.Context) error
	Dispose(ctx context.Context) error
}

// Source produces the statistics snapshots fed into the reporter.
type Source interface {
	Tick() []stats.ScenarioStats
	CurrentMetrics() []stats.MetricStat
	Node() stats.NodeStats
}

// Runner paces realtime batches through a reporter at a fixed interval.
type Runner struct {
	reporter Reporter
	source   Source
	limiter  *rate.Limiter
	ticks    int

	// OnTick is called after each realtime batch with the 1-based tick
	// number and the snapshots just reported. Optional.
	OnTick func(tick int, scenarios []stats.ScenarioStats)
}

// NewRunner builds a runner that reports ticks realtime batches, one per
// interval, then a single final batch.
func NewRunner(reporter Reporter, source Source, ticks int, interval rate.Limit) *Runner {
	return &Runner{
		reporter: reporter,
		source:   source,
		limiter:  rate.NewLimiter(interval, 1),
		ticks:    ticks,
	}
}

// Run executes the full lifecycle. The final batch and teardown still run when
// ctx is cancelled mid-run, so a partial run is always closed out cleanly.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.reporter.Start(ctx); err != nil {
		return fmt.Errorf("start reporter: %w", err)
	}

	// Teardown uses a context detached from the run's cancellation.
	tail := context.WithoutCancel(ctx)
	defer func() {
		_ = r.reporter.Stop(tail)
		_ = r.reporter.Dispose(tail)
	}()

	var runErr error
	for tick := 1; tick <= r.ticks; tick++ {
		if err := r.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}

		scenarios := r.source.Tick()
		if err := r.reporter.SaveRealtimeMetrics(ctx, r.source.CurrentMetrics()); err != nil {
			return fmt.Errorf("realtime metrics (tick %d): %w", tick, err)
		}
		if err := r.reporter.SaveRealtimeStats(ctx, scenarios); err != nil {
			return fmt.Errorf("realtime stats (tick %d): %w", tick, err)
		}

		if r.OnTick != nil {
			r.OnTick(tick, scenarios)
		}
	}

	if err := r.reporter.SaveFinalStats(tail, r.source.Node()); err != nil {
		return fmt.Errorf("final stats: %w", err)
	}
	return runErr
}
