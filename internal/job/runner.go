// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
)

// FailureCode is logged with job_failed events.
const FailureCode = "JOB-001"

// Runner executes jobs one unit at a time.
type Runner struct {
	logger *slog.Logger
	clock  Clock
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger. A nil logger discards events.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock sets the clock used to time units.
func WithClock(clock Clock) RunnerOption {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRunner creates a Runner. Without options it uses the system clock and discards log events.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		clock: SystemClock{},
	}

	for _, opt := range opts {
		opt(r)
	}

	r.logger = ctxlog.OrDiscard(r.logger)

	return r
}

// ProgressFunc receives progress updates. It runs on the runner's goroutine.
type ProgressFunc func(Progress)

// Run executes every unit of j in order and returns the Result.
// It returns ErrInvalidTotalUnits without running anything if j has no units,
// ErrJobCancelled if cancellation is observed before the last unit is accounted for,
// or the first unit error wrapped with the job id.
func (r *Runner) Run(ctx context.Context, j Job, onProgress ProgressFunc) (Result, error) {
	if j.TotalUnits <= 0 {
		return Result{}, fmt.Errorf("job %q: %w", j.ID, ErrInvalidTotalUnits)
	}

	start := r.clock.Now()
	completed := 0

	var elapsed time.Duration

	ctxlog.Event(ctx, r.logger, slog.LevelInfo, "job_start", "Job started",
		"job_id", j.ID,
		"total_units", j.TotalUnits,
		"description", optional(j.Description),
	)

	cancelled := func() bool {
		return cancellation.Observe(j.Cancel) || ctx.Err() != nil
	}

	handleCancel := func() error {
		if j.OnCancel != nil {
			j.OnCancel()
		}

		ctxlog.Event(ctx, r.logger, slog.LevelInfo, "job_cancelled", "Job cancelled",
			"job_id", j.ID,
			"completed_units", completed,
			"total_units", j.TotalUnits,
			"duration_ms", r.clock.Now().Sub(start).Milliseconds(),
		)

		return fmt.Errorf("job %q: %w", j.ID, ErrJobCancelled)
	}

	for i := range j.TotalUnits {
		if cancelled() {
			return Result{}, handleCancel()
		}

		unitStart := r.clock.Now()

		if err := runUnit(ctx, j.Work, i); err != nil {
			ctxlog.Event(ctx, r.logger, slog.LevelError, "job_failed", "Job failed",
				"job_id", j.ID,
				"error", err.Error(),
				"error_code", FailureCode,
			)

			return Result{}, fmt.Errorf("job %q: unit %d: %w", j.ID, i, err)
		}

		elapsed += r.clock.Now().Sub(unitStart)
		completed++

		if cancelled() {
			return Result{}, handleCancel()
		}

		average := elapsed / time.Duration(completed)
		eta := average * time.Duration(j.TotalUnits-completed)
		p := Progress{
			JobID:          j.ID,
			CompletedUnits: completed,
			TotalUnits:     j.TotalUnits,
			Progress:       float64(completed) / float64(j.TotalUnits),
			ETA:            &eta,
		}

		if onProgress != nil {
			onProgress(p)
		}

		ctxlog.Event(ctx, r.logger, slog.LevelInfo, "job_progress", "Job progress update",
			"job_id", j.ID,
			"completed_units", completed,
			"total_units", j.TotalUnits,
			"progress", p.Progress,
			"eta_seconds", eta.Seconds(),
		)
	}

	res := Result{
		JobID:          j.ID,
		CompletedUnits: completed,
		TotalUnits:     j.TotalUnits,
		Duration:       r.clock.Now().Sub(start),
	}

	ctxlog.Event(ctx, r.logger, slog.LevelInfo, "job_complete", "Job completed",
		"job_id", j.ID,
		"completed_units", completed,
		"total_units", j.TotalUnits,
		"duration_ms", res.DurationMS(),
	)

	return res, nil
}

// runUnit converts a panic in the unit into an error.
func runUnit(ctx context.Context, work WorkFunc, index int) (err error) {
	if work == nil {
		return nil
	}

	defer func() {
		if v := recover(); v != nil {
			err = &UnitPanicError{Index: index, Value: v}
		}
	}()

	return work(ctx, index)
}

func optional(s string) any {
	if s == "" {
		return nil
	}

	return s
}
