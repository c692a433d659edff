// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/job"
	"github.com/matt-FFFFFF/upscaler/internal/model"
	"github.com/matt-FFFFFF/upscaler/internal/outputtracker"
	"github.com/matt-FFFFFF/upscaler/internal/report"
	"github.com/spf13/afero"
)

// WorkFunc does one unit of work, claiming every file it writes through tracker.
type WorkFunc func(ctx context.Context, index int, tracker *outputtracker.Tracker) error

// Spec describes a pipeline job.
type Spec struct {
	JobID       string
	Description string
	TotalUnits  int
	OutputDir   string
	Work        WorkFunc
	// Report, when set, is written after the job succeeds.
	Report *report.Config
	// Cancel defaults to a fresh token.
	Cancel     cancellation.Signal
	OnProgress job.ProgressFunc
	// OnCancel runs after the job's outputs have been discarded.
	OnCancel func()
}

// Pipeline runs Specs.
type Pipeline struct {
	runner   *job.Runner
	clock    job.Clock
	fs       afero.Fs
	registry *model.Registry
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunner sets the runner used by Run.
func WithRunner(r *job.Runner) Option {
	return func(p *Pipeline) {
		p.runner = r
	}
}

// WithReportClock sets the clock that timestamps reports.
func WithReportClock(c job.Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithFs sets the filesystem for outputs and reports.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) {
		p.fs = fs
	}
}

// WithRegistry sets the model registry used to resolve report model versions.
func WithRegistry(r *model.Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = ctxlog.OrDiscard(p.logger)

	if p.runner == nil {
		p.runner = job.NewRunner(job.WithLogger(p.logger))
	}

	if p.clock == nil {
		p.clock = job.SystemClock{}
	}

	if p.fs == nil {
		p.fs = afero.NewOsFs()
	}

	return p
}

// Run executes spec to completion on the calling goroutine.
func (p *Pipeline) Run(ctx context.Context, spec Spec) (job.Result, error) {
	run := p.Prepare(spec)
	run.Start()

	res, err := p.runner.Run(ctx, run.Job(), spec.OnProgress)

	return run.Finish(ctx, res, err)
}

// Prepare turns spec into a Run whose Job can be executed elsewhere, for example on a jobqueue.Queue.
// Call Start just before the job runs and Finish with the outcome afterwards.
func (p *Pipeline) Prepare(spec Spec) *Run {
	if spec.Cancel == nil {
		spec.Cancel = cancellation.NewToken()
	}

	return &Run{
		p:       p,
		spec:    spec,
		tracker: outputtracker.New(spec.OutputDir, outputtracker.WithFs(p.fs)),
	}
}

// Run is one prepared pipeline job.
type Run struct {
	p       *Pipeline
	spec    Spec
	tracker *outputtracker.Tracker

	startOnce sync.Once
	started   time.Time

	finishOnce sync.Once
	result     job.Result
	err        error
}

// Tracker returns the tracker every unit claims its outputs through.
func (r *Run) Tracker() *outputtracker.Tracker {
	return r.tracker
}

// Job returns the job to execute. Cancelling it discards the tracker's outputs before the
// spec's OnCancel runs.
func (r *Run) Job() job.Job {
	var work job.WorkFunc
	if r.spec.Work != nil {
		work = func(ctx context.Context, index int) error {
			return r.spec.Work(ctx, index, r.tracker)
		}
	}

	return job.Job{
		ID:          r.spec.JobID,
		Description: r.spec.Description,
		TotalUnits:  r.spec.TotalUnits,
		Work:        work,
		Cancel:      r.spec.Cancel,
		OnCancel:    r.handleCancel,
	}
}

// Start records the report's start time. Only the first call counts. A run that was never
// started is timed from Finish.
func (r *Run) Start() {
	if r.spec.Report == nil {
		return
	}

	r.startOnce.Do(func() {
		r.started = r.p.clock.Now()
	})
}

func (r *Run) handleCancel() {
	if err := r.tracker.Discard(); err != nil {
		r.p.logger.Warn("Failed to discard cancelled outputs",
			ctxlog.EventKey, "discard_failed",
			"job_id", r.spec.JobID,
			"error", err.Error(),
		)
	}

	if r.spec.OnCancel != nil {
		r.spec.OnCancel()
	}
}

// Finish completes the run with the job's outcome. A successful run with a report configured
// has its report written; otherwise res and err are returned unchanged.
// Only the first call does any work. Later calls return its outcome.
func (r *Run) Finish(ctx context.Context, res job.Result, err error) (job.Result, error) {
	r.finishOnce.Do(func() {
		r.result, r.err = r.finish(ctx, res, err)
	})

	return r.result, r.err
}

func (r *Run) finish(ctx context.Context, res job.Result, err error) (job.Result, error) {
	if err != nil || r.spec.Report == nil {
		return res, err
	}

	r.Start()
	completed := r.p.clock.Now()

	timings, err := report.NewTimings(r.started, completed)
	if err != nil {
		return res, fmt.Errorf("job %q: %w", r.spec.JobID, err)
	}

	rep, err := report.Build(*r.spec.Report, r.p.registry, timings)
	if err != nil {
		return res, fmt.Errorf("job %q: building report: %w", r.spec.JobID, err)
	}

	if err := report.Write(r.p.fs, r.spec.Report.Path, rep); err != nil {
		return res, fmt.Errorf("job %q: %w", r.spec.JobID, err)
	}

	ctxlog.Event(ctx, r.p.logger, slog.LevelInfo, "report_written", "Processing report written",
		"job_id", r.spec.JobID,
		"path", r.spec.Report.Path,
	)

	return res, nil
}
