// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
	"github.com/matt-FFFFFF/upscaler/internal/config"
	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/history"
	"github.com/matt-FFFFFF/upscaler/internal/imaging"
	"github.com/matt-FFFFFF/upscaler/internal/job"
	"github.com/matt-FFFFFF/upscaler/internal/jobqueue"
	"github.com/matt-FFFFFF/upscaler/internal/model"
	"github.com/matt-FFFFFF/upscaler/internal/outputtracker"
	"github.com/matt-FFFFFF/upscaler/internal/pipeline"
	"github.com/matt-FFFFFF/upscaler/internal/raster"
	"github.com/matt-FFFFFF/upscaler/internal/report"
	"github.com/matt-FFFFFF/upscaler/internal/upscale"
	"github.com/spf13/afero"
)

// BuiltinModel is the model name reported for batches that use no external model.
const BuiltinModel = "builtin"

var (
	// ErrEmptyBatch is returned when a batch has no requests.
	ErrEmptyBatch = errors.New("batch has no requests")
	// ErrSettingsRequired is returned by New without settings.
	ErrSettingsRequired = errors.New("settings are required")
)

// NewJobID returns a fresh job identifier.
var NewJobID = uuid.NewString

// App runs upscale batches as queued jobs.
type App struct {
	settings  *config.Settings
	fs        afero.Fs
	clock     job.Clock
	logger    *slog.Logger
	invoker   model.Invoker
	rasterIO  raster.IO
	observers []jobqueue.Observer

	registry *model.Registry
	driver   *upscale.Driver
	pipeline *pipeline.Pipeline
	queue    *jobqueue.Queue
	history  *history.Store
	// stop follows the context given to New so queued batches see it too.
	stop cancellation.Signal
}

// Option configures an App.
type Option func(*App)

// WithFs sets the filesystem every component works on.
func WithFs(fs afero.Fs) Option {
	return func(a *App) {
		a.fs = fs
	}
}

// WithClock sets the clock used for progress, reports and history.
func WithClock(c job.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithInvoker replaces the command based model invoker.
func WithInvoker(inv model.Invoker) Option {
	return func(a *App) {
		a.invoker = inv
	}
}

// WithRasterIO replaces the TIFF raster backend.
func WithRasterIO(io raster.IO) Option {
	return func(a *App) {
		a.rasterIO = io
	}
}

// WithObserver adds a queue lifecycle observer.
func WithObserver(o jobqueue.Observer) Option {
	return func(a *App) {
		a.observers = append(a.observers, o)
	}
}

// New assembles an App and starts its queue. ctx is handed to every job; cancelling it
// cancels the running job. Close the App when done.
func New(ctx context.Context, settings *config.Settings, opts ...Option) (*App, error) {
	if settings == nil {
		return nil, ErrSettingsRequired
	}

	a := &App{
		settings: settings,
		fs:       afero.NewOsFs(),
		clock:    job.SystemClock{},
		stop:     cancellation.FromContext(ctx),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = ctxlog.OrDiscard(a.logger)

	registry, err := model.LoadRegistry(a.fs, settings.Registry)
	if err != nil {
		a.stop.Cancel()
		return nil, err
	}

	a.registry = registry

	if a.invoker == nil {
		a.invoker = model.NewCommandInvoker(registry,
			model.WithCacheDir(settings.ModelCacheDir),
			model.WithFs(a.fs),
			model.WithLogger(a.logger),
		)
	}

	if a.rasterIO == nil {
		a.rasterIO = raster.NewTIFF(a.fs)
	}

	a.driver = upscale.NewDriver(
		upscale.WithRasterIO(a.rasterIO),
		upscale.WithCodec(imaging.NewStd(a.fs)),
		upscale.WithInvoker(a.invoker),
		upscale.WithFs(a.fs),
		upscale.WithLogger(a.logger),
	)

	runner := job.NewRunner(job.WithLogger(a.logger), job.WithClock(a.clock))

	a.pipeline = pipeline.New(
		pipeline.WithRunner(runner),
		pipeline.WithReportClock(a.clock),
		pipeline.WithFs(a.fs),
		pipeline.WithRegistry(registry),
		pipeline.WithLogger(a.logger),
	)

	queueOpts := []jobqueue.Option{
		jobqueue.WithRunner(runner),
		jobqueue.WithContext(ctx),
	}

	for _, o := range a.observers {
		queueOpts = append(queueOpts, jobqueue.WithObserver(o))
	}

	if settings.History != "" {
		store, err := history.Open(ctx, settings.History, history.WithClock(a.clock), history.WithLogger(a.logger))
		if err != nil {
			a.stop.Cancel()
			return nil, err
		}

		a.history = store
		queueOpts = append(queueOpts, jobqueue.WithObserver(store))
	}

	q, err := jobqueue.New(queueOpts...)
	if err != nil {
		if a.history != nil {
			a.history.Close() //nolint:errcheck
		}

		a.stop.Cancel()

		return nil, err
	}

	a.queue = q

	return a, nil
}

// Registry returns the model registry.
func (a *App) Registry() *model.Registry {
	return a.registry
}

// History returns the job history, or nil when it is disabled.
func (a *App) History() *history.Store {
	return a.history
}

// Close waits for queued jobs and releases the history database.
func (a *App) Close() error {
	a.queue.Shutdown(true)
	a.stop.Cancel()

	if a.history != nil {
		return a.history.Close()
	}

	return nil
}

// Batch is a group of requests run as one job.
type Batch struct {
	Description string
	Requests    []upscale.Request
	OutputDir   string
	// ReportPath, when set, receives a processing report once the batch succeeds.
	ReportPath string
	// OutputFormat is the format that was asked for, as recorded in the report.
	OutputFormat string
	// Cancel stops the batch between requests. Cancelling removes everything the batch wrote.
	// It may be shared between batches; App.Cancel never cancels it.
	Cancel     cancellation.Signal
	OnProgress job.ProgressFunc
	// OnArtifact is called on the worker after each request completes.
	OnArtifact func(index int, art upscale.Artifact)
}

// Submission is a batch waiting on, or running in, the queue.
type Submission struct {
	future *jobqueue.Future
	run    *pipeline.Run

	mu        sync.Mutex
	artifacts []upscale.Artifact
}

// JobID returns the job's identifier.
func (s *Submission) JobID() string {
	return s.future.JobID()
}

// Done is closed once the job has finished.
func (s *Submission) Done() <-chan struct{} {
	return s.future.Done()
}

// Wait blocks until the job finishes and returns the artifacts of every completed request.
// The report is written on the worker before the job counts as finished, so Wait may be
// called any number of times, or not at all.
func (s *Submission) Wait(ctx context.Context) ([]upscale.Artifact, job.Result, error) {
	res, err := s.future.Wait(ctx)

	select {
	case <-s.future.Done():
	default:
		return nil, res, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]upscale.Artifact(nil), s.artifacts...), res, err
}

func (s *Submission) add(art upscale.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts = append(s.artifacts, art)
}

// Submit queues b and returns immediately.
func (a *App) Submit(b Batch) (*Submission, error) {
	if len(b.Requests) == 0 {
		return nil, ErrEmptyBatch
	}

	outputDir := b.OutputDir
	if outputDir == "" {
		outputDir = a.settings.OutputDir
	}

	requests := append([]upscale.Request(nil), b.Requests...)
	sub := &Submission{}

	spec := pipeline.Spec{
		JobID:       NewJobID(),
		Description: b.Description,
		TotalUnits:  len(requests),
		OutputDir:   outputDir,
		Cancel:      cancellation.Linked(cancellation.NewToken(), b.Cancel, a.stop),
		Report:      reportConfig(b.ReportPath, b.OutputFormat, requests[0]),
		Work: func(ctx context.Context, index int, tracker *outputtracker.Tracker) error {
			art, err := a.driver.RunRequestTracked(ctx, requests[index], tracker)
			if err != nil {
				return err
			}

			sub.add(art)

			if b.OnArtifact != nil {
				b.OnArtifact(index, art)
			}

			return nil
		},
	}

	sub.run = a.pipeline.Prepare(spec)

	future, err := a.queue.Submit(sub.run.Job(), b.OnProgress,
		jobqueue.OnStart(sub.run.Start),
		jobqueue.OnFinish(sub.run.Finish),
	)
	if err != nil {
		return nil, fmt.Errorf("submitting %q: %w", b.Description, err)
	}

	sub.future = future

	return sub, nil
}

// Cancel stops sub. A queued batch never starts; a running one stops after its current request
// and removes what it wrote. Other batches sharing the same Batch.Cancel keep running.
func (a *App) Cancel(sub *Submission) bool {
	return a.queue.Cancel(sub.future)
}

// reportConfig describes a batch by its first request.
func reportConfig(path, outputFormat string, first upscale.Request) *report.Config {
	if path == "" {
		return nil
	}

	if outputFormat == "" {
		outputFormat = first.Plan.MasterFormat
	}

	name := first.ModelName
	if name == "" {
		name = BuiltinModel
	}

	return &report.Config{
		Path:         path,
		BandHandling: string(first.BandHandling),
		OutputFormat: outputFormat,
		ModelName:    name,
		ModelVersion: first.ModelVersion,
		Scale:        first.Scale,
		Tiling:       first.Tiling,
		Precision:    first.Precision,
		Compute:      first.Compute,
	}
}
