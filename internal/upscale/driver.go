// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package upscale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/imaging"
	"github.com/matt-FFFFFF/upscaler/internal/model"
	"github.com/matt-FFFFFF/upscaler/internal/outputtracker"
	"github.com/matt-FFFFFF/upscaler/internal/raster"
	"github.com/spf13/afero"
)

// ProgressFunc is called after each completed request with its 1-based index.
type ProgressFunc func(index, total int, masterPath string)

// Driver fulfils upscale requests.
type Driver struct {
	rasterIO raster.IO
	codec    imaging.Codec
	invoker  model.Invoker
	fs       afero.Fs
	logger   *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithRasterIO sets the raster backend used for metadata-preserving masters.
func WithRasterIO(io raster.IO) Option {
	return func(d *Driver) {
		d.rasterIO = io
	}
}

// WithCodec sets the image codec used for visual outputs.
func WithCodec(c imaging.Codec) Option {
	return func(d *Driver) {
		d.codec = c
	}
}

// WithInvoker sets the model invoker. Without one, model steps always fail over.
func WithInvoker(inv model.Invoker) Option {
	return func(d *Driver) {
		d.invoker = inv
	}
}

// WithFs sets the filesystem.
func WithFs(fs afero.Fs) Option {
	return func(d *Driver) {
		d.fs = fs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewDriver creates a Driver. Unset collaborators default to the OS filesystem,
// the standard codecs on it and an unavailable raster backend.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{}

	for _, opt := range opts {
		opt(d)
	}

	if d.fs == nil {
		d.fs = afero.NewOsFs()
	}

	if d.codec == nil {
		d.codec = imaging.NewStd(d.fs)
	}

	if d.rasterIO == nil {
		d.rasterIO = raster.Unavailable{}
	}

	d.logger = ctxlog.OrDiscard(d.logger)

	return d
}

// RunBatch fulfils requests in order, writing below outputDir.
// shouldCancel, and ctx, are checked before and after every request. On cancellation every
// file the batch wrote is removed, along with the output directory if it is left empty,
// and a *RunCancelledError is returned. A failing request stops the batch but leaves the
// outputs of earlier requests in place.
func (d *Driver) RunBatch(
	ctx context.Context,
	requests []Request,
	outputDir string,
	onProgress ProgressFunc,
	shouldCancel func() bool,
) ([]Artifact, error) {
	return d.runBatch(ctx, requests, outputtracker.New(outputDir, outputtracker.WithFs(d.fs)), onProgress, shouldCancel)
}

func (d *Driver) runBatch(
	ctx context.Context,
	requests []Request,
	tracker *outputtracker.Tracker,
	onProgress ProgressFunc,
	shouldCancel func() bool,
) ([]Artifact, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	if err := tracker.EnsureOutputDir(); err != nil {
		return nil, err
	}

	cancelled := func() bool {
		return ctx.Err() != nil || (shouldCancel != nil && shouldCancel())
	}

	total := len(requests)
	artifacts := make([]Artifact, 0, total)

	for i, req := range requests {
		if cancelled() {
			return nil, d.cancel(ctx, tracker, len(artifacts), total)
		}

		art, err := d.runTracked(ctx, req, tracker)
		if err != nil {
			if ctx.Err() != nil {
				return nil, d.cancel(ctx, tracker, len(artifacts), total)
			}

			return artifacts, err
		}

		artifacts = append(artifacts, art)

		if onProgress != nil {
			onProgress(i+1, total, art.MasterOutputPath)
		}

		if cancelled() {
			return nil, d.cancel(ctx, tracker, len(artifacts), total)
		}
	}

	return artifacts, nil
}

func (d *Driver) cancel(ctx context.Context, tracker *outputtracker.Tracker, completed, total int) error {
	ctxlog.Event(ctx, d.logger, slog.LevelWarn, "batch_cancelled", "Upscale batch cancelled",
		"completed", completed,
		"total", total,
		"output_dir", tracker.OutputDir(),
	)

	cancelErr := &RunCancelledError{Completed: completed, Total: total}

	if err := tracker.Discard(); err != nil {
		return errors.Join(cancelErr, fmt.Errorf("discarding outputs: %w", err))
	}

	return cancelErr
}

// RunRequest fulfils a single request, writing below outputDir.
func (d *Driver) RunRequest(ctx context.Context, req Request, outputDir string) (Artifact, error) {
	return d.runTracked(ctx, req, outputtracker.New(outputDir, outputtracker.WithFs(d.fs)))
}

// RunRequestTracked fulfils a single request, claiming its outputs through a caller-owned tracker.
// A failed request leaves the tracker as it found it.
func (d *Driver) RunRequestTracked(ctx context.Context, req Request, tracker *outputtracker.Tracker) (Artifact, error) {
	if err := tracker.EnsureOutputDir(); err != nil {
		return Artifact{}, err
	}

	return d.runTracked(ctx, req, tracker)
}

// runTracked runs req and removes whatever it claimed if it fails.
func (d *Driver) runTracked(ctx context.Context, req Request, tracker *outputtracker.Tracker) (Artifact, error) {
	checkpoint := tracker.Checkpoint()

	art, err := d.runRequest(ctx, req, tracker)
	if err != nil {
		ctxlog.Event(ctx, d.logger, slog.LevelError, "request_failed", "Upscale request failed",
			"input", req.InputPath,
			"error", err.Error(),
		)

		if rbErr := tracker.Rollback(checkpoint); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("removing partial outputs: %w", rbErr))
		}

		return Artifact{}, err
	}

	return art, nil
}

func (d *Driver) runRequest(ctx context.Context, req Request, tracker *outputtracker.Tracker) (Artifact, error) {
	if req.Scale <= 0 {
		return Artifact{}, fmt.Errorf("%w: %d", ErrInvalidScale, req.Scale)
	}

	if info, err := d.fs.Stat(req.InputPath); err != nil || !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("%w: %s", ErrInputNotFound, req.InputPath)
	}

	ctxlog.Event(ctx, d.logger, slog.LevelInfo, "request_start", "Upscaling",
		"input", req.InputPath,
		"scale", req.Scale,
		"master_format", req.Plan.MasterFormat,
		"visual_format", optional(req.Plan.VisualFormat),
		"model", optional(req.ModelName),
	)

	r := &requestRun{
		Driver:  d,
		req:     req,
		tracker: tracker,
	}

	masterName := OutputName(req.InputPath, req.Scale, req.Plan.MasterFormat, "master", req.OutputTag)

	master, err := r.masterChain(ctx, masterName).Run(ctx, &r.notes)
	if err != nil {
		return Artifact{}, fmt.Errorf("producing master for %s: %w", req.InputPath, err)
	}

	art := Artifact{
		InputPath:        req.InputPath,
		MasterOutputPath: master,
	}

	if req.Plan.VisualFormat != "" {
		visualName := OutputName(req.InputPath, req.Scale, req.Plan.VisualFormat, "visual", req.OutputTag)

		visual, err := r.visualChain(ctx, visualName, master).Run(ctx, &r.notes)
		if err != nil {
			return Artifact{}, fmt.Errorf("producing visual output for %s: %w", req.InputPath, err)
		}

		art.VisualOutputPath = visual
	}

	art.Notes = r.notes.List()

	ctxlog.Event(ctx, d.logger, slog.LevelInfo, "request_complete", "Upscaled",
		"input", req.InputPath,
		"master", art.MasterOutputPath,
		"visual", optional(art.VisualOutputPath),
		"notes", len(art.Notes),
	)

	return art, nil
}

func optional(s string) any {
	if s == "" {
		return nil
	}

	return s
}
