// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package upscale

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/fallback"
	"github.com/matt-FFFFFF/upscaler/internal/imaging"
	"github.com/matt-FFFFFF/upscaler/internal/model"
	"github.com/matt-FFFFFF/upscaler/internal/outputtracker"
	"github.com/matt-FFFFFF/upscaler/internal/raster"
)

const (
	noteVisualFallback      = "Geospatial export fallback: produced visual upscale because geospatial IO failed."
	noteCopyFallback        = "Geospatial export fallback: copied source because image decoding failed."
	noteGeoTIFFFallback     = "Requested geospatial format unavailable; wrote GeoTIFF master instead."
	noteModelFallback       = "Model '%s' unavailable; used built-in visual upscale fallback."
	noteModelVisualFallback = "Model '%s' unavailable for visual export; used built-in fallback."
)

// requestRun carries one request through its fallback chains.
type requestRun struct {
	*Driver
	req     Request
	tracker *outputtracker.Tracker
	notes   fallback.Notes
}

// guard wraps a step so that a failure removes every path the step claimed before the next step runs.
func (r *requestRun) guard(run func(ctx context.Context) (string, error)) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		checkpoint := r.tracker.Checkpoint()

		path, err := run(ctx)
		if err != nil {
			if rbErr := r.tracker.Rollback(checkpoint); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("removing partial outputs: %w", rbErr))
			}

			return "", err
		}

		return path, nil
	}
}

func (r *requestRun) chain(ctx context.Context) fallback.Chain[string] {
	return fallback.Chain[string]{
		OnFailure: func(step string, err error) {
			ctxlog.Event(ctx, r.logger, slog.LevelWarn, "fallback", "Upscale step failed",
				"input", r.req.InputPath,
				"step", step,
				"error", err.Error(),
			)
		},
	}
}

func (r *requestRun) masterChain(ctx context.Context, name string) fallback.Chain[string] {
	c := r.chain(ctx)

	if PreservesMetadata(r.req.Plan.MasterFormat) {
		fallbackName := withExt(name, filepath.Ext(r.req.InputPath))

		return c.
			Then("raster", "", r.guard(func(ctx context.Context) (string, error) {
				return r.rasterMaster(ctx, name)
			})).
			Then("visual", noteVisualFallback, r.guard(func(context.Context) (string, error) {
				return r.resize(fallbackName, r.req.BandHandling)
			})).
			Then("copy", noteCopyFallback, r.guard(func(context.Context) (string, error) {
				return r.copyInput(fallbackName)
			}))
	}

	if r.req.ModelName != "" {
		c = c.Then("model", "", r.guard(func(ctx context.Context) (string, error) {
			return r.invokeModel(ctx, name)
		}))
	}

	note := ""
	if r.req.ModelName != "" {
		note = fmt.Sprintf(noteModelFallback, r.req.ModelName)
	}

	return c.Then("resize", note, r.guard(func(context.Context) (string, error) {
		return r.resize(name, r.req.BandHandling)
	}))
}

func (r *requestRun) visualChain(ctx context.Context, name, master string) fallback.Chain[string] {
	c := r.chain(ctx)

	if r.req.ModelName != "" {
		c = c.Then("model", "", r.guard(func(ctx context.Context) (string, error) {
			return r.invokeModel(ctx, name)
		}))
	}

	note := ""
	if r.req.ModelName != "" {
		note = fmt.Sprintf(noteModelVisualFallback, r.req.ModelName)
	}

	derive := r.chain(ctx).
		Then("derive", "", r.guard(func(context.Context) (string, error) {
			return r.deriveVisual(master, name)
		})).
		Then("resize", "", r.guard(func(context.Context) (string, error) {
			return r.resize(name, RGBOnly)
		}))

	return c.Then("derive", note, func(ctx context.Context) (string, error) {
		return derive.Run(ctx, nil)
	})
}

// claim registers path, and any sidecars the raster backend writes next to it, with the tracker.
func (r *requestRun) claim(name string) (string, error) {
	path, err := r.tracker.OutputPath(name)
	if err != nil {
		return "", err
	}

	for _, s := range raster.Sidecars(r.rasterIO, path) {
		if _, err := r.tracker.OutputPath(s); err != nil {
			return "", err
		}
	}

	return path, nil
}

// rasterMaster resamples every band of the input and writes it with the requested driver,
// falling back to GeoTIFF.
func (r *requestRun) rasterMaster(ctx context.Context, name string) (string, error) {
	src, err := r.rasterIO.Open(r.req.InputPath)
	if err != nil {
		return "", err
	}

	up, err := raster.Upscale(src, r.req.Scale, r.req.ReprojectTo)
	if err != nil {
		return "", err
	}

	write := func(name, driver string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) {
			path, err := r.claim(name)
			if err != nil {
				return "", err
			}

			if err := r.rasterIO.Write(path, driver, up); err != nil {
				return "", err
			}

			return path, nil
		}
	}

	return r.chain(ctx).
		Then("write", "", r.guard(write(name, raster.DriverForFormat(r.req.Plan.MasterFormat)))).
		Then("write-geotiff", noteGeoTIFFFallback, r.guard(write(withExt(name, ".tif"), raster.DriverGTiff))).
		Run(ctx, &r.notes)
}

// resize decodes the input, renders it for display and scales it with the built-in resampler.
func (r *requestRun) resize(name string, handling BandHandling) (string, error) {
	img, err := r.codec.Decode(r.req.InputPath)
	if err != nil {
		return "", err
	}

	rendered, err := imaging.Render(img, handling == RGBOnly || handling == "", r.req.RGBMapping)
	if err != nil {
		return "", err
	}

	path, err := r.claim(name)
	if err != nil {
		return "", err
	}

	if err := r.codec.Encode(path, imaging.Scale(rendered, r.req.Scale)); err != nil {
		return "", err
	}

	return path, nil
}

// deriveVisual renders three bands of the written master as an 8-bit image.
func (r *requestRun) deriveVisual(master, name string) (string, error) {
	ds, err := r.rasterIO.Open(master)
	if err != nil {
		return "", err
	}

	mapping := imaging.DefaultMapping(ds.Count())
	if r.req.RGBMapping != nil {
		mapping = *r.req.RGBMapping
	}

	idx := mapping.Indexes(ds.Count())

	planes, err := ds.SelectBands(idx[:]...)
	if err != nil {
		return "", err
	}

	rgb, err := imaging.StretchToRGB(planes, ds.Width, ds.Height)
	if err != nil {
		return "", err
	}

	path, err := r.claim(name)
	if err != nil {
		return "", err
	}

	if err := r.codec.Encode(path, rgb); err != nil {
		return "", err
	}

	return path, nil
}

func (r *requestRun) copyInput(name string) (string, error) {
	path, err := r.claim(name)
	if err != nil {
		return "", err
	}

	src, err := r.fs.Open(r.req.InputPath)
	if err != nil {
		return "", err
	}
	defer src.Close() //nolint:errcheck

	dst, err := r.fs.Create(path)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close() //nolint:errcheck,gosec
		return "", err
	}

	if err := dst.Close(); err != nil {
		return "", err
	}

	if info, err := r.fs.Stat(r.req.InputPath); err == nil {
		_ = r.fs.Chtimes(path, info.ModTime(), info.ModTime())
	}

	return path, nil
}

// invokeModel runs the external model. It succeeds only if the output file exists afterwards.
func (r *requestRun) invokeModel(ctx context.Context, name string) (string, error) {
	if r.invoker == nil {
		return "", ErrNoInvoker
	}

	path, err := r.claim(name)
	if err != nil {
		return "", err
	}

	err = r.invoker.Invoke(ctx, model.Invocation{
		Model:     r.req.ModelName,
		Version:   r.req.ModelVersion,
		CacheDir:  r.req.ModelCacheDir,
		Input:     r.req.InputPath,
		Output:    path,
		Scale:     r.req.Scale,
		Tiling:    r.req.Tiling,
		Precision: r.req.Precision,
		Compute:   r.req.Compute,
	})
	if err != nil {
		return "", err
	}

	if info, err := r.fs.Stat(path); err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNoModelOutput, path)
	}

	return path, nil
}
