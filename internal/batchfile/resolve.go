// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package batchfile

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/matt-FFFFFF/upscaler/internal/upscale"
)

// ErrNoInputs is returned when an input directory holds no supported images.
var ErrNoInputs = errors.New("no supported input files")

// Resolve turns def into upscale requests. Relative inputs are resolved against baseDir.
// Each input's output plan is derived from its extension and the requested output format.
func (def *Definition) Resolve(baseDir string) ([]upscale.Request, error) {
	var out []upscale.Request

	for i, r := range def.Requests {
		bh, err := upscale.ParseBandHandling(r.BandHandling)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}

		input := r.Input
		if !filepath.IsAbs(input) && baseDir != "" {
			input = filepath.Join(baseDir, input)
		}

		paths, err := upscale.ExpandInputPaths(FS, []string{input})
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}

		if len(paths) == 0 {
			return nil, fmt.Errorf("request %d: %w in %s", i, ErrNoInputs, input)
		}

		var mapping *upscale.RGBBandMapping
		if len(r.RGB) == 3 {
			mapping = &upscale.RGBBandMapping{Red: r.RGB[0], Green: r.RGB[1], Blue: r.RGB[2], Source: "batch file"}
		}

		for _, p := range paths {
			out = append(out, upscale.Request{
				InputPath:     p,
				Plan:          upscale.BuildOutputPlan(upscale.FormatForPath(p), r.OutputFormat),
				Scale:         r.Scale,
				BandHandling:  bh,
				RGBMapping:    mapping,
				ReprojectTo:   r.ReprojectTo.Signature(),
				ModelName:     r.Model,
				ModelVersion:  r.ModelVersion,
				ModelCacheDir: r.ModelCacheDir,
				Tiling:        r.Tiling,
				Precision:     r.Precision,
				Compute:       r.Compute,
				OutputTag:     r.Tag,
			})
		}
	}

	return out, nil
}
