// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package upscale

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/matt-FFFFFF/upscaler/internal/imaging"
	"github.com/matt-FFFFFF/upscaler/internal/model"
	"github.com/matt-FFFFFF/upscaler/internal/raster"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, fs afero.Fs, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x * 40), uint8(y * 40), 100, 255})
		}
	}

	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.NewStd(fs).Encode(path, img))
}

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()

	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)

	return ok
}

// fakeInvoker records invocations and optionally writes the output file.
type fakeInvoker struct {
	fs    afero.Fs
	write bool
	err   error
	calls []model.Invocation
}

func (f *fakeInvoker) Invoke(_ context.Context, inv model.Invocation) error {
	f.calls = append(f.calls, inv)

	if f.err != nil {
		return f.err
	}

	if f.write {
		return afero.WriteFile(f.fs, inv.Output, []byte("model output"), 0o644)
	}

	return nil
}

// failingCodec decodes through inner but writes a partial file and fails on encode.
type failingCodec struct {
	inner imaging.Codec
	fs    afero.Fs
}

var errEncode = errors.New("disk full")

func (c failingCodec) Decode(path string) (image.Image, error) {
	return c.inner.Decode(path)
}

func (c failingCodec) Encode(path string, _ image.Image) error {
	_ = afero.WriteFile(c.fs, path, []byte("partial"), 0o644)
	return errEncode
}

// partialRasterIO opens any path as a small dataset, then leaves a partial file behind on every write.
type partialRasterIO struct {
	fs afero.Fs
}

var errRasterWrite = errors.New("raster driver crashed")

func (p partialRasterIO) Open(string) (*raster.Dataset, error) {
	return &raster.Dataset{
		Width: 2, Height: 2, CRS: "EPSG:4326", Transform: raster.Affine{1, 0, 0, 0, -1, 0},
		Bands: []raster.Band{
			{Description: "gray", DType: raster.Uint8, Data: []float64{1, 2, 3, 4}},
		},
	}, nil
}

func (p partialRasterIO) Write(path, _ string, _ *raster.Dataset) error {
	_ = afero.WriteFile(p.fs, path, []byte("partial"), 0o644)
	return errRasterWrite
}
