// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package raster

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidScale is returned by Upscale for a non-positive scale.
	ErrInvalidScale = errors.New("scale must be positive")
	// ErrUnsupportedReprojection is returned when the target grid uses a different CRS.
	// Only regridding within one CRS is supported.
	ErrUnsupportedReprojection = errors.New("reprojection between coordinate reference systems is not supported")
)

// Method is a resampling method.
type Method int

// Resampling methods.
const (
	Nearest Method = iota
	Bilinear
)

func (m Method) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// NeedsRegrid reports whether target describes a grid different from the source grid.
func NeedsRegrid(src GridSignature, target *GridSignature) bool {
	return target != nil && !src.Equal(*target)
}

// Upscale returns a new dataset with every band enlarged by scale.
// When target differs from the source grid the output covers target's extent at scale times
// target's resolution. Pixels falling outside the source are set to NoData, or 0 without one.
func Upscale(src *Dataset, scale int, target *GridSignature) (*Dataset, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScale, scale)
	}

	if err := src.Validate(); err != nil {
		return nil, err
	}

	s := float64(scale)
	out := src.cloneMeta()
	out.Width = src.Width * scale
	out.Height = src.Height * scale
	out.Transform = src.Transform.Scale(1/s, 1/s)

	var toSource func(x, y float64) (float64, float64)

	if NeedsRegrid(src.Grid(), target) {
		if target.CRS != src.CRS {
			return nil, fmt.Errorf("%w: %q to %q", ErrUnsupportedReprojection, src.CRS, target.CRS)
		}

		if target.Width <= 0 || target.Height <= 0 {
			return nil, fmt.Errorf("%w: target size %dx%d", ErrInvalidDataset, target.Width, target.Height)
		}

		inv, err := src.Transform.Invert()
		if err != nil {
			return nil, err
		}

		out.Width = target.Width * scale
		out.Height = target.Height * scale
		out.Transform = target.Transform.Scale(1/s, 1/s)

		dst := out.Transform
		toSource = func(x, y float64) (float64, float64) {
			return inv.Apply(dst.Apply(x, y))
		}
	} else {
		fx := float64(src.Width) / float64(out.Width)
		fy := float64(src.Height) / float64(out.Height)
		toSource = func(x, y float64) (float64, float64) {
			return x * fx, y * fy
		}
	}

	fill := 0.0
	if src.NoData != nil {
		fill = *src.NoData
	}

	for i, b := range src.Bands {
		method := MethodFor(b)
		data := make([]float64, out.Width*out.Height)

		for row := range out.Height {
			for col := range out.Width {
				sx, sy := toSource(float64(col)+0.5, float64(row)+0.5)

				v, ok := sample(b.Data, src.Width, src.Height, sx, sy, method, src.NoData)
				if !ok {
					v = fill
				}

				data[row*out.Width+col] = b.DType.Clamp(v)
			}
		}

		out.Bands[i].Data = data
	}

	return out, nil
}

// Resize scales one plane to w x h with the given method.
func Resize(data []float64, width, height, w, h int, method Method) []float64 {
	out := make([]float64, w*h)
	fx := float64(width) / float64(w)
	fy := float64(height) / float64(h)

	for row := range h {
		for col := range w {
			v, _ := sample(data, width, height, (float64(col)+0.5)*fx, (float64(row)+0.5)*fy, method, nil)
			out[row*w+col] = v
		}
	}

	return out
}

// sample reads the plane at continuous pixel coordinates where pixel i spans [i, i+1).
// ok is false when the point lies outside the plane.
func sample(data []float64, width, height int, x, y float64, method Method, nodata *float64) (float64, bool) {
	if x < 0 || y < 0 || x >= float64(width) || y >= float64(height) {
		return 0, false
	}

	nearest := data[int(y)*width+int(x)]
	if method == Nearest {
		return nearest, true
	}

	gx := x - 0.5
	gy := y - 0.5
	x0 := clampInt(int(math.Floor(gx)), 0, width-1)
	y0 := clampInt(int(math.Floor(gy)), 0, height-1)
	x1 := clampInt(x0+1, 0, width-1)
	y1 := clampInt(y0+1, 0, height-1)
	tx := math.Min(1, math.Max(0, gx-float64(x0)))
	ty := math.Min(1, math.Max(0, gy-float64(y0)))

	v00 := data[y0*width+x0]
	v10 := data[y0*width+x1]
	v01 := data[y1*width+x0]
	v11 := data[y1*width+x1]

	if nodata != nil {
		for _, v := range []float64{v00, v10, v01, v11} {
			if v == *nodata {
				return nearest, true
			}
		}
	}

	top := v00*(1-tx) + v10*tx
	bottom := v01*(1-tx) + v11*tx

	return top*(1-ty) + bottom*ty, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
