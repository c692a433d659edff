// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package raster

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

var (
	// ErrInvalidDataset is returned for datasets whose bands do not match their dimensions.
	ErrInvalidDataset = errors.New("invalid raster dataset")
	// ErrSingularTransform is returned when an affine transform cannot be inverted.
	ErrSingularTransform = errors.New("affine transform is not invertible")
)

// DType names the sample type of a band.
type DType string

// Sample types.
const (
	Bool    DType = "bool"
	Uint8   DType = "uint8"
	Uint16  DType = "uint16"
	Int16   DType = "int16"
	Uint32  DType = "uint32"
	Int32   DType = "int32"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// Clamp rounds and clamps v to the range of the type. Float types are returned unchanged.
func (d DType) Clamp(v float64) float64 {
	lo, hi, integral := d.bounds()
	if !integral {
		return v
	}

	return math.Min(hi, math.Max(lo, math.Round(v)))
}

func (d DType) bounds() (lo, hi float64, integral bool) {
	switch d {
	case Bool:
		return 0, 1, true
	case Uint8:
		return 0, math.MaxUint8, true
	case Uint16:
		return 0, math.MaxUint16, true
	case Int16:
		return math.MinInt16, math.MaxInt16, true
	case Uint32:
		return 0, math.MaxUint32, true
	case Int32:
		return math.MinInt32, math.MaxInt32, true
	default:
		return 0, 0, false
	}
}

// Affine maps pixel (col, row) to world (x, y):
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
type Affine [6]float64

// Identity is the transform of an image without georeferencing.
var Identity = Affine{1, 0, 0, 0, 1, 0}

// Apply maps a pixel coordinate to world coordinates.
func (a Affine) Apply(col, row float64) (x, y float64) {
	return a[0]*col + a[1]*row + a[2], a[3]*col + a[4]*row + a[5]
}

// Scale returns a composed with a pixel scaling of (sx, sy).
func (a Affine) Scale(sx, sy float64) Affine {
	return Affine{a[0] * sx, a[1] * sy, a[2], a[3] * sx, a[4] * sy, a[5]}
}

// Invert returns the world to pixel transform.
func (a Affine) Invert() (Affine, error) {
	det := a[0]*a[4] - a[1]*a[3]
	if det == 0 {
		return Affine{}, ErrSingularTransform
	}

	ia := a[4] / det
	ib := -a[1] / det
	id := -a[3] / det
	ie := a[0] / det

	return Affine{ia, ib, -ia*a[2] - ib*a[5], id, ie, -id*a[2] - ie*a[5]}, nil
}

// GridSignature identifies a pixel grid: CRS, transform and size.
type GridSignature struct {
	CRS       string `yaml:"crs" json:"crs"`
	Transform Affine `yaml:"transform" json:"transform"`
	Width     int    `yaml:"width" json:"width"`
	Height    int    `yaml:"height" json:"height"`
}

// Band is one plane of samples in row-major order.
type Band struct {
	Description string
	Tags        map[string]string
	DType       DType
	Data        []float64
}

// Dataset is an in-memory raster.
type Dataset struct {
	Width     int
	Height    int
	CRS       string
	Transform Affine
	NoData    *float64
	Tags      map[string]string
	Bands     []Band
}

// Count returns the number of bands.
func (d *Dataset) Count() int {
	return len(d.Bands)
}

// Grid returns the grid signature of d.
func (d *Dataset) Grid() GridSignature {
	return GridSignature{CRS: d.CRS, Transform: d.Transform, Width: d.Width, Height: d.Height}
}

// Validate checks that every band holds Width*Height samples.
func (d *Dataset) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidDataset, d.Width, d.Height)
	}

	if len(d.Bands) == 0 {
		return fmt.Errorf("%w: no bands", ErrInvalidDataset)
	}

	want := d.Width * d.Height
	for i, b := range d.Bands {
		if len(b.Data) != want {
			return fmt.Errorf("%w: band %d has %d samples, want %d", ErrInvalidDataset, i+1, len(b.Data), want)
		}
	}

	return nil
}

// SelectBands returns the planes at the given 1-based indexes.
func (d *Dataset) SelectBands(indexes ...int) ([][]float64, error) {
	out := make([][]float64, 0, len(indexes))

	for _, idx := range indexes {
		if idx < 1 || idx > len(d.Bands) {
			return nil, fmt.Errorf("%w: band %d out of range 1..%d", ErrInvalidDataset, idx, len(d.Bands))
		}

		out = append(out, d.Bands[idx-1].Data)
	}

	return out, nil
}

func (b Band) cloneMeta() Band {
	return Band{
		Description: b.Description,
		Tags:        maps.Clone(b.Tags),
		DType:       b.DType,
	}
}

func (d *Dataset) cloneMeta() *Dataset {
	out := &Dataset{
		CRS:       d.CRS,
		Transform: d.Transform,
		Tags:      maps.Clone(d.Tags),
		Bands:     make([]Band, 0, len(d.Bands)),
	}

	if d.NoData != nil {
		nd := *d.NoData
		out.NoData = &nd
	}

	for _, b := range d.Bands {
		out.Bands = append(out.Bands, b.cloneMeta())
	}

	return out
}

// Equal reports whether two grids are identical.
func (g GridSignature) Equal(o GridSignature) bool {
	return g.CRS == o.CRS && g.Width == o.Width && g.Height == o.Height && slices.Equal(g.Transform[:], o.Transform[:])
}
