// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
	"golang.org/x/image/tiff"
)

// SidecarSuffix is appended to a raster path to name its metadata sidecar.
const SidecarSuffix = ".aux.yaml"

// ErrUnsupportedLayout is returned when a dataset's band count cannot be stored in a TIFF.
var ErrUnsupportedLayout = errors.New("band layout cannot be stored as TIFF")

// TIFF stores rasters as baseline TIFF with a YAML metadata sidecar.
// One band is stored as grayscale, three as RGB and four as RGBA. Bands whose type fits
// in 8 bits are stored with 8 bits per sample, everything else with 16.
type TIFF struct {
	fs afero.Fs
}

// NewTIFF returns a TIFF IO on fs. A nil fs means the OS filesystem.
func NewTIFF(fs afero.Fs) *TIFF {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &TIFF{fs: fs}
}

type sidecar struct {
	CRS       string            `yaml:"crs,omitempty"`
	Transform []float64         `yaml:"transform,omitempty"`
	NoData    *float64          `yaml:"nodata,omitempty"`
	Tags      map[string]string `yaml:"tags,omitempty"`
	Bands     []sidecarBand     `yaml:"bands,omitempty"`
}

type sidecarBand struct {
	Description string            `yaml:"description,omitempty"`
	DType       DType             `yaml:"dtype,omitempty"`
	Tags        map[string]string `yaml:"tags,omitempty"`
}

// Sidecars implements SidecarWriter.
func (t *TIFF) Sidecars(path string) []string {
	return []string{path + SidecarSuffix}
}

// Open reads a TIFF and its sidecar, if present.
func (t *TIFF) Open(path string) (*Dataset, error) {
	if !isTIFFPath(path) {
		return nil, fmt.Errorf("open %s: %w", path, ErrUnsupportedFormat)
	}

	f, err := t.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	meta, err := t.readSidecar(path)
	if err != nil {
		return nil, err
	}

	ds := planes(img, len(meta.Bands))
	ds.CRS = meta.CRS
	ds.NoData = meta.NoData
	ds.Tags = meta.Tags
	ds.Transform = Identity

	if len(meta.Transform) == len(ds.Transform) {
		copy(ds.Transform[:], meta.Transform)
	}

	if len(meta.Bands) == len(ds.Bands) {
		for i, b := range meta.Bands {
			ds.Bands[i].Description = b.Description
			ds.Bands[i].Tags = b.Tags

			if b.DType != "" {
				ds.Bands[i].DType = b.DType
			}
		}
	}

	return ds, nil
}

// Write encodes ds at path. Only DriverGTiff is supported.
func (t *TIFF) Write(path, driver string, ds *Dataset) error {
	if driver != DriverGTiff {
		return fmt.Errorf("write %s: %w: %s", path, ErrUnsupportedDriver, driver)
	}

	if err := ds.Validate(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	img, err := toImage(ds)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := t.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	f, err := t.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return t.writeSidecar(path, ds)
}

func (t *TIFF) readSidecar(path string) (sidecar, error) {
	var meta sidecar

	data, err := afero.ReadFile(t.fs, path+SidecarSuffix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, nil
		}

		return meta, fmt.Errorf("read sidecar for %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse sidecar for %s: %w", path, err)
	}

	return meta, nil
}

func (t *TIFF) writeSidecar(path string, ds *Dataset) error {
	meta := sidecar{
		CRS:       ds.CRS,
		Transform: ds.Transform[:],
		NoData:    ds.NoData,
		Tags:      ds.Tags,
		Bands:     make([]sidecarBand, 0, len(ds.Bands)),
	}

	for _, b := range ds.Bands {
		meta.Bands = append(meta.Bands, sidecarBand{Description: b.Description, DType: b.DType, Tags: b.Tags})
	}

	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal sidecar for %s: %w", path, err)
	}

	if err := afero.WriteFile(t.fs, path+SidecarSuffix, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar for %s: %w", path, err)
	}

	return nil
}

func isTIFFPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return true
	default:
		return false
	}
}

func fitsIn8Bits(ds *Dataset) bool {
	for _, b := range ds.Bands {
		if b.DType != Uint8 && b.DType != Bool {
			return false
		}
	}

	return true
}

func toImage(ds *Dataset) (image.Image, error) {
	rect := image.Rect(0, 0, ds.Width, ds.Height)
	eight := fitsIn8Bits(ds)
	n := len(ds.Bands)

	switch n {
	case 1:
		plane := ds.Bands[0].Data
		if eight {
			img := image.NewGray(rect)
			for i, v := range plane {
				img.Pix[i] = uint8(Uint8.Clamp(v))
			}

			return img, nil
		}

		img := image.NewGray16(rect)
		for i, v := range plane {
			img.SetGray16(i%ds.Width, i/ds.Width, color.Gray16{Y: uint16(Uint16.Clamp(v))})
		}

		return img, nil
	case 3, 4:
		value := func(band, i int) float64 {
			if band < n {
				return ds.Bands[band].Data[i]
			}

			if eight {
				return 255
			}

			return 65535
		}

		if eight {
			img := image.NewNRGBA(rect)
			for i := range ds.Width * ds.Height {
				for c := range 4 {
					img.Pix[i*4+c] = uint8(Uint8.Clamp(value(c, i)))
				}
			}

			return img, nil
		}

		img := image.NewNRGBA64(rect)
		for i := range ds.Width * ds.Height {
			img.SetNRGBA64(i%ds.Width, i/ds.Width, color.NRGBA64{
				R: uint16(Uint16.Clamp(value(0, i))),
				G: uint16(Uint16.Clamp(value(1, i))),
				B: uint16(Uint16.Clamp(value(2, i))),
				A: uint16(Uint16.Clamp(value(3, i))),
			})
		}

		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d bands", ErrUnsupportedLayout, n)
	}
}

// planes splits img into bands. want is the band count recorded in the sidecar, or 0.
func planes(img image.Image, want int) *Dataset {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	ds := &Dataset{Width: w, Height: h}

	gray := false
	dtype := Uint16

	switch img.(type) {
	case *image.Gray:
		gray, dtype = true, Uint8
	case *image.Gray16:
		gray = true
	case *image.NRGBA, *image.RGBA, *image.Paletted, *image.YCbCr:
		dtype = Uint8
	}

	count := 3
	switch {
	case gray:
		count = 1
	case want == 4:
		count = 4
	case want == 0:
		if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
			count = 4
		}
	}

	for range count {
		ds.Bands = append(ds.Bands, Band{DType: dtype, Data: make([]float64, w*h)})
	}

	at := func(x, y int) color.NRGBA64 {
		return color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64) //nolint:forcetypeassert
	}

	switch m := img.(type) {
	case *image.NRGBA:
		at = func(x, y int) color.NRGBA64 {
			c := m.NRGBAAt(x, y)
			return color.NRGBA64{R: widen(c.R), G: widen(c.G), B: widen(c.B), A: widen(c.A)}
		}
	case *image.NRGBA64:
		at = m.NRGBA64At
	}

	for y := range h {
		for x := range w {
			i := y*w + x
			c := at(b.Min.X+x, b.Min.Y+y)
			vals := [4]uint16{c.R, c.G, c.B, c.A}

			for band := range count {
				v := float64(vals[band])
				if dtype == Uint8 {
					v = float64(vals[band] >> 8)
				}

				ds.Bands[band].Data[i] = v
			}
		}
	}

	return ds
}

func widen(v uint8) uint16 {
	return uint16(v)<<8 | uint16(v)
}
