// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// ErrNoBands is returned when there is nothing to render.
var ErrNoBands = errors.New("no bands to render")

// Scale enlarges img by an integer factor with Catmull-Rom interpolation.
func Scale(img image.Image, factor int) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)

	return dst
}

// ToRGB flattens img onto an opaque RGB canvas, dropping alpha.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := range b.Dy() {
		for x := range b.Dx() {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA) //nolint:forcetypeassert
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}

	return dst
}

// Channels splits img into planes. Grayscale images have one channel, images with any
// transparency have four and everything else three. Values are 16-bit.
func Channels(img image.Image) (planes [][]float64, width, height int) {
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()

	n := 3

	switch img.(type) {
	case *image.Gray, *image.Gray16:
		n = 1
	default:
		if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
			n = 4
		}
	}

	planes = make([][]float64, n)
	for i := range planes {
		planes[i] = make([]float64, width*height)
	}

	for y := range height {
		for x := range width {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64) //nolint:forcetypeassert
			vals := [4]uint16{c.R, c.G, c.B, c.A}

			for i := range n {
				planes[i][y*width+x] = float64(vals[i])
			}
		}
	}

	return planes, width, height
}

// ExpandToThree repeats or trims planes so there are exactly three:
// one plane becomes grey, two planes repeat the second, more than three keep the first three.
func ExpandToThree(planes [][]float64) ([][]float64, error) {
	switch len(planes) {
	case 0:
		return nil, ErrNoBands
	case 1:
		return [][]float64{planes[0], planes[0], planes[0]}, nil
	case 2:
		return [][]float64{planes[0], planes[1], planes[1]}, nil
	default:
		return planes[:3], nil
	}
}

// StretchToRGB linearly maps the planes' joint min..max range onto 0..255 and builds an RGB image.
// A constant input renders black.
func StretchToRGB(planes [][]float64, width, height int) (*image.RGBA, error) {
	three, err := ExpandToThree(planes)
	if err != nil {
		return nil, err
	}

	for i, p := range three {
		if len(p) != width*height {
			return nil, fmt.Errorf("plane %d has %d samples, want %d", i, len(p), width*height)
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)

	for _, p := range three {
		for _, v := range p {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	for i := range width * height {
		px := dst.Pix[i*4 : i*4+4 : i*4+4]
		px[3] = 0xff

		if hi <= lo {
			continue
		}

		for c := range 3 {
			v := (three[c][i] - lo) / (hi - lo) * 255
			px[c] = uint8(math.Min(255, math.Max(0, v)))
		}
	}

	return dst, nil
}

// Render prepares img for display. With rgbOnly the image is simply flattened to RGB.
// Otherwise its channels are reduced to three, through mapping when there are more than three,
// and stretched to the full 8-bit range.
func Render(img image.Image, rgbOnly bool, mapping *BandMapping) (*image.RGBA, error) {
	if rgbOnly {
		return ToRGB(img), nil
	}

	planes, w, h := Channels(img)
	if len(planes) > 3 {
		if mapping != nil {
			planes = mapping.Select(planes)
		} else {
			planes = planes[:3]
		}
	}

	return StretchToRGB(planes, w, h)
}
