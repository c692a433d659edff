// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := range h {
		for x := range w {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 200
			}

			img.SetRGBA(x, y, color.RGBA{R: v, G: v / 2, B: 10, A: 255})
		}
	}

	return img
}

func TestStd_RoundTripFormats(t *testing.T) {
	fs := afero.NewMemMapFs()
	codec := NewStd(fs)
	src := checker(3, 2)

	for _, path := range []string{"/o/a.png", "/o/a.jpg", "/o/a.jpeg", "/o/a.gif", "/o/a.tif", "/o/a.tiff", "/o/a.bmp"} {
		t.Run(path, func(t *testing.T) {
			require.NoError(t, codec.Encode(path, src))

			got, err := codec.Decode(path)
			require.NoError(t, err)
			assert.Equal(t, src.Bounds().Size(), got.Bounds().Size())
		})
	}
}

func TestStd_LosslessPNG(t *testing.T) {
	fs := afero.NewMemMapFs()
	codec := NewStd(fs)
	src := checker(2, 2)

	require.NoError(t, codec.Encode("/x.png", src))

	got, err := codec.Decode("/x.png")
	require.NoError(t, err)

	r, g, b, _ := got.At(0, 0).RGBA()
	assert.Equal(t, uint32(200), r>>8)
	assert.Equal(t, uint32(100), g>>8)
	assert.Equal(t, uint32(10), b>>8)
}

func TestStd_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	codec := NewStd(fs)

	assert.ErrorIs(t, codec.Encode("/x.jp2", checker(1, 1)), ErrUnsupportedFormat)

	_, err := codec.Decode("/missing.png")
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.png", []byte("nope"), 0o644))
	_, err = codec.Decode("/bad.png")
	require.Error(t, err)
}

func TestScale(t *testing.T) {
	got := Scale(checker(3, 2), 4)
	assert.Equal(t, image.Pt(12, 8), got.Bounds().Size())
}

func TestToRGB_DropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})

	got := ToRGB(src)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, got.RGBAAt(0, 0))
}

func TestChannels(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	planes, w, h := Channels(gray)
	assert.Len(t, planes, 1)
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)

	planes, _, _ = Channels(checker(1, 1))
	assert.Len(t, planes, 3)

	transparent := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	planes, _, _ = Channels(transparent)
	assert.Len(t, planes, 4)
}

func TestStretchToRGB(t *testing.T) {
	img, err := StretchToRGB([][]float64{{0, 50, 100}}, 3, 1)
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{127, 127, 127, 255}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(2, 0))

	flat, err := StretchToRGB([][]float64{{7, 7}, {7, 7}, {7, 7}}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, flat.RGBAAt(1, 0))

	_, err = StretchToRGB(nil, 1, 1)
	require.ErrorIs(t, err, ErrNoBands)

	_, err = StretchToRGB([][]float64{{1}}, 2, 2)
	require.Error(t, err)
}

func TestExpandToThree(t *testing.T) {
	a, b, c, d := []float64{1}, []float64{2}, []float64{3}, []float64{4}

	got, err := ExpandToThree([][]float64{a, b})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{a, b, b}, got)

	got, err = ExpandToThree([][]float64{a, b, c, d})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{a, b, c}, got)
}

func TestDefaultMapping(t *testing.T) {
	tests := []struct {
		count int
		want  BandMapping
	}{
		{0, BandMapping{0, 0, 0, "single-band fallback"}},
		{1, BandMapping{0, 0, 0, "single-band fallback"}},
		{2, BandMapping{0, 1, 1, "two-band fallback"}},
		{3, BandMapping{0, 1, 2, "rgb-first fallback"}},
		{13, BandMapping{0, 1, 2, "rgb-first fallback"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultMapping(tt.count), "count %d", tt.count)
	}
}

func TestBandMapping_Indexes(t *testing.T) {
	assert.Equal(t, [3]int{4, 3, 2}, BandMapping{Red: 3, Green: 2, Blue: 1}.Indexes(13))
	assert.Equal(t, [3]int{1, 2, 2}, BandMapping{Red: -1, Green: 1, Blue: 5}.Indexes(2))
}

func TestRender(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	rgb, err := Render(src, true, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), rgb.RGBAAt(0, 0).A)

	mapping := &BandMapping{Red: 3, Green: 3, Blue: 3}
	stretched, err := Render(src, false, mapping)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, stretched.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, stretched.RGBAAt(1, 0))
}
