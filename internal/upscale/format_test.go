// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package upscale

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOutputPlan(t *testing.T) {
	t.Run("match input keeps the input format", func(t *testing.T) {
		assert.Equal(t, OutputPlan{MasterFormat: "GeoTIFF"}, BuildOutputPlan("geotiff", "Match input"))
		assert.Equal(t, OutputPlan{MasterFormat: "JPEG"}, BuildOutputPlan("jpg", ""))
		assert.Equal(t, OutputPlan{MasterFormat: "GeoTIFF"}, BuildOutputPlan("Unknown", "match input"))
	})

	t.Run("geospatial input to visual format", func(t *testing.T) {
		plan := BuildOutputPlan("GeoTIFF", "png")
		assert.Equal(t, "GeoTIFF", plan.MasterFormat)
		assert.Equal(t, "PNG", plan.VisualFormat)
		require.Len(t, plan.CriticalWarnings, 1)
		assert.Contains(t, plan.CriticalWarnings[0], "PNG visual exports cannot preserve full geospatial metadata from GeoTIFF inputs")
	})

	t.Run("same family", func(t *testing.T) {
		assert.Equal(t, OutputPlan{MasterFormat: "JP2"}, BuildOutputPlan("GeoTIFF", "jp2"))
		assert.Equal(t, OutputPlan{MasterFormat: "PNG"}, BuildOutputPlan("JPEG", "PNG"))
	})
}

func TestFormatHelpers(t *testing.T) {
	assert.True(t, PreservesMetadata("tif"))
	assert.True(t, PreservesMetadata("JPEG2000"))
	assert.False(t, PreservesMetadata("png"))
	assert.False(t, PreservesMetadata("unknown"))

	assert.Equal(t, ".jp2", ExtensionForFormat("JPEG2000"))
	assert.Equal(t, ".jpg", ExtensionForFormat("jpg"))
	assert.Equal(t, ".png", ExtensionForFormat("PNG"))
	assert.Equal(t, ".tif", ExtensionForFormat("webp"))

	assert.Equal(t, "GeoTIFF", FormatForPath("a/b.TIFF"))
	assert.Equal(t, "JPEG", FormatForPath("x.jpeg"))
	assert.Empty(t, FormatForPath("x.bin"))
}

func TestSanitizeTag(t *testing.T) {
	assert.Equal(t, "summer-run-2", SanitizeTag("  Summer Run #2 "))
	assert.Equal(t, "a-b", SanitizeTag("--A__b--"))
	assert.Empty(t, SanitizeTag("!!!"))
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "scene_x4_master.tif", OutputName("/data/scene.tif", 4, "GeoTIFF", "master", ""))
	assert.Equal(t, "scene_x2_summer_visual.png", OutputName("scene.jp2", 2, "PNG", "visual", "Summer"))
	assert.Equal(t, "scene_x2_master.png", OutputName("scene.png", 2, "PNG", "master", "***"))
}

func TestParseBandHandling(t *testing.T) {
	bh, err := ParseBandHandling("")
	require.NoError(t, err)
	assert.Equal(t, RGBOnly, bh)

	bh, err = ParseBandHandling("All bands")
	require.NoError(t, err)
	assert.Equal(t, AllBands, bh)

	_, err = ParseBandHandling("some bands")
	require.ErrorIs(t, err, ErrUnknownBandHandling)
}

func TestExpandInputPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, f := range []string{"/scenes/b.tif", "/scenes/a.PNG", "/scenes/nested/c.jp2", "/scenes/notes.txt", "/other/d.jpg"} {
		require.NoError(t, afero.WriteFile(fs, f, []byte("x"), 0o644))
	}

	got, err := ExpandInputPaths(fs, []string{"/scenes", "/other/d.jpg", "/scenes/b.tif"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.FromSlash("/scenes/a.PNG"),
		filepath.FromSlash("/scenes/b.tif"),
		filepath.FromSlash("/scenes/nested/c.jp2"),
		filepath.FromSlash("/other/d.jpg"),
	}, got)
}
