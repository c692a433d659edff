// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registry = model.NewRegistry(model.Entry{
	Name:       "Real-ESRGAN",
	WeightsURL: "https://github.com/xinntao/Real-ESRGAN/releases/download/v0.1.0/RealESRGAN_x4plus.pth",
})

func TestNewTimings(t *testing.T) {
	start := time.Date(2025, 1, 2, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	tm, err := NewTimings(start, start.Add(5*time.Second+250*time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, "2025-01-02T09:30:00Z", tm.StartedAt)
	assert.Equal(t, "2025-01-02T09:30:05Z", tm.CompletedAt)
	assert.Equal(t, int64(5250), tm.DurationMS)

	_, err = NewTimings(start, start.Add(-time.Second))
	require.ErrorIs(t, err, ErrNegativeDuration)
}

func TestBuild(t *testing.T) {
	tm := Timings{StartedAt: "a", CompletedAt: "b", DurationMS: 1}

	r, err := Build(Config{BandHandling: "RGB only", OutputFormat: "PNG", ModelName: "Real-ESRGAN", Scale: 4, Tiling: "Auto"}, registry, tm)
	require.NoError(t, err)
	assert.Equal(t, "v0.1.0", r.Model.Version)
	require.NotNil(t, r.Settings.Scale)
	assert.Equal(t, 4, *r.Settings.Scale)
	assert.Nil(t, r.Settings.Precision)

	r, err = Build(Config{ModelName: "Real-ESRGAN", ModelVersion: "v9"}, registry, tm)
	require.NoError(t, err)
	assert.Equal(t, "v9", r.Model.Version)

	r, err = Build(Config{ModelName: "Other"}, nil, tm)
	require.NoError(t, err)
	assert.Equal(t, model.UnknownVersion, r.Model.Version)

	_, err = Build(Config{}, registry, tm)
	require.ErrorIs(t, err, ErrModelNameRequired)
}

func TestWrite_AtomicAndShape(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/reports/job/report.json"

	r, err := Build(Config{BandHandling: "RGB + all bands", OutputFormat: "GeoTIFF", ModelName: "Real-ESRGAN"}, registry,
		Timings{StartedAt: "2025-01-02T09:30:00Z", CompletedAt: "2025-01-02T09:30:05Z", DurationMS: 5000})
	require.NoError(t, err)
	require.NoError(t, Write(fs, path, r))

	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = afero.Exists(fs, path+".tmp")
	require.NoError(t, err)
	assert.False(t, ok)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	var payload map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "RGB + all bands", payload["settings"]["band_handling"])
	assert.Nil(t, payload["settings"]["scale"])
	assert.Contains(t, payload["settings"], "tiling")
	assert.Equal(t, "v0.1.0", payload["model"]["version"])
	assert.InDelta(t, 5000, payload["timings"]["duration_ms"], 0)

	got, err := Read(fs, path)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestWrite_ReplacesExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/r.json", []byte("old"), 0o644))

	require.NoError(t, Write(fs, "/r.json", Report{Model: Model{Name: "m", Version: "v1"}}))

	got, err := Read(fs, "/r.json")
	require.NoError(t, err)
	assert.Equal(t, "m", got.Model.Name)
}
