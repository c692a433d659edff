// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/model"
	"github.com/spf13/afero"
)

// TimeFormat is the layout of report timestamps, always in UTC.
const TimeFormat = "2006-01-02T15:04:05Z"

var (
	// ErrModelNameRequired is returned when a report has no model name.
	ErrModelNameRequired = errors.New("model name must be provided")
	// ErrNegativeDuration is returned when a job completed before it started.
	ErrNegativeDuration = errors.New("completed_at must be after started_at")
)

// Settings are the processing settings of a job.
type Settings struct {
	BandHandling string  `json:"band_handling"`
	OutputFormat string  `json:"output_format"`
	Scale        *int    `json:"scale"`
	Tiling       *string `json:"tiling"`
	Precision    *string `json:"precision"`
	Compute      *string `json:"compute"`
}

// Model identifies the model a job ran.
type Model struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Timings records when a job ran.
type Timings struct {
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
	DurationMS  int64  `json:"duration_ms"`
}

// Report is the processing report of one job.
type Report struct {
	Settings Settings `json:"settings"`
	Model    Model    `json:"model"`
	Timings  Timings  `json:"timings"`
}

// Config describes the report a job should produce.
type Config struct {
	Path         string
	BandHandling string
	OutputFormat string
	ModelName    string
	// ModelVersion overrides the version derived from the model registry.
	ModelVersion string
	Scale        int
	Tiling       string
	Precision    string
	Compute      string
}

// NewTimings returns the timings of a job that ran from start to end.
func NewTimings(start, end time.Time) (Timings, error) {
	d := end.Sub(start)
	if d < 0 {
		return Timings{}, ErrNegativeDuration
	}

	return Timings{
		StartedAt:   start.UTC().Format(TimeFormat),
		CompletedAt: end.UTC().Format(TimeFormat),
		DurationMS:  d.Milliseconds(),
	}, nil
}

// Build assembles a report. Without an explicit version the model's version is resolved
// through registry, falling back to model.UnknownVersion.
func Build(cfg Config, registry *model.Registry, timings Timings) (Report, error) {
	if cfg.ModelName == "" {
		return Report{}, ErrModelNameRequired
	}

	version := cfg.ModelVersion
	if version == "" {
		version = registry.ResolveVersion(cfg.ModelName)
	}

	return Report{
		Settings: Settings{
			BandHandling: cfg.BandHandling,
			OutputFormat: cfg.OutputFormat,
			Scale:        positive(cfg.Scale),
			Tiling:       nonEmpty(cfg.Tiling),
			Precision:    nonEmpty(cfg.Precision),
			Compute:      nonEmpty(cfg.Compute),
		},
		Model:   Model{Name: cfg.ModelName, Version: version},
		Timings: timings,
	}, nil
}

// Write persists r as indented JSON at path. The file is written next to path with a .tmp
// suffix and renamed into place, so readers never see a partial report.
func Write(fs afero.Fs, path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	tmp := path + ".tmp"

	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("replacing report %s: %w", path, err)
	}

	return nil
}

// Read loads a report written by Write.
func Read(fs afero.Fs, path string) (Report, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Report{}, fmt.Errorf("reading report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("decoding report %s: %w", path, err)
	}

	return r, nil
}

func positive(v int) *int {
	if v <= 0 {
		return nil
	}

	return &v
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
