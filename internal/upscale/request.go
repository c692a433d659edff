// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package upscale

import (
	"errors"
	"fmt"

	"github.com/matt-FFFFFF/upscaler/internal/imaging"
	"github.com/matt-FFFFFF/upscaler/internal/raster"
)

var (
	// ErrInvalidScale is returned for a scale that is not positive.
	ErrInvalidScale = errors.New("scale must be positive")
	// ErrInputNotFound is returned when the input is missing or not a regular file.
	ErrInputNotFound = errors.New("input file not found")
	// ErrRunCancelled is matched by every RunCancelledError.
	ErrRunCancelled = errors.New("upscale run cancelled")
	// ErrUnknownBandHandling is returned by ParseBandHandling.
	ErrUnknownBandHandling = errors.New("unknown band handling")
	// ErrNoModelOutput is returned when a model reports success but wrote nothing.
	ErrNoModelOutput = errors.New("model produced no output")
	// ErrNoInvoker is returned when a model is requested but no invoker is configured.
	ErrNoInvoker = errors.New("no model invoker configured")
)

// BandHandling selects which bands a visual output is built from.
type BandHandling string

const (
	// RGBOnly flattens the input to RGB.
	RGBOnly BandHandling = "RGB only"
	// RGBPlusAll renders three display bands picked by the band mapping.
	RGBPlusAll BandHandling = "RGB + all bands"
	// AllBands renders three display bands picked by the band mapping.
	AllBands BandHandling = "All bands"
)

// BandHandlingLabels lists the accepted band handling labels.
func BandHandlingLabels() []string {
	return []string{string(RGBOnly), string(RGBPlusAll), string(AllBands)}
}

// ParseBandHandling returns the BandHandling for label. An empty label means RGBOnly.
func ParseBandHandling(label string) (BandHandling, error) {
	switch BandHandling(label) {
	case "":
		return RGBOnly, nil
	case RGBOnly, RGBPlusAll, AllBands:
		return BandHandling(label), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBandHandling, label)
	}
}

// RGBBandMapping picks the zero-based bands shown as red, green and blue.
type RGBBandMapping = imaging.BandMapping

// Request asks for one input to be upscaled.
type Request struct {
	InputPath     string
	Plan          OutputPlan
	Scale         int
	BandHandling  BandHandling
	RGBMapping    *RGBBandMapping
	ReprojectTo   *raster.GridSignature
	ModelName     string
	ModelVersion  string
	ModelCacheDir string
	Tiling        string
	Precision     string
	Compute       string
	OutputTag     string
}

// Artifact is the result of a completed request.
type Artifact struct {
	InputPath        string   `json:"input_path"`
	MasterOutputPath string   `json:"master_output_path"`
	VisualOutputPath string   `json:"visual_output_path,omitempty"`
	Notes            []string `json:"notes,omitempty"`
}

// RunCancelledError is returned when a batch is cancelled. Everything it wrote has been removed.
type RunCancelledError struct {
	// Completed is the number of requests that had finished before cancellation.
	Completed int
	Total     int
}

func (e *RunCancelledError) Error() string {
	return fmt.Sprintf("%s after %d of %d requests", ErrRunCancelled, e.Completed, e.Total)
}

// Is makes errors.Is(err, ErrRunCancelled) true.
func (e *RunCancelledError) Is(target error) bool {
	return target == ErrRunCancelled
}
