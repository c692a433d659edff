// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package raster

import (
	"errors"
	"fmt"
	"strings"
)

// Drivers accepted by IO.Write.
const (
	DriverGTiff = "GTiff"
	DriverJP2   = "JP2OpenJPEG"
)

var (
	// ErrUnavailable is returned by the Unavailable IO.
	ErrUnavailable = errors.New("raster IO is not available")
	// ErrUnsupportedDriver is returned when a writer cannot produce the requested driver.
	ErrUnsupportedDriver = errors.New("unsupported raster driver")
	// ErrUnsupportedFormat is returned when a file cannot be read as a raster.
	ErrUnsupportedFormat = errors.New("unsupported raster format")
)

// IO reads and writes georeferenced rasters.
type IO interface {
	Open(path string) (*Dataset, error)
	Write(path, driver string, ds *Dataset) error
}

// SidecarWriter is implemented by IO implementations that write extra files next to a raster.
type SidecarWriter interface {
	Sidecars(path string) []string
}

// Sidecars returns the extra files io writes for path, if any.
func Sidecars(io IO, path string) []string {
	if sw, ok := io.(SidecarWriter); ok {
		return sw.Sidecars(path)
	}

	return nil
}

// DriverForFormat maps an output format label to a driver name. Unknown labels map to GeoTIFF.
func DriverForFormat(format string) string {
	switch strings.ToUpper(strings.TrimSpace(format)) {
	case "JP2", "JPEG2000":
		return DriverJP2
	default:
		return DriverGTiff
	}
}

// Unavailable is an IO that always fails. It stands in when no raster backend is configured.
type Unavailable struct{}

// Open implements IO.
func (Unavailable) Open(path string) (*Dataset, error) {
	return nil, fmt.Errorf("open %s: %w", path, ErrUnavailable)
}

// Write implements IO.
func (Unavailable) Write(path, _ string, _ *Dataset) error {
	return fmt.Errorf("write %s: %w", path, ErrUnavailable)
}
