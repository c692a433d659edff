// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package raster holds an in-memory georeferenced raster model and the IO used for
// metadata-preserving master outputs.
//
// A Dataset is a set of equally sized bands plus a CRS and an affine pixel to world transform.
// Upscale resamples every band, choosing nearest neighbour for categorical bands and bilinear
// interpolation otherwise, and optionally regrids onto a target grid that shares the source CRS.
//
// TIFF is the bundled IO implementation. Pixels live in a baseline TIFF file and the
// georeferencing, tags and band descriptions live in a YAML sidecar next to it.
package raster
