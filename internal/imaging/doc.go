// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package imaging decodes, resizes and encodes display images, and turns raster bands into 8-bit RGB.
package imaging
