// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package raster

import (
	"strings"
)

var categoricalTokens = []string{
	"qa",
	"mask",
	"class",
	"label",
	"cloud",
	"flag",
	"scl",
}

// IsCategorical reports whether a band holds classes rather than measurements.
// Bands are categorical when their description or tags mention a categorical token, or when
// they are bool/uint8 and nothing mentions reflectance.
func IsCategorical(description string, tags map[string]string, dtype DType) bool {
	parts := make([]string, 0, 1+2*len(tags))

	if description != "" {
		parts = append(parts, strings.ToLower(description))
	}

	for k, v := range tags {
		parts = append(parts, strings.ToLower(k), strings.ToLower(v))
	}

	joined := strings.Join(parts, " ")

	for _, tok := range categoricalTokens {
		if strings.Contains(joined, tok) {
			return true
		}
	}

	switch DType(strings.ToLower(string(dtype))) {
	case Bool, Uint8:
		return !strings.Contains(joined, "reflectance")
	default:
		return false
	}
}

// MethodFor picks the resampling method for a band.
func MethodFor(b Band) Method {
	if IsCategorical(b.Description, b.Tags, b.DType) {
		return Nearest
	}

	return Bilinear
}
