// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package upscale

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

const (
	// FormatMatchInput keeps the input's format.
	FormatMatchInput = "Match input"
	// FormatGeoTIFF is the master format used when a visual format cannot carry geospatial metadata.
	FormatGeoTIFF = "GeoTIFF"
)

var (
	geospatialFormats = []string{"GEOTIFF", "TIFF", "TIF", "JP2", "JPEG2000"}
	ignoredFormats    = []string{"UNKNOWN", "NOT AN IMAGE"}

	canonicalFormats = map[string]string{
		"MATCH INPUT": FormatMatchInput,
		"GEOTIFF":     FormatGeoTIFF,
		"TIFF":        "TIFF",
		"TIF":         "TIF",
		"JP2":         "JP2",
		"JPEG2000":    "JPEG2000",
		"PNG":         "PNG",
		"JPEG":        "JPEG",
	}
)

// OutputPlan says which formats a request produces.
type OutputPlan struct {
	MasterFormat     string   `json:"master_format"`
	VisualFormat     string   `json:"visual_format,omitempty"`
	CriticalWarnings []string `json:"critical_warnings,omitempty"`
}

// BuildOutputPlan derives the plan for an input of inputFormat when requested is asked for.
// A geospatial input exported to a format that drops its metadata gets a GeoTIFF master,
// the requested format as the visual output and a critical warning.
func BuildOutputPlan(inputFormat, requested string) OutputPlan {
	req := NormalizeFormat(requested)
	if req == "" {
		req = "MATCH INPUT"
	}

	in := NormalizeFormat(inputFormat)

	if req == "MATCH INPUT" {
		if in != "" {
			return OutputPlan{MasterFormat: canonicalFormat(in)}
		}

		return OutputPlan{MasterFormat: FormatGeoTIFF}
	}

	if in != "" && PreservesMetadata(in) && !PreservesMetadata(req) {
		warning := fmt.Sprintf(
			"Critical warning: %s visual exports cannot preserve full geospatial metadata from %s inputs. "+
				"A %s master output will also be produced.",
			canonicalFormat(req), canonicalFormat(in), FormatGeoTIFF,
		)

		return OutputPlan{
			MasterFormat:     FormatGeoTIFF,
			VisualFormat:     canonicalFormat(req),
			CriticalWarnings: []string{warning},
		}
	}

	return OutputPlan{MasterFormat: canonicalFormat(req)}
}

// NormalizeFormat upper-cases a format label. JPG becomes JPEG; unknown markers become "".
func NormalizeFormat(label string) string {
	n := strings.ToUpper(strings.TrimSpace(label))
	if n == "" || slices.Contains(ignoredFormats, n) {
		return ""
	}

	if n == "JPG" {
		return "JPEG"
	}

	return n
}

// PreservesMetadata reports whether format can carry CRS, transform and band tags.
func PreservesMetadata(format string) bool {
	n := NormalizeFormat(format)
	return n != "" && slices.Contains(geospatialFormats, n)
}

// ExtensionForFormat returns the file extension for format. Unknown formats use .tif.
func ExtensionForFormat(format string) string {
	switch NormalizeFormat(format) {
	case "JP2", "JPEG2000":
		return ".jp2"
	case "PNG":
		return ".png"
	case "JPEG":
		return ".jpg"
	default:
		return ".tif"
	}
}

// FormatForPath guesses a file's format from its extension, or "" when unknown.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return FormatGeoTIFF
	case ".jp2":
		return "JP2"
	case ".png":
		return "PNG"
	case ".jpg", ".jpeg":
		return "JPEG"
	default:
		return ""
	}
}

// SanitizeTag lowercases tag, keeps letters and digits and turns every other run into one dash.
func SanitizeTag(tag string) string {
	var b strings.Builder

	dash := false

	for _, r := range strings.ToLower(strings.TrimSpace(tag)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)

			dash = false

			continue
		}

		if !dash {
			b.WriteByte('-')

			dash = true
		}
	}

	return strings.Trim(b.String(), "-")
}

// OutputName builds <stem>_x<scale>[_<tag>]_<role><ext> for input.
func OutputName(input string, scale int, format, role, tag string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	middle := ""
	if t := SanitizeTag(tag); t != "" {
		middle = "_" + t
	}

	return fmt.Sprintf("%s_x%d%s_%s%s", stem, scale, middle, role, ExtensionForFormat(format))
}

func canonicalFormat(normalized string) string {
	if c, ok := canonicalFormats[normalized]; ok {
		return c
	}

	return normalized
}

func withExt(path, ext string) string {
	if ext == "" {
		ext = ".bin"
	}

	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
