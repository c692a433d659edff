// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

const jpegQuality = 95

// ErrUnsupportedFormat is returned for file extensions the codec cannot handle.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Codec reads and writes display images.
type Codec interface {
	Decode(path string) (image.Image, error)
	Encode(path string, img image.Image) error
}

// Std is a Codec for PNG, JPEG, GIF, TIFF and BMP, chosen by file extension.
type Std struct {
	fs afero.Fs
}

var _ Codec = (*Std)(nil)

// NewStd returns a Std codec on fs. A nil fs means the OS filesystem.
func NewStd(fs afero.Fs) *Std {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Std{fs: fs}
}

type format int

const (
	formatUnknown format = iota
	formatPNG
	formatJPEG
	formatGIF
	formatTIFF
	formatBMP
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return formatPNG
	case ".jpg", ".jpeg":
		return formatJPEG
	case ".gif":
		return formatGIF
	case ".tif", ".tiff":
		return formatTIFF
	case ".bmp":
		return formatBMP
	default:
		return formatUnknown
	}
}

// Decode reads the image at path.
func (s *Std) Decode(path string) (image.Image, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	var img image.Image

	switch formatOf(path) {
	case formatPNG:
		img, err = png.Decode(f)
	case formatJPEG:
		img, err = jpeg.Decode(f)
	case formatGIF:
		img, err = gif.Decode(f)
	case formatTIFF:
		img, err = tiff.Decode(f)
	case formatBMP:
		img, err = bmp.Decode(f)
	default:
		img, _, err = image.Decode(f)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return img, nil
}

// Encode writes img to path in the format implied by its extension, creating parent directories.
func (s *Std) Encode(path string, img image.Image) error {
	fmtID := formatOf(path)
	if fmtID == formatUnknown {
		return fmt.Errorf("encode %s: %w", path, ErrUnsupportedFormat)
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	switch fmtID {
	case formatPNG:
		err = png.Encode(f, img)
	case formatJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	case formatGIF:
		err = gif.Encode(f, img, nil)
	case formatTIFF:
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	case formatBMP:
		err = bmp.Encode(f, img)
	}

	if err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	return nil
}
