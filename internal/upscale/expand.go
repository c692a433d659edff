// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package upscale

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// SupportedInputSuffixes lists the extensions picked up when expanding a directory.
var SupportedInputSuffixes = []string{".tif", ".tiff", ".jp2", ".png", ".jpg", ".jpeg"}

// IsSupportedInput reports whether path has a supported input extension.
func IsSupportedInput(path string) bool {
	return slices.Contains(SupportedInputSuffixes, strings.ToLower(filepath.Ext(path)))
}

// ExpandInputPaths replaces each directory in paths with the supported files below it,
// in lexical order. Files are kept as given. Results are absolute and free of duplicates.
func ExpandInputPaths(afs afero.Fs, paths []string) ([]string, error) {
	var (
		out  []string
		seen = make(map[string]struct{})
	)

	add := func(p string) error {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}

		if _, dup := seen[abs]; dup {
			return nil
		}

		seen[abs] = struct{}{}
		out = append(out, abs)

		return nil
	}

	for _, p := range paths {
		isDir, err := afero.IsDir(afs, p)
		if err != nil || !isDir {
			if err := add(p); err != nil {
				return nil, err
			}

			continue
		}

		var children []string

		err = afero.Walk(afs, p, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if info.Mode().IsRegular() && IsSupportedInput(path) {
				children = append(children, path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}

		slices.Sort(children)

		for _, c := range children {
			if err := add(c); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}
