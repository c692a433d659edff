// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package model

import (
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
)

const (
	defaultWeightsFile = "weights.bin"
	manifestFile       = "manifest.json"
	venvDir            = "venv"
)

// InstallPaths locates an installed model.
type InstallPaths struct {
	Root     string
	Weights  string
	Manifest string
	Venv     string
}

// Python returns the interpreter inside the model's virtual environment.
func (p InstallPaths) Python() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(p.Venv, "Scripts", "python.exe")
	}

	return filepath.Join(p.Venv, "bin", "python")
}

// ResolveInstallPaths returns where model name at version lives under cacheDir.
// An empty version means "latest" and an empty weightsFile means weights.bin.
func ResolveInstallPaths(cacheDir, name, version, weightsFile string) InstallPaths {
	if version == "" {
		version = "latest"
	}

	if weightsFile == "" {
		weightsFile = defaultWeightsFile
	}

	root := filepath.Join(cacheDir, Slugify(name), Slugify(version))

	return InstallPaths{
		Root:     root,
		Weights:  filepath.Join(root, weightsFile),
		Manifest: filepath.Join(root, manifestFile),
		Venv:     filepath.Join(root, venvDir),
	}
}

// Slugify lowercases s and collapses every run of non alphanumerics into one dash.
func Slugify(s string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}

		if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
			b.WriteByte('-')
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "model"
	}

	return slug
}
