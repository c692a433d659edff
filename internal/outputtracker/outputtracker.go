// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package outputtracker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

const dirPerm = 0o755

// ErrEmptyPath is returned when OutputPath is called with an empty path.
var ErrEmptyPath = errors.New("output path must not be empty")

// Tracker records every path handed out under an output directory.
type Tracker struct {
	outputDir string
	fs        afero.Fs
	paths     []string
	created   []string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithFs sets the filesystem. The default is the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(t *Tracker) {
		t.fs = fs
	}
}

// New creates a tracker rooted at outputDir. Nothing is created on disk until OutputPath is called.
func New(outputDir string, opts ...Option) *Tracker {
	t := &Tracker{
		outputDir: filepath.Clean(outputDir),
		fs:        afero.NewOsFs(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// OutputDir returns the directory relative paths are resolved against.
func (t *Tracker) OutputDir() string {
	return t.outputDir
}

// Fs returns the filesystem the tracker operates on.
func (t *Tracker) Fs() afero.Fs {
	return t.fs
}

// OutputPath resolves p against the output directory (absolute paths are kept),
// creates its parent directories and registers it.
func (t *Tracker) OutputPath(p string) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}

	path := p
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.outputDir, path)
	}

	path = filepath.Clean(path)

	if err := t.mkdirParents(filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("creating parent directories for %s: %w", path, err)
	}

	t.paths = append(t.paths, path)

	return path, nil
}

// EnsureOutputDir creates the output directory, recording any directories it had to create.
func (t *Tracker) EnsureOutputDir() error {
	if err := t.mkdirParents(t.outputDir); err != nil {
		return fmt.Errorf("creating output directory %s: %w", t.outputDir, err)
	}

	return nil
}

// Paths returns a copy of the registered paths in claim order.
func (t *Tracker) Paths() []string {
	return slices.Clone(t.paths)
}

// Checkpoint returns a marker for Rollback.
func (t *Tracker) Checkpoint() int {
	return len(t.paths)
}

// Rollback removes the paths claimed since checkpoint and forgets them.
// Directories are left for Discard.
func (t *Tracker) Rollback(checkpoint int) error {
	if checkpoint < 0 || checkpoint >= len(t.paths) {
		return nil
	}

	err := t.remove(t.paths[checkpoint:])
	t.paths = t.paths[:checkpoint]

	return err
}

// Discard removes every registered path, deepest first, and then every directory the tracker
// created that is now empty. The output directory itself is removed if it ends up empty.
// Paths that no longer exist are ignored.
func (t *Tracker) Discard() error {
	var result *multierror.Error

	if err := t.remove(t.paths); err != nil {
		result = multierror.Append(result, err)
	}

	t.paths = nil

	dirs := slices.Clone(t.created)
	if !slices.Contains(dirs, t.outputDir) {
		dirs = append(dirs, t.outputDir)
	}

	sortDeepestFirst(dirs)

	for _, dir := range dirs {
		if err := t.removeIfEmpty(dir); err != nil {
			result = multierror.Append(result, err)
		}
	}

	t.created = nil

	return result.ErrorOrNil()
}

func (t *Tracker) remove(paths []string) error {
	var result *multierror.Error

	ordered := slices.Clone(paths)
	sortDeepestFirst(ordered)

	for _, p := range ordered {
		info, err := t.fs.Stat(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			result = multierror.Append(result, err)

			continue
		}

		if info.IsDir() {
			err = t.fs.RemoveAll(p)
		} else {
			err = t.fs.Remove(p)
		}

		if err != nil && !errors.Is(err, os.ErrNotExist) {
			result = multierror.Append(result, fmt.Errorf("removing %s: %w", p, err))
		}
	}

	return result.ErrorOrNil()
}

func (t *Tracker) removeIfEmpty(dir string) error {
	empty, err := afero.IsEmpty(t.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("checking %s: %w", dir, err)
	}

	if !empty {
		return nil
	}

	if err := t.fs.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing directory %s: %w", dir, err)
	}

	return nil
}

// mkdirParents creates dir and records each directory that did not exist before.
func (t *Tracker) mkdirParents(dir string) error {
	var missing []string

	for d := dir; ; d = filepath.Dir(d) {
		if ok, _ := afero.DirExists(t.fs, d); ok {
			break
		}

		missing = append(missing, d)

		if parent := filepath.Dir(d); parent == d {
			break
		}
	}

	if len(missing) == 0 {
		return nil
	}

	if err := t.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	for _, d := range missing {
		if !slices.Contains(t.created, d) {
			t.created = append(t.created, d)
		}
	}

	return nil
}

func depth(p string) int {
	return strings.Count(filepath.ToSlash(filepath.Clean(p)), "/")
}

func sortDeepestFirst(paths []string) {
	slices.SortStableFunc(paths, func(a, b string) int {
		return depth(b) - depth(a)
	})
}
