// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package model

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

// UnknownVersion is reported when a model version cannot be resolved.
const UnknownVersion = "Unknown"

// ErrUnknownModel is returned when a model is not in the registry.
var ErrUnknownModel = errors.New("model is not registered")

// Entry describes one model.
type Entry struct {
	Name           string            `yaml:"name"`
	Version        string            `yaml:"version,omitempty"`
	Entrypoint     string            `yaml:"entrypoint"`
	WeightsURL     string            `yaml:"weights_url,omitempty"`
	WeightsFile    string            `yaml:"weights_file,omitempty"`
	BandsSupported []string          `yaml:"bands_supported,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
}

// Registry is the set of known models.
type Registry struct {
	entries []Entry
}

// NewRegistry builds a registry from entries. Later entries do not override earlier ones.
func NewRegistry(entries ...Entry) *Registry {
	return &Registry{entries: entries}
}

// LoadRegistry reads a YAML list of entries. A missing file yields an empty registry.
func LoadRegistry(fs afero.Fs, path string) (*Registry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if ok, _ := afero.Exists(fs, path); !ok {
			return NewRegistry(), nil
		}

		return nil, fmt.Errorf("reading model registry %s: %w", path, err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing model registry %s: %w", path, err)
	}

	return NewRegistry(entries...), nil
}

// Lookup returns the entry called name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}

	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}

	return Entry{}, false
}

// Entries returns all entries.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}

	return append([]Entry(nil), r.entries...)
}

// ResolveVersion derives a model's version from its weights URL, or UnknownVersion.
func (r *Registry) ResolveVersion(name string) string {
	e, ok := r.Lookup(name)
	if !ok {
		return UnknownVersion
	}

	if v := VersionFromURL(e.WeightsURL); v != "" {
		return v
	}

	return UnknownVersion
}

var (
	releaseTagRe = regexp.MustCompile(`/download/(v[^/]+)/`)
	semverRe     = regexp.MustCompile(`\bv\d+\.\d+(?:\.\d+)?\b`)
)

// VersionFromURL extracts a version such as v0.2.5 from a release download URL.
func VersionFromURL(url string) string {
	if url == "" {
		return ""
	}

	if m := releaseTagRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}

	return semverRe.FindString(url)
}
