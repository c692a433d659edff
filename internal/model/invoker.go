// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/linetail"
	"github.com/spf13/afero"
)

const (
	maxOutputSize      = 64 * 1024 // bytes of model output kept for logging
	maxErrorLineLength = 200
)

var (
	// ErrInferenceFailed is returned when the model process fails.
	ErrInferenceFailed = errors.New("model inference failed")
	// ErrEntrypointMissing is returned when a script entrypoint does not exist.
	ErrEntrypointMissing = errors.New("model entrypoint missing")
	// ErrWeightsMissing is returned when the model weights are not installed.
	ErrWeightsMissing = errors.New("model weights missing")
	// ErrNotInstalled is returned when the manifest or virtual environment is missing.
	ErrNotInstalled = errors.New("model not installed")
	// ErrInputMissing is returned when the input image does not exist.
	ErrInputMissing = errors.New("model input missing")
)

// Invocation is one request to run a model on one image.
type Invocation struct {
	Model     string
	Version   string
	CacheDir  string
	Input     string
	Output    string
	Scale     int
	Tiling    string
	Precision string
	Compute   string
	ExtraArgs []string
	Env       map[string]string
}

// Invoker runs a model. A nil error does not guarantee that the output exists.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) error
}

// RunFunc executes a command with the given environment and returns its combined output.
type RunFunc func(ctx context.Context, name string, args, env []string) ([]byte, error)

// Package level collaborators, replaced in tests.
var (
	// LookPath finds executables on PATH.
	LookPath = exec.LookPath
	// Run executes model and probe commands.
	Run RunFunc = runCommand
)

// CommandInvoker runs registered models as external Python processes.
type CommandInvoker struct {
	registry *Registry
	cacheDir string
	fs       afero.Fs
	logger   *slog.Logger
	env      []string
}

// Option configures a CommandInvoker.
type Option func(*CommandInvoker)

// WithCacheDir sets the default model cache directory, used when an invocation has none.
func WithCacheDir(dir string) Option {
	return func(c *CommandInvoker) {
		c.cacheDir = dir
	}
}

// WithFs sets the filesystem used for existence checks.
func WithFs(fs afero.Fs) Option {
	return func(c *CommandInvoker) {
		c.fs = fs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CommandInvoker) {
		c.logger = logger
	}
}

// WithEnv sets the base environment. It defaults to os.Environ().
func WithEnv(env []string) Option {
	return func(c *CommandInvoker) {
		c.env = env
	}
}

// NewCommandInvoker creates an invoker for the models in registry.
func NewCommandInvoker(registry *Registry, opts ...Option) *CommandInvoker {
	c := &CommandInvoker{
		registry: registry,
		fs:       afero.NewOsFs(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.env == nil {
		c.env = os.Environ()
	}

	c.logger = ctxlog.OrDiscard(c.logger)

	return c
}

// Invoke implements Invoker.
func (c *CommandInvoker) Invoke(ctx context.Context, inv Invocation) error {
	entry, ok := c.registry.Lookup(inv.Model)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, inv.Model)
	}

	version := inv.Version
	if version == "" {
		version = entry.Version
	}

	cacheDir := inv.CacheDir
	if cacheDir == "" {
		cacheDir = c.cacheDir
	}

	paths := ResolveInstallPaths(cacheDir, entry.Name, version, entry.WeightsFile)

	if !c.isFile(inv.Input) {
		return fmt.Errorf("%w: %s", ErrInputMissing, inv.Input)
	}

	if !c.isFile(paths.Weights) {
		return fmt.Errorf("%w: %s", ErrWeightsMissing, paths.Weights)
	}

	if !c.isFile(paths.Manifest) || !c.isFile(filepath.Join(paths.Venv, "pyvenv.cfg")) {
		return fmt.Errorf("%w: %s", ErrNotInstalled, paths.Root)
	}

	entrypoint := entry.Entrypoint
	if isScriptEntrypoint(entrypoint) {
		if !filepath.IsAbs(entrypoint) {
			entrypoint = filepath.Join(paths.Root, entrypoint)
		}

		if !c.isFile(entrypoint) {
			return fmt.Errorf("%w: %s", ErrEntrypointMissing, entrypoint)
		}
	}

	if err := c.fs.MkdirAll(filepath.Dir(inv.Output), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	env := MergeEnv(MergeEnv(c.env, entry.Env), inv.Env)
	inv.Compute = EffectiveCompute(ctx, inv.Compute, env)

	args := BuildArgs(entrypoint, paths.Weights, inv)
	python := paths.Python()

	ctxlog.Event(ctx, c.logger, slog.LevelDebug, "model_invoke", "Running model",
		"model", entry.Name,
		"version", version,
		"python", python,
		"args", args,
	)

	out, err := Run(ctx, python, args, env)
	if err != nil {
		ctxlog.Event(ctx, c.logger, slog.LevelWarn, "model_failed", "Model inference failed",
			"model", entry.Name,
			"error", err.Error(),
			"output", tail(out),
		)

		return errors.Join(fmt.Errorf("%w: %s", ErrInferenceFailed, entry.Name), err)
	}

	return nil
}

func (c *CommandInvoker) isFile(path string) bool {
	info, err := c.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// BuildArgs builds the interpreter arguments for inv. Script entrypoints are run directly,
// anything else as a module with -m.
func BuildArgs(entrypoint, weights string, inv Invocation) []string {
	var args []string

	if isScriptEntrypoint(entrypoint) {
		args = append(args, entrypoint)
	} else {
		args = append(args, "-m", entrypoint)
	}

	args = append(args,
		"--weights", weights,
		"--input", inv.Input,
		"--output", inv.Output,
	)

	if inv.Scale > 0 {
		args = append(args, "--scale", strconv.Itoa(inv.Scale))
	}

	if inv.Tiling != "" {
		args = append(args, "--tiling", inv.Tiling)
	}

	if inv.Precision != "" {
		args = append(args, "--precision", inv.Precision)
	}

	if inv.Compute != "" {
		args = append(args, "--compute", inv.Compute)
	}

	return append(args, inv.ExtraArgs...)
}

// MergeEnv overlays extra onto base, a list of KEY=VALUE pairs.
func MergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(extra))

	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[k]; overridden {
			continue
		}

		out = append(out, kv)
	}

	for k, v := range extra {
		out = append(out, k+"="+v)
	}

	return out
}

func isScriptEntrypoint(entrypoint string) bool {
	return strings.HasSuffix(entrypoint, ".py") || strings.ContainsAny(entrypoint, `/\`)
}

func runCommand(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env

	out := linetail.New(maxOutputSize)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		if last := out.LastLine(maxErrorLineLength); last != "" {
			err = fmt.Errorf("%w: %s", err, last)
		}

		return out.Bytes(), err
	}

	return out.Bytes(), nil
}

func tail(out []byte) string {
	const keep = 2048

	if len(out) > keep {
		out = out[len(out)-keep:]
	}

	return strings.TrimSpace(string(out))
}
