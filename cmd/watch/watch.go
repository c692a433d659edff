// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package watch contains the watch command, which upscales images as they arrive in a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/matt-FFFFFF/upscaler/cmd/cmdstate"
	"github.com/matt-FFFFFF/upscaler/cmd/run"
	"github.com/matt-FFFFFF/upscaler/internal/app"
	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/progress"
	"github.com/matt-FFFFFF/upscaler/internal/upscale"
	"github.com/urfave/cli/v3"
)

const (
	dirArg         = "dir"
	outFlag        = "out"
	scaleFlag      = "scale"
	formatFlag     = "format"
	modelFlag      = "model"
	tagFlag        = "tag"
	cliExitStr     = ""
	reporterBuffer = 64
)

// ErrWatch is returned when the directory cannot be watched.
var ErrWatch = errors.New("failed to watch directory")

var (
	// PollInterval is how often settled files are submitted and the interrupt is checked.
	PollInterval = 200 * time.Millisecond
	// SettleTime is how long a file must go without writes before it is submitted.
	SettleTime = 500 * time.Millisecond
)

// AppOptions are added to the App the command builds.
var AppOptions []app.Option

// WatchCmd is the command that watches a directory for new images.
var WatchCmd = New()

// New builds the watch command.
func New() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Upscale images as they are added to a directory",
		Description: `Watch a directory and queue every supported image written to it as its own job.
A file is picked up once it has not been written to for a short while.

Stop watching with an interrupt. Jobs still running are cancelled and their outputs removed.
`,
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: dirArg,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      outFlag,
				Aliases:   []string{"o"},
				Usage:     "Write outputs to this directory instead of the configured one",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.IntFlag{
				Name:     scaleFlag,
				Aliases:  []string{"s"},
				Usage:    "Upscale factor",
				Value:    2,
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     formatFlag,
				Usage:    "Output format, for example PNG or GeoTIFF. Defaults to the input's format",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     modelFlag,
				Usage:    "Name of an installed model to upscale with",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     tagFlag,
				Usage:    "Tag added to output file names",
				OnlyOnce: true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	dir := cmd.StringArg(dirArg)
	if dir == "" {
		logger.Error("Please specify the directory to watch.")
		return cli.Exit(cliExitStr, 1)
	}

	if cmd.Int(scaleFlag) <= 0 {
		logger.Error("The scale must be a positive integer.", "scale", cmd.Int(scaleFlag))
		return cli.Exit(cliExitStr, 1)
	}

	settings := cmdstate.Settings(ctx)
	interrupt := cmdstate.Interrupt(ctx)

	outDir := cmd.String(outFlag)
	if outDir == "" {
		outDir = settings.OutputDir
	}

	reporter := progress.NewChannelReporter(ctx, reporterBuffer)
	reporter.Listen(progress.NewPrinter(cmd.Writer))

	defer reporter.Close()

	opts := append([]app.Option{
		app.WithLogger(logger),
		app.WithObserver(progress.NewQueueObserver(reporter, nil)),
	}, AppOptions...)

	a, err := app.New(ctx, settings, opts...)
	if err != nil {
		return run.Fail(cmd.ErrWriter, err)
	}

	submit := func(path string) {
		req := Request(path, cmd.Int(scaleFlag), cmd.String(formatFlag), cmd.String(modelFlag), cmd.String(tagFlag))
		run.PrintWarnings(cmd.ErrWriter, []upscale.Request{req})

		label := filepath.Base(path)

		_, err := a.Submit(app.Batch{
			Description: label,
			Requests:    []upscale.Request{req},
			OutputDir:   outDir,
			Cancel:      interrupt,
			OnProgress:  progress.ProgressFunc(reporter, label),
			OnArtifact:  progress.ArtifactFunc(reporter, label),
		})
		if err != nil {
			logger.Error("Failed to queue file", "path", path, "error", err.Error())
		}
	}

	fmt.Fprintf(cmd.Writer, "Watching %s, press Ctrl+C to stop\n", dir) //nolint:errcheck

	err = Loop(ctx, dir, outDir, interrupt, submit, logger)

	// Anything still queued sees the interrupt and is discarded.
	interrupt.Cancel()

	if closeErr := a.Close(); closeErr != nil {
		logger.Warn("Failed to close job history", "error", closeErr.Error())
	}

	reporter.Close()

	if err != nil {
		return run.Fail(cmd.ErrWriter, err)
	}

	return nil
}

// Request builds the single request a watched file becomes.
func Request(path string, scale int, format, model, tag string) upscale.Request {
	return upscale.Request{
		InputPath: path,
		Plan:      upscale.BuildOutputPlan(upscale.FormatForPath(path), format),
		Scale:     scale,
		ModelName: model,
		OutputTag: tag,
	}
}

// Loop watches dir until ctx is done or interrupt is cancelled. Each supported file created
// or written in dir is passed to submit once it has settled. Files in outDir are ignored.
func Loop(
	ctx context.Context,
	dir, outDir string,
	interrupt cancellation.Signal,
	submit func(path string),
	logger *slog.Logger,
) error {
	logger = ctxlog.OrDiscard(logger)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return errors.Join(ErrWatch, err)
	}

	absOut := ""
	if outDir != "" {
		if absOut, err = filepath.Abs(outDir); err != nil {
			return errors.Join(ErrWatch, err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Join(ErrWatch, err)
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(absDir); err != nil {
		return errors.Join(ErrWatch, fmt.Errorf("%s: %w", absDir, err))
	}

	ctxlog.Event(ctx, logger, slog.LevelInfo, "watch.started", "Watching directory", "dir", absDir)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	submitted := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			path := filepath.Clean(ev.Name)
			if !upscale.IsSupportedInput(path) || filepath.Dir(path) == absOut {
				continue
			}

			if _, done := submitted[path]; done {
				continue
			}

			pending[path] = time.Now()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			logger.Warn("Watcher error", "error", err.Error())

		case now := <-ticker.C:
			if cancellation.Observe(interrupt) {
				return nil
			}

			for _, path := range settled(pending, now) {
				delete(pending, path)
				submitted[path] = struct{}{}

				ctxlog.Event(ctx, logger, slog.LevelDebug, "watch.submit", "Queueing file", "path", path)
				submit(path)
			}
		}
	}
}

func settled(pending map[string]time.Time, now time.Time) []string {
	var out []string

	for path, last := range pending {
		if now.Sub(last) >= SettleTime {
			out = append(out, path)
		}
	}

	slices.Sort(out)

	return out
}
