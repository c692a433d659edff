// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd contains the command-line interface (CLI) for the module.
package cmd

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/upscaler/cmd/cmdstate"
	"github.com/matt-FFFFFF/upscaler/cmd/config"
	"github.com/matt-FFFFFF/upscaler/cmd/history"
	"github.com/matt-FFFFFF/upscaler/cmd/run"
	"github.com/matt-FFFFFF/upscaler/cmd/show"
	"github.com/matt-FFFFFF/upscaler/cmd/watch"
	"github.com/matt-FFFFFF/upscaler/internal/color"
	settings "github.com/matt-FFFFFF/upscaler/internal/config"
	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/urfave/cli/v3"
)

const (
	configFlag  = "config"
	noColorFlag = "no-color"
)

// RootCmd is the root command for the CLI.
var RootCmd = &cli.Command{
	Commands: []*cli.Command{
		config.ConfigCmd,
		history.HistoryCmd,
		run.RunCmd,
		show.ShowCmd,
		watch.WatchCmd,
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:      configFlag,
			Aliases:   []string{"c"},
			Usage:     "Read settings from this file instead of searching for upscaler.yaml",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.BoolFlag{
			Name:     noColorFlag,
			Usage:    "Disable coloured output, same as setting NO_COLOR",
			OnlyOnce: true,
		},
	},
	Before:    loadSettings,
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "upscaler",
	Description: `Upscaler enlarges raster images, preserving geospatial metadata where the
output format allows it. Batches of requests are defined in YAML or HCL files and run
as queued jobs with progress reporting, cooperative cancellation and a processing report.
When a preferred method fails, a simpler one takes over and the fallback is noted.`,
	Usage:     "upscaler run -f batch.yaml",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

// loadSettings reads the application settings and configures logging from them.
func loadSettings(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool(noColorFlag) {
		color.SetEnabled(false)
	}

	var opts []settings.Option
	if f := cmd.String(configFlag); f != "" {
		opts = append(opts, settings.WithFile(f))
	}

	s, used, err := settings.Load(opts...)
	if err != nil {
		return ctx, cli.Exit(err.Error(), 1)
	}

	ctxlog.LevelVar.Set(ctxlog.ParseLevel(s.LogLevel))

	logger := ctxlog.ForFormat(s.LogFormat, cmd.Root().ErrWriter)
	if used != "" {
		logger.Debug("Loaded settings", "file", used)
	}

	ctx = ctxlog.New(ctx, logger)
	ctx = cmdstate.WithSettingsFile(ctx, used)

	return cmdstate.WithSettings(ctx, s), nil
}
