// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run contains the run command, which processes a batch file.
package run

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/matt-FFFFFF/upscaler/cmd/cmdstate"
	"github.com/matt-FFFFFF/upscaler/internal/app"
	"github.com/matt-FFFFFF/upscaler/internal/batchfile"
	"github.com/matt-FFFFFF/upscaler/internal/color"
	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/progress"
	"github.com/matt-FFFFFF/upscaler/internal/upscale"
	"github.com/matt-FFFFFF/upscaler/internal/userfacing"
	"github.com/urfave/cli/v3"
)

const (
	fileFlag       = "file"
	outFlag        = "out"
	reportFlag     = "report"
	noReportFlag   = "no-report"
	historyFlag    = "history"
	cliExitStr     = ""
	reportFileName = "report.json"
	reporterBuffer = 64
)

// AppOptions are added to every App the command builds.
var AppOptions []app.Option

// RunCmd is the command that runs the requests of a batch file as one job.
var RunCmd = New()

// New builds the run command.
func New() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Upscale the requests of a batch file",
		Description: `Run every request in a YAML or HCL batch file as a single queued job.
Progress, the outputs of each request and any fallback notes are printed as the job runs.

The first interrupt stops the job after the current request and removes everything
it wrote. A second interrupt terminates immediately.

Batch file URLs use Hashicorp's go-getter syntax, which allows for fetching files from various sources.
See https://github.com/hashicorp/go-getter.
`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     fileFlag,
				Aliases:  []string{"f"},
				Usage:    "Specify the URL of the batch file to run. Supports Hashicorp's go-getter syntax.",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:      outFlag,
				Aliases:   []string{"o"},
				Usage:     "Write outputs to this directory, overriding the batch file and settings",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.StringFlag{
				Name:      reportFlag,
				Usage:     "Write the processing report to this file",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.BoolFlag{
				Name:        noReportFlag,
				Usage:       "Do not write a processing report",
				Value:       false,
				DefaultText: "false",
				OnlyOnce:    true,
			},
			&cli.StringFlag{
				Name:      historyFlag,
				Usage:     "Record the job in this SQLite database",
				TakesFile: true,
				OnlyOnce:  true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("Running run command")

	settings := *cmdstate.Settings(ctx)
	if h := cmd.String(historyFlag); h != "" {
		settings.History = h
	}

	url := cmd.String(fileFlag)
	if url == "" {
		logger.Error("Please specify the batch file using the --file or -f flag.")
		return cli.Exit(cliExitStr, 1)
	}

	def, baseDir, err := batchfile.Load(ctx, url)
	if err != nil {
		return Fail(cmd.ErrWriter, err)
	}

	requests, err := def.Resolve(baseDir)
	if err != nil {
		return Fail(cmd.ErrWriter, err)
	}

	outDir := OutputDir(cmd.String(outFlag), def.OutputDir, baseDir, settings.OutputDir)

	reportPath := ""
	if !cmd.Bool(noReportFlag) {
		reportPath = ReportPath(cmd.String(reportFlag), def.Report, baseDir, outDir, settings.Report)
	}

	PrintWarnings(cmd.ErrWriter, requests)

	label := def.Name
	if label == "" {
		label = filepath.Base(url)
	}

	reporter := progress.NewChannelReporter(ctx, reporterBuffer)
	reporter.Listen(progress.NewPrinter(cmd.Writer))

	defer reporter.Close()

	opts := append([]app.Option{
		app.WithLogger(logger),
		app.WithObserver(progress.NewQueueObserver(reporter, nil)),
	}, AppOptions...)

	a, err := app.New(ctx, &settings, opts...)
	if err != nil {
		return Fail(cmd.ErrWriter, err)
	}

	sub, err := a.Submit(app.Batch{
		Description:  label,
		Requests:     requests,
		OutputDir:    outDir,
		ReportPath:   reportPath,
		OutputFormat: requestedFormat(def),
		Cancel:       cmdstate.Interrupt(ctx),
		OnProgress:   progress.ProgressFunc(reporter, label),
		OnArtifact:   progress.ArtifactFunc(reporter, label),
	})
	if err != nil {
		a.Close() //nolint:errcheck
		return Fail(cmd.ErrWriter, err)
	}

	_, _, err = sub.Wait(ctx)

	select {
	case <-sub.Done():
	default:
		// Stopped waiting early; the batch must not keep running while Close drains the queue.
		a.Cancel(sub)
	}

	// Closing the app waits for the queue, so the final lifecycle event is reported.
	if closeErr := a.Close(); closeErr != nil {
		logger.Warn("Failed to close job history", "error", closeErr.Error())
	}

	reporter.Close()

	if err != nil {
		return Fail(cmd.ErrWriter, err)
	}

	if reportPath != "" {
		fmt.Fprintf(cmd.Writer, "Report written to %s\n", reportPath) //nolint:errcheck
	}

	return nil
}

// Fail prints err for the user, followed by its details, and returns the exit error for the command.
func Fail(w io.Writer, err error) error {
	fmt.Fprintln(w, color.Colorize(userfacing.From(err).String(), color.FgRed)) //nolint:errcheck
	fmt.Fprintln(w, color.Colorize("Details: "+err.Error(), color.Faint))       //nolint:errcheck
	return cli.Exit(cliExitStr, 1)
}

// OutputDir picks the output directory: the flag, then the batch file's (relative to baseDir),
// then the settings.
func OutputDir(flag, fromBatch, baseDir, fromSettings string) string {
	switch {
	case flag != "":
		return flag
	case fromBatch != "":
		return relativeTo(baseDir, fromBatch)
	default:
		return fromSettings
	}
}

// ReportPath picks the report file: the flag, then the batch file's (relative to baseDir),
// then report.json in outDir when reports are enabled. "" means no report.
func ReportPath(flag, fromBatch, baseDir, outDir string, enabled bool) string {
	switch {
	case flag != "":
		return flag
	case fromBatch != "":
		return relativeTo(baseDir, fromBatch)
	case enabled:
		return filepath.Join(outDir, reportFileName)
	default:
		return ""
	}
}

// PrintWarnings writes each distinct critical warning of requests to w.
func PrintWarnings(w io.Writer, requests []upscale.Request) {
	var seen []string

	for _, r := range requests {
		for _, warning := range r.Plan.CriticalWarnings {
			if slices.Contains(seen, warning) {
				continue
			}

			seen = append(seen, warning)
			fmt.Fprintln(w, color.Colorize(warning, color.FgYellow, color.Bold)) //nolint:errcheck
		}
	}
}

func relativeTo(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}

	return filepath.Join(baseDir, path)
}

func requestedFormat(def *batchfile.Definition) string {
	for _, r := range def.Requests {
		if r.OutputFormat != "" {
			return r.OutputFormat
		}
	}

	return ""
}
