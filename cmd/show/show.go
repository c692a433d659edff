// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package show contains the show command, which prints a saved processing report.
package show

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/matt-FFFFFF/upscaler/internal/color"
	"github.com/matt-FFFFFF/upscaler/internal/report"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

const (
	fileArg     = "file"
	summaryFlag = "summary"
	cliExitStr  = ""
)

var (
	// ErrReadFile is returned when the report cannot be read.
	ErrReadFile = errors.New("failed to read report")
	// ErrWriteResults is returned when the report cannot be written out.
	ErrWriteResults = errors.New("failed to write report")
)

// FS is the filesystem reports are read from.
var FS afero.Fs = afero.NewOsFs()

// ShowCmd is the command that shows a processing report.
var ShowCmd = New()

// New builds the show command.
func New() *cli.Command {
	return &cli.Command{
		Name:        "show",
		Usage:       "Show a saved processing report",
		Description: "Print a report written by the run command, as colourised JSON or as a short summary.",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: fileArg,
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:     summaryFlag,
				Aliases:  []string{"s"},
				Usage:    "Print a short summary instead of the full report",
				OnlyOnce: true,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.StringArg(fileArg)
			if path == "" {
				return cli.Exit("Please specify the report file to show.", 1)
			}

			r, err := report.Read(FS, path)
			if err != nil {
				return cli.Exit(errors.Join(ErrReadFile, err).Error(), 1)
			}

			if cmd.Bool(summaryFlag) {
				err = WriteSummary(cmd.Writer, r)
			} else {
				err = WriteJSON(cmd.Writer, r)
			}

			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			return nil
		},
	}
}

// WriteJSON writes r as indented JSON, coloured when the terminal allows it.
func WriteJSON(w io.Writer, r report.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	f := colorjson.NewFormatter()
	f.Indent = 2
	f.DisabledColor = !color.Enabled()

	out, err := f.Marshal(obj)
	if err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	if _, err := fmt.Fprintln(w, string(out)); err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	return nil
}

// WriteSummary writes the model, scale, output format and duration of r.
func WriteSummary(w io.Writer, r report.Report) error {
	model := r.Model.Name
	if r.Model.Version != "" {
		model += " " + r.Model.Version
	}

	scale := "unset"
	if r.Settings.Scale != nil {
		scale = fmt.Sprintf("x%d", *r.Settings.Scale)
	}

	duration := time.Duration(r.Timings.DurationMS) * time.Millisecond

	_, err := fmt.Fprintf(w, "%s %s\n%s %s\n%s %s\n%s %s (%s to %s)\n",
		color.Colorize("Model:   ", color.Bold), model,
		color.Colorize("Scale:   ", color.Bold), scale,
		color.Colorize("Format:  ", color.Bold), r.Settings.OutputFormat,
		color.Colorize("Duration:", color.Bold), duration, r.Timings.StartedAt, r.Timings.CompletedAt,
	)
	if err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	return nil
}
