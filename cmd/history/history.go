// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package history contains the history command, which lists jobs recorded by earlier runs.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/upscaler/cmd/cmdstate"
	"github.com/matt-FFFFFF/upscaler/internal/color"
	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	jobhistory "github.com/matt-FFFFFF/upscaler/internal/history"
	"github.com/urfave/cli/v3"
)

const (
	dbFlag     = "db"
	limitFlag  = "limit"
	idArg      = "id"
	cliExitStr = ""
	idWidth    = 8
	timeLayout = "2006-01-02 15:04:05"
)

// ErrDisabled is returned when no history database is configured.
var ErrDisabled = errors.New("job history is disabled, set history in the settings or pass --db")

// HistoryCmd is the command that lists recorded jobs.
var HistoryCmd = New()

// New builds the history command.
func New() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List jobs recorded in the history database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      dbFlag,
				Usage:     "Read this SQLite database instead of the configured one",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.IntFlag{
				Name:     limitFlag,
				Aliases:  []string{"n"},
				Usage:    "Show at most this many jobs, most recent first. 0 shows all",
				Value:    20,
				OnlyOnce: true,
			},
		},
		Action: listAction,
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show one recorded job as YAML",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: idArg,
					},
				},
				Action: showAction,
			},
		},
	}
}

func open(ctx context.Context, cmd *cli.Command) (*jobhistory.Store, error) {
	path := cmd.String(dbFlag)
	if path == "" {
		path = cmdstate.Settings(ctx).History
	}

	if path == "" {
		return nil, ErrDisabled
	}

	return jobhistory.Open(ctx, path, jobhistory.WithLogger(ctxlog.Logger(ctx)))
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	store, err := open(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer store.Close() //nolint:errcheck

	recs, err := store.List(ctx, cmd.Int(limitFlag))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return WriteTable(cmd.Writer, recs)
}

func showAction(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg(idArg)
	if id == "" {
		return cli.Exit("Please specify the job id to show.", 1)
	}

	store, err := open(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer store.Close() //nolint:errcheck

	rec, err := store.Get(ctx, id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	b, err := yaml.Marshal(rec)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	_, err = cmd.Root().Writer.Write(b)

	return err
}

// WriteTable writes one line per record: short id, status, units, queue time and description.
func WriteTable(w io.Writer, recs []jobhistory.Record) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No jobs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tSTATUS\tUNITS\tQUEUED\tDESCRIPTION") //nolint:errcheck

	for _, r := range recs {
		line := []string{
			shortID(r.ID),
			color.Status(string(r.Status)),
			fmt.Sprintf("%d/%d", r.CompletedUnits, r.TotalUnits),
			r.QueuedAt.In(time.Local).Format(timeLayout),
			r.Description,
		}

		fmt.Fprintln(tw, strings.Join(line, "\t")) //nolint:errcheck

		if r.Error != "" {
			fmt.Fprintf(tw, "\t\t\t\t%s\n", color.Colorize(r.Error, color.Faint)) //nolint:errcheck
		}
	}

	return tw.Flush()
}

func shortID(id string) string {
	if len(id) <= idWidth {
		return id
	}

	return id[:idWidth]
}
