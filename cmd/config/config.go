// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config contains the config command, which shows and creates settings files.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/upscaler/cmd/cmdstate"
	settings "github.com/matt-FFFFFF/upscaler/internal/config"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

const (
	pathArg    = "path"
	forceFlag  = "force"
	cliExitStr = ""
)

var (
	// ErrMarshal is returned when settings cannot be encoded as YAML.
	ErrMarshal = errors.New("failed to encode settings")
	// ErrExists is returned by init when the settings file exists and --force is not set.
	ErrExists = errors.New("settings file already exists")
	// ErrWrite is returned when the settings file cannot be written.
	ErrWrite = errors.New("failed to write settings file")
)

// FS is the filesystem init writes to.
var FS afero.Fs = afero.NewOsFs()

// ConfigCmd is the command that shows the effective settings.
var ConfigCmd = New()

// New builds the config command.
func New() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show the effective settings or create a settings file",
		Description: `Print the settings in effect after merging the defaults, the settings file and
UPSCALER_* environment variables, as YAML.`,
		Action: showAction,
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the default settings to a file",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:  pathArg,
						Value: settings.FileName + ".yaml",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:     forceFlag,
						Usage:    "Overwrite an existing file",
						OnlyOnce: true,
					},
				},
				Action: initAction,
			},
		},
	}
}

func showAction(ctx context.Context, cmd *cli.Command) error {
	b, err := Marshal(cmdstate.Settings(ctx))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if used := cmdstate.SettingsFile(ctx); used != "" {
		fmt.Fprintf(cmd.Writer, "# Loaded from %s\n", used) //nolint:errcheck
	}

	_, err = cmd.Writer.Write(b)

	return err
}

func initAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.StringArg(pathArg)

	if err := WriteDefaults(FS, path, cmd.Bool(forceFlag)); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Subcommands get their own default writers, so write through the root.
	fmt.Fprintf(cmd.Root().Writer, "Settings written to %s\n", path) //nolint:errcheck

	return nil
}

// Marshal encodes s as YAML.
func Marshal(s *settings.Settings) ([]byte, error) {
	b, err := yaml.Marshal(s)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}

	return b, nil
}

// WriteDefaults writes the default settings to path. An existing file is only replaced when
// force is set.
func WriteDefaults(fs afero.Fs, path string, force bool) error {
	if !force {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return errors.Join(ErrWrite, err)
		}

		if exists {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	def := settings.Defaults()

	b, err := Marshal(&def)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Join(ErrWrite, err)
		}
	}

	if err := afero.WriteFile(fs, path, b, 0o644); err != nil {
		return errors.Join(ErrWrite, err)
	}

	return nil
}
