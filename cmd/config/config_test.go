// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/upscaler/cmd/cmdstate"
	settings "github.com/matt-FFFFFF/upscaler/internal/config"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func runConfig(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	c := New()
	c.Writer = &out
	c.ErrWriter = &out

	err := c.Run(ctx, append([]string{"config"}, args...))

	return out.String(), err
}

func TestShow_PrintsEffectiveSettings(t *testing.T) {
	s := settings.Defaults()
	s.OutputDir = "/srv/upscaled"
	s.History = "/srv/history.db"

	ctx := cmdstate.WithSettingsFile(cmdstate.WithSettings(context.Background(), &s), "/etc/upscaler.yaml")

	out, err := runConfig(t, ctx)
	require.NoError(t, err)

	assert.Contains(t, out, "# Loaded from /etc/upscaler.yaml\n")

	var got settings.Settings
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, s, got)
}

func TestShow_DefaultsWithoutFile(t *testing.T) {
	out, err := runConfig(t, context.Background())
	require.NoError(t, err)

	assert.NotContains(t, out, "# Loaded from")
	assert.Contains(t, out, "output_dir: ./upscaled")
	assert.Contains(t, out, "log_format: pretty")
}

func TestInit(t *testing.T) {
	fs := afero.NewMemMapFs()
	stubs := gostub.Stub(&FS, fs)
	t.Cleanup(stubs.Reset)

	out, err := runConfig(t, context.Background(), "init", "conf/upscaler.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Settings written to conf/upscaler.yaml\n", out)

	b, err := afero.ReadFile(fs, "conf/upscaler.yaml")
	require.NoError(t, err)

	var got settings.Settings
	require.NoError(t, yaml.Unmarshal(b, &got))
	assert.Equal(t, settings.Defaults(), got)
}

func TestWriteDefaults_RefusesToOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "upscaler.yaml", []byte("report: false\n"), 0o644))

	err := WriteDefaults(fs, "upscaler.yaml", false)
	require.ErrorIs(t, err, ErrExists)

	b, err := afero.ReadFile(fs, "upscaler.yaml")
	require.NoError(t, err)
	assert.Equal(t, "report: false\n", string(b))

	require.NoError(t, WriteDefaults(fs, "upscaler.yaml", true))

	b, err = afero.ReadFile(fs, "upscaler.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(b), "report: true")
}

func TestInit_ExistingFileExits(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "upscaler.yaml", nil, 0o644))

	exitCode := -1
	stubs := gostub.Stub(&FS, fs).Stub(&cli.OsExiter, func(code int) { exitCode = code })
	t.Cleanup(stubs.Reset)

	_, err := runConfig(t, context.Background(), "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrExists.Error())
	assert.Equal(t, 1, exitCode)
}
