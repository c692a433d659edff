// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package history

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/upscaler/cmd/cmdstate"
	"github.com/matt-FFFFFF/upscaler/internal/color"
	"github.com/matt-FFFFFF/upscaler/internal/config"
	jobhistory "github.com/matt-FFFFFF/upscaler/internal/history"
	"github.com/matt-FFFFFF/upscaler/internal/job"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func seed(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := job.ClockFunc(func() time.Time {
		now = now.Add(time.Second)
		return now
	})

	store, err := jobhistory.Open(ctx, path, jobhistory.WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, store.Queued(ctx, "11111111-aaaa", "nightly", 2))
	require.NoError(t, store.Started(ctx, "11111111-aaaa"))
	require.NoError(t, store.Finished(ctx, "11111111-aaaa", job.Result{CompletedUnits: 2, TotalUnits: 2}, nil))

	require.NoError(t, store.Queued(ctx, "22222222-bbbb", "weekly", 3))
	require.NoError(t, store.Started(ctx, "22222222-bbbb"))
	require.NoError(t, store.Finished(ctx, "22222222-bbbb", job.Result{}, errors.New("model crashed")))

	require.NoError(t, store.Close())

	return path
}

func runHistory(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	color.SetEnabled(false)

	var out bytes.Buffer

	c := New()
	c.Writer = &out
	c.ErrWriter = &out

	err := c.Run(ctx, append([]string{"history"}, args...))

	return out.String(), err
}

func TestList(t *testing.T) {
	path := seed(t)

	out, err := runHistory(t, context.Background(), "--db", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "22222222")
	assert.NotContains(t, lines[1], "22222222-bbbb")
	assert.Contains(t, lines[1], "failed")
	assert.Contains(t, lines[1], "0/3")
	assert.Contains(t, lines[2], "model crashed")
	assert.Contains(t, lines[3], "completed")
	assert.Contains(t, lines[3], "2/2")
	assert.Contains(t, lines[3], "nightly")
}

func TestList_LimitAndSettings(t *testing.T) {
	path := seed(t)

	s := config.Defaults()
	s.History = path
	ctx := cmdstate.WithSettings(context.Background(), &s)

	out, err := runHistory(t, ctx, "-n", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "weekly")
	assert.NotContains(t, out, "nightly")
}

func TestShowRecord(t *testing.T) {
	path := seed(t)

	out, err := runHistory(t, context.Background(), "--db", path, "show", "11111111-aaaa")
	require.NoError(t, err)

	var rec jobhistory.Record
	require.NoError(t, yaml.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "nightly", rec.Description)
	assert.Equal(t, jobhistory.StatusCompleted, rec.Status)
	assert.Equal(t, 2, rec.CompletedUnits)
}

func TestDisabledExits(t *testing.T) {
	exitCode := -1
	stubs := gostub.Stub(&cli.OsExiter, func(code int) { exitCode = code })
	t.Cleanup(stubs.Reset)

	_, err := runHistory(t, context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrDisabled.Error())
	assert.Equal(t, 1, exitCode)
}

func TestWriteTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, nil))
	assert.Equal(t, "No jobs recorded.\n", buf.String())
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "12345678", shortID("12345678-90ab"))
}
