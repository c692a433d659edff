// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package job

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func collect(events *[]Progress) ProgressFunc {
	return func(p Progress) {
		*events = append(*events, p)
	}
}

func TestRun_EmitsOneProgressPerUnit(t *testing.T) {
	for _, n := range []int{1, 2, 5, 17} {
		var events []Progress

		r := NewRunner()
		res, err := r.Run(context.Background(), Job{ID: "j", TotalUnits: n, Work: func(context.Context, int) error { return nil }}, collect(&events))
		require.NoError(t, err)
		require.Len(t, events, n)

		for i, p := range events {
			assert.Equal(t, i+1, p.CompletedUnits)
			assert.Equal(t, n, p.TotalUnits)
			require.NotNil(t, p.ETA)
		}

		last := events[n-1]
		assert.InDelta(t, 1.0, last.Progress, 0)
		assert.Equal(t, time.Duration(0), *last.ETA)
		assert.Equal(t, n, res.CompletedUnits)
		assert.Equal(t, "j", res.JobID)
	}
}

func TestRun_ETAUsesAverageUnitDuration(t *testing.T) {
	clock := newManualClock()
	durations := []time.Duration{2 * time.Second, 4 * time.Second, 3 * time.Second, time.Second}

	var events []Progress

	r := NewRunner(WithClock(clock))
	res, err := r.Run(context.Background(), Job{
		ID:         "eta",
		TotalUnits: len(durations),
		Work: func(_ context.Context, i int) error {
			clock.Advance(durations[i])
			return nil
		},
	}, collect(&events))
	require.NoError(t, err)

	want := []time.Duration{6 * time.Second, 6 * time.Second, 3 * time.Second, 0}
	for i, p := range events {
		assert.Equal(t, want[i], *p.ETA, "unit %d", i)
	}

	assert.Equal(t, 10*time.Second, res.Duration)
	assert.Equal(t, int64(10000), res.DurationMS())

	secs, ok := events[0].ETASeconds()
	assert.True(t, ok)
	assert.InDelta(t, 6.0, secs, 1e-9)
}

func TestRun_SingleUnitReportsZeroETA(t *testing.T) {
	clock := newManualClock()

	var events []Progress

	_, err := NewRunner(WithClock(clock)).Run(context.Background(), Job{
		ID:         "one",
		TotalUnits: 1,
		Work: func(context.Context, int) error {
			clock.Advance(time.Minute)
			return nil
		},
	}, collect(&events))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Duration(0), *events[0].ETA)
}

func TestRun_InvalidTotalUnits(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		called := false
		_, err := NewRunner().Run(context.Background(), Job{ID: "bad", TotalUnits: n, Work: func(context.Context, int) error {
			called = true
			return nil
		}}, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTotalUnits)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.False(t, called)
	}
}

var errUnit = errors.New("value error")

func TestRun_UnitErrorPropagatesWithoutRetry(t *testing.T) {
	var calls []int

	var events []Progress

	_, err := NewRunner().Run(context.Background(), Job{
		ID:         "fail",
		TotalUnits: 3,
		Work: func(_ context.Context, i int) error {
			calls = append(calls, i)
			if i == 1 {
				return errUnit
			}

			return nil
		},
	}, collect(&events))

	require.Error(t, err)
	assert.ErrorIs(t, err, errUnit)
	assert.Contains(t, err.Error(), `job "fail"`)
	assert.Equal(t, []int{0, 1}, calls)
	assert.Len(t, events, 1)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	_, err := NewRunner().Run(context.Background(), Job{
		ID:         "panic",
		TotalUnits: 2,
		Work: func(context.Context, int) error {
			panic("kaboom")
		},
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnitPanic)
	assert.Contains(t, err.Error(), "kaboom")

	var pe *UnitPanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 0, pe.Index)
}

func TestRun_PanicWithErrorValue(t *testing.T) {
	_, err := NewRunner().Run(context.Background(), Job{
		ID:         "panic",
		TotalUnits: 1,
		Work: func(context.Context, int) error {
			panic(errUnit)
		},
	}, nil)

	assert.ErrorIs(t, err, ErrUnitPanic)
	assert.ErrorIs(t, err, errUnit)
}

func TestRun_CancelBetweenUnits(t *testing.T) {
	var tokenHook, jobHook int

	tok := cancellation.NewToken(cancellation.WithOnCancel(func() { tokenHook++ }))

	var ran []int

	var events []Progress

	_, err := NewRunner().Run(context.Background(), Job{
		ID:         "cancel",
		TotalUnits: 3,
		Cancel:     tok,
		OnCancel:   func() { jobHook++ },
		Work: func(_ context.Context, i int) error {
			ran = append(ran, i)
			if i == 0 {
				tok.Cancel()
			}

			return nil
		},
	}, collect(&events))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobCancelled)
	assert.Equal(t, []int{0}, ran, "the in-flight unit completes, later units never start")
	assert.Empty(t, events)
	assert.Equal(t, 1, tokenHook)
	assert.Equal(t, 1, jobHook)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	tok := cancellation.NewToken()
	tok.Cancel()

	called := false
	_, err := NewRunner().Run(context.Background(), Job{
		ID:         "pre",
		TotalUnits: 2,
		Cancel:     tok,
		Work: func(context.Context, int) error {
			called = true
			return nil
		},
	}, nil)

	assert.ErrorIs(t, err, ErrJobCancelled)
	assert.False(t, called)
}

func TestRun_ContextCancellationIsObserved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ran []int

	_, err := NewRunner().Run(ctx, Job{
		ID:         "ctx",
		TotalUnits: 4,
		Work: func(_ context.Context, i int) error {
			ran = append(ran, i)
			if i == 1 {
				cancel()
			}

			return nil
		},
	}, nil)

	assert.ErrorIs(t, err, ErrJobCancelled)
	assert.Equal(t, []int{0, 1}, ran)
}

func TestRun_NilWorkIsNoop(t *testing.T) {
	res, err := NewRunner().Run(context.Background(), Job{ID: "nil", TotalUnits: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CompletedUnits)
}

func logEvents(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any

	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}

	return out
}

func TestRun_LogsStructuredEvents(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := NewRunner(WithLogger(logger)).Run(context.Background(), Job{ID: "log", TotalUnits: 2, Description: "two units"}, nil)
	require.NoError(t, err)

	events := logEvents(t, &buf)
	require.Len(t, events, 4)

	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e["event"].(string))
		assert.Equal(t, "log", e["job_id"])
	}

	assert.Equal(t, []string{"job_start", "job_progress", "job_progress", "job_complete"}, names)
	assert.Equal(t, "two units", events[0]["description"])
	assert.Contains(t, events[1], "eta_seconds")
	assert.Contains(t, events[3], "duration_ms")
}

func TestRun_LogsFailureWithCode(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	_, err := NewRunner(WithLogger(logger)).Run(context.Background(), Job{
		ID:         "log",
		TotalUnits: 1,
		Work:       func(context.Context, int) error { return errUnit },
	}, nil)
	require.Error(t, err)

	events := logEvents(t, &buf)
	last := events[len(events)-1]
	assert.Equal(t, "job_failed", last["event"])
	assert.Equal(t, FailureCode, last["error_code"])
	assert.Equal(t, "ERROR", last["level"])
	assert.NotContains(t, events[0], "description")
}

func TestRun_LogsCancellation(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	tok := cancellation.NewToken()
	tok.Cancel()

	_, err := NewRunner(WithLogger(logger)).Run(context.Background(), Job{ID: "c", TotalUnits: 1, Cancel: tok}, nil)
	require.ErrorIs(t, err, ErrJobCancelled)

	events := logEvents(t, &buf)
	assert.Equal(t, "job_cancelled", events[len(events)-1]["event"])
}
