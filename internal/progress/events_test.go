// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/color"
	"github.com/matt-FFFFFF/upscaler/internal/job"
	"github.com/matt-FFFFFF/upscaler/internal/upscale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	color.SetEnabled(false)
	goleak.VerifyTestMain(m)
}

func TestEventType_String(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  string
	}{
		{EventQueued, "queued"},
		{EventStarted, "running"},
		{EventProgress, "progress"},
		{EventArtifact, "artifact"},
		{EventCompleted, "completed"},
		{EventFailed, "failed"},
		{EventCancelled, "cancelled"},
		{EventType(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.String())
		})
	}
}

func TestEventType_Droppable(t *testing.T) {
	assert.True(t, EventProgress.Droppable())
	assert.False(t, EventArtifact.Droppable())
	assert.False(t, EventCompleted.Droppable())
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}

	return out
}

func TestChannelReporter_DeliversInOrder(t *testing.T) {
	cr := NewChannelReporter(context.Background(), 4)
	rec := &recorder{}
	cr.Listen(rec)

	cr.Report(Event{Type: EventQueued})
	cr.Report(Event{Type: EventStarted})
	cr.Report(Event{Type: EventArtifact})
	cr.Report(Event{Type: EventCompleted})
	cr.Close()

	assert.Equal(t, []EventType{EventQueued, EventStarted, EventArtifact, EventCompleted}, rec.types())
}

func TestChannelReporter_DropsProgressWhenFull(t *testing.T) {
	cr := NewChannelReporter(context.Background(), 1)

	cr.Report(Event{Type: EventProgress, Data: EventData{Completed: 1}})
	cr.Report(Event{Type: EventProgress, Data: EventData{Completed: 2}})

	rec := &recorder{}
	cr.Listen(rec)
	cr.Close()

	require.Len(t, rec.events, 1)
	assert.Equal(t, 1, rec.events[0].Data.Completed)
}

func TestChannelReporter_CloseReleasesBlockedSender(t *testing.T) {
	cr := NewChannelReporter(context.Background(), 1)
	cr.Report(Event{Type: EventQueued})

	done := make(chan struct{})

	go func() {
		defer close(done)
		cr.Report(Event{Type: EventStarted})
	}()

	time.Sleep(20 * time.Millisecond)
	cr.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender still blocked after Close")
	}

	cr.Report(Event{Type: EventCompleted})
}

func TestQueueObserver(t *testing.T) {
	cr := NewChannelReporter(context.Background(), 8)
	rec := &recorder{}
	cr.Listen(rec)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	o := NewQueueObserver(cr, job.ClockFunc(func() time.Time { return now }))
	j := job.Job{ID: "j1", Description: "nightly", TotalUnits: 2}

	o.JobQueued(context.Background(), j)
	o.JobStarted(context.Background(), j)
	o.JobFinished(context.Background(), j, job.Result{CompletedUnits: 2, TotalUnits: 2}, nil)
	o.JobFinished(context.Background(), j, job.Result{}, fmt.Errorf("job %q: %w", j.ID, job.ErrJobCancelled))
	o.JobFinished(context.Background(), j, job.Result{}, errors.New("boom"))
	cr.Close()

	assert.Equal(t, []EventType{EventQueued, EventStarted, EventCompleted, EventCancelled, EventFailed}, rec.types())
	assert.Equal(t, "nightly", rec.events[0].Label)
	assert.Equal(t, "j1", rec.events[0].JobID)
	assert.Equal(t, now, rec.events[0].Timestamp)
	assert.Equal(t, 2, rec.events[2].Data.Completed)
}

func TestFormat(t *testing.T) {
	eta := 2500 * time.Millisecond

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "queued",
			event: Event{Type: EventQueued, Label: "nightly"},
			want:  "queued nightly\n",
		},
		{
			name:  "label falls back to job id",
			event: Event{Type: EventStarted, JobID: "j1"},
			want:  "running j1\n",
		},
		{
			name:  "progress",
			event: Event{Type: EventProgress, Label: "nightly", Data: EventData{Completed: 1, Total: 4, ETA: &eta}},
			want:  "[1/4]  25% ETA 3s nightly\n",
		},
		{
			name:  "progress without eta",
			event: Event{Type: EventProgress, Label: "nightly", Data: EventData{Completed: 1, Total: 2}},
			want:  "[1/2]  50% ETA unknown nightly\n",
		},
		{
			name: "artifact",
			event: Event{Type: EventArtifact, Data: EventData{Artifact: &upscale.Artifact{
				InputPath:        "/in/a.tif",
				MasterOutputPath: "/out/a_x2_master.tif",
				VisualOutputPath: "/out/a_x2_visual.png",
				Notes:            []string{"Used built-in visual upscale fallback."},
			}}},
			want: "  /in/a.tif\n    master: /out/a_x2_master.tif\n    visual: /out/a_x2_visual.png\n" +
				"    fallback: Used built-in visual upscale fallback.\n",
		},
		{
			name:  "completed",
			event: Event{Type: EventCompleted, Label: "nightly", Data: EventData{Completed: 2, Total: 2, Duration: 1500 * time.Millisecond}},
			want:  "completed nightly: 2 of 2 in 1.5s\n",
		},
		{
			name:  "failed",
			event: Event{Type: EventFailed, Label: "nightly", Data: EventData{Err: errors.New("boom")}},
			want:  "failed nightly: boom\n",
		},
		{
			name:  "unknown",
			event: Event{Type: EventType(42)},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.event))
		})
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer

	p := NewPrinter(&buf)
	p.OnEvent(Event{Type: EventQueued, Label: "a"})
	p.OnEvent(Event{Type: EventCancelled, Label: "a"})

	assert.Equal(t, "queued a\ncancelled a\n", buf.String())
}

func TestProgressAndArtifactFuncs(t *testing.T) {
	cr := NewChannelReporter(context.Background(), 4)
	rec := &recorder{}
	cr.Listen(rec)

	ProgressFunc(cr, "batch")(job.Progress{JobID: "j1", CompletedUnits: 1, TotalUnits: 2})
	ArtifactFunc(cr, "batch")(0, upscale.Artifact{InputPath: "/in/a.png"})
	cr.Close()

	require.Len(t, rec.events, 2)
	assert.Equal(t, "j1", rec.events[0].JobID)
	assert.Equal(t, 1, rec.events[0].Data.Completed)
	require.NotNil(t, rec.events[1].Data.Artifact)
	assert.Equal(t, "/in/a.png", rec.events[1].Data.Artifact.InputPath)
}
