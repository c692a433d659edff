// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"errors"

	"github.com/matt-FFFFFF/upscaler/internal/job"
	"github.com/matt-FFFFFF/upscaler/internal/jobqueue"
	"github.com/matt-FFFFFF/upscaler/internal/upscale"
)

// QueueObserver turns queue lifecycle notifications into events.
type QueueObserver struct {
	reporter Reporter
	clock    job.Clock
}

var _ jobqueue.Observer = (*QueueObserver)(nil)

// NewQueueObserver creates an observer reporting to r. A nil clock means the system clock.
func NewQueueObserver(r Reporter, clock job.Clock) *QueueObserver {
	if clock == nil {
		clock = job.SystemClock{}
	}

	return &QueueObserver{reporter: r, clock: clock}
}

// JobQueued implements jobqueue.Observer.
func (o *QueueObserver) JobQueued(_ context.Context, j job.Job) {
	o.report(j, EventQueued, EventData{Total: j.TotalUnits})
}

// JobStarted implements jobqueue.Observer.
func (o *QueueObserver) JobStarted(_ context.Context, j job.Job) {
	o.report(j, EventStarted, EventData{Total: j.TotalUnits})
}

// JobFinished implements jobqueue.Observer.
func (o *QueueObserver) JobFinished(_ context.Context, j job.Job, res job.Result, err error) {
	switch {
	case err == nil:
		o.report(j, EventCompleted, EventData{
			Completed: res.CompletedUnits,
			Total:     res.TotalUnits,
			Duration:  res.Duration,
		})
	case errors.Is(err, job.ErrJobCancelled):
		o.report(j, EventCancelled, EventData{Total: j.TotalUnits, Err: err})
	default:
		o.report(j, EventFailed, EventData{Total: j.TotalUnits, Err: err})
	}
}

func (o *QueueObserver) report(j job.Job, t EventType, data EventData) {
	o.reporter.Report(Event{
		JobID:     j.ID,
		Label:     j.Description,
		Type:      t,
		Timestamp: o.clock.Now(),
		Data:      data,
	})
}

// ProgressFunc reports each job.Progress as an EventProgress labelled label.
func ProgressFunc(r Reporter, label string) job.ProgressFunc {
	return func(p job.Progress) {
		r.Report(Event{
			JobID:     p.JobID,
			Label:     label,
			Type:      EventProgress,
			Timestamp: job.SystemClock{}.Now(),
			Data: EventData{
				Completed: p.CompletedUnits,
				Total:     p.TotalUnits,
				ETA:       p.ETA,
			},
		})
	}
}

// ArtifactFunc reports each completed request as an EventArtifact labelled label.
func ArtifactFunc(r Reporter, label string) func(int, upscale.Artifact) {
	return func(_ int, art upscale.Artifact) {
		r.Report(Event{
			Label:     label,
			Type:      EventArtifact,
			Timestamp: job.SystemClock{}.Now(),
			Data:      EventData{Artifact: &art},
		})
	}
}
