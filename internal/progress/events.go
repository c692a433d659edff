// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/upscale"
)

// Event is a job lifecycle or progress update.
type Event struct {
	JobID     string
	Label     string // job description
	Type      EventType
	Timestamp time.Time
	Data      EventData
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventQueued indicates a job was submitted.
	EventQueued EventType = iota
	// EventStarted indicates a job began running.
	EventStarted
	// EventProgress indicates a unit of work completed.
	EventProgress
	// EventArtifact indicates a request produced its outputs.
	EventArtifact
	// EventCompleted indicates every unit completed.
	EventCompleted
	// EventFailed indicates a unit failed.
	EventFailed
	// EventCancelled indicates the job was cancelled.
	EventCancelled
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventQueued:
		return "queued"
	case EventStarted:
		return "running"
	case EventProgress:
		return "progress"
	case EventArtifact:
		return "artifact"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Droppable reports whether the event may be skipped when the listener falls behind.
// Only progress updates are, as a later one supersedes them.
func (et EventType) Droppable() bool {
	return et == EventProgress
}

// EventData contains type-specific information for progress events.
type EventData struct {
	// For EventProgress and EventCompleted
	Completed int
	Total     int
	ETA       *time.Duration
	Duration  time.Duration

	// For EventArtifact
	Artifact *upscale.Artifact

	// For EventFailed and EventCancelled
	Err error
}

// Reporter sends progress events.
type Reporter interface {
	// Report sends an event. Implementations must not block indefinitely.
	Report(event Event)
	// Close signals that no more events will be sent.
	Close()
}

// Listener receives progress events.
type Listener interface {
	OnEvent(event Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(Event)

// OnEvent calls f.
func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// NullReporter discards every event.
type NullReporter struct{}

// Report does nothing.
func (NullReporter) Report(Event) {}

// Close does nothing.
func (NullReporter) Close() {}
