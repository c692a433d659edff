// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
)

var (
	// ErrInvalidArgument is the base error for precondition violations.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidTotalUnits is returned when a job has no units to run.
	ErrInvalidTotalUnits = fmt.Errorf("%w: total units must be positive", ErrInvalidArgument)
	// ErrJobCancelled is returned when cancellation was observed before the job finished.
	ErrJobCancelled = errors.New("job cancelled")
	// ErrUnitPanic is matched by errors produced from a panicking unit of work.
	ErrUnitPanic = errors.New("unit of work panicked")
)

// WorkFunc runs the unit at index. Returning an error fails the job.
type WorkFunc func(ctx context.Context, index int) error

// Job is a fixed number of units of work. A Job must not be modified after it is submitted.
type Job struct {
	ID          string
	TotalUnits  int
	Work        WorkFunc
	Description string
	// Cancel is checked between units. Nil means the job is never cancelled.
	Cancel cancellation.Signal
	// OnCancel runs once when the runner observes cancellation.
	OnCancel func()
}

// Progress is emitted after each completed unit.
type Progress struct {
	JobID          string
	CompletedUnits int
	TotalUnits     int
	Progress       float64
	// ETA is average unit duration multiplied by the remaining units. Nil when unknown.
	ETA *time.Duration
}

// ETASeconds returns the ETA in seconds and whether it is known.
func (p Progress) ETASeconds() (float64, bool) {
	if p.ETA == nil {
		return 0, false
	}

	return p.ETA.Seconds(), true
}

// Result is only produced when every unit completed without cancellation.
type Result struct {
	JobID          string
	CompletedUnits int
	TotalUnits     int
	Duration       time.Duration
}

// DurationMS returns the duration in whole milliseconds.
func (r Result) DurationMS() int64 {
	return r.Duration.Milliseconds()
}

// UnitPanicError carries the value recovered from a panicking unit.
type UnitPanicError struct {
	Index int
	Value any
}

// Error implements the error interface.
func (e *UnitPanicError) Error() string {
	switch x := e.Value.(type) {
	case error:
		return fmt.Sprintf("unit %d panicked: %s", e.Index, x.Error())
	default:
		return fmt.Sprintf("unit %d panicked: %v", e.Index, x)
	}
}

// Unwrap exposes ErrUnitPanic and, when the panic value is an error, that error.
func (e *UnitPanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrUnitPanic, err}
	}

	return []error{ErrUnitPanic}
}
