// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobqueue

import (
	"context"
	"sync"

	"github.com/matt-FFFFFF/upscaler/internal/job"
)

// Future is the pending outcome of a submitted job.
type Future struct {
	jobID  string
	done   chan struct{}
	once   sync.Once
	result job.Result
	err    error
}

func newFuture(jobID string) *Future {
	return &Future{
		jobID: jobID,
		done:  make(chan struct{}),
	}
}

// JobID returns the id of the submitted job.
func (f *Future) JobID() string {
	return f.jobID
}

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job finishes or ctx is done.
// A ctx error is returned as is and does not affect the job.
func (f *Future) Wait(ctx context.Context) (job.Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return job.Result{}, ctx.Err()
	}
}

// resolve reports whether this call resolved the future.
func (f *Future) resolve(res job.Result, err error) bool {
	resolved := false

	f.once.Do(func() {
		f.result = res
		f.err = err
		resolved = true

		close(f.done)
	})

	return resolved
}
