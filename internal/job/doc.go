// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package job defines a job as N ordered units of work and the Runner that executes them.
//
// The Runner executes units strictly in order on the calling goroutine, emits one Progress per
// completed unit with an ETA derived from the average unit duration, and observes cooperative
// cancellation between units.
package job
