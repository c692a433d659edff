// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package jobqueue runs jobs one at a time, in submission order, on a single background worker.
//
// Submit never blocks. Each submission gets a Future that is resolved exactly once with the
// job's Result or error. A failed job does not stop the queue.
package jobqueue
