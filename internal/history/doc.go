// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package history keeps a SQLite record of every job a queue has seen.
//
// A Store is a jobqueue.Observer: attach it with jobqueue.WithObserver and each job's
// queued, running and final states are written as they happen.
package history
