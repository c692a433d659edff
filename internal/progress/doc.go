// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress reports job lifecycle and progress events to the console.
// Jobs emit events on the queue's worker goroutine through a Reporter; a listener
// goroutine renders them, so slow terminals never hold up the worker.
package progress
