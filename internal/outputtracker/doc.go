// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package outputtracker claims output paths for a job so that a failed or cancelled job can
// delete exactly what it created.
//
// A Tracker is owned by one batch and is not safe for concurrent use.
package outputtracker
