// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package report builds and persists processing reports: the settings, model and timings of a
// completed job.
package report
