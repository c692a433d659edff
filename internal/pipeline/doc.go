// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package pipeline runs jobs whose units write files, adding two guarantees on top of job.Runner:
// a cancelled job leaves none of its outputs behind, and a successful job can leave a
// processing report.
package pipeline
