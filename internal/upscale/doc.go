// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package upscale fulfils batches of upscale requests.
//
// Each request produces a master output and, when its OutputPlan asks for one, a visual output.
// Both are produced through fallback chains: the preferred path is tried first and each weaker
// path runs only after the stronger one failed, leaving a note on the resulting Artifact.
// Every file a batch writes is claimed through one outputtracker.Tracker, so a cancelled batch
// leaves nothing behind.
package upscale
