// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package app assembles the upscaler from its settings: the model registry and invoker,
// the upscale driver, the job pipeline, the job queue and the optional job history.
// Batches submitted to an App run one at a time, one unit per request.
package app
