// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package model runs external super-resolution models.
//
// Models are described in a YAML registry and installed under a cache directory as
// <cache>/<name>/<version>/ holding the weights, a manifest and a Python virtual environment.
// CommandInvoker runs the model's entrypoint in that environment, one process per image.
package model
