// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package batchfile loads batch definitions: a named list of upscale requests with an output
// directory and an optional report path.
//
// Definitions are YAML, or HCL when the file name ends in .hcl. HCL files may read environment
// variables as env.NAME. Files are fetched with go-getter, so any go-getter URL works.
package batchfile
