// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package fallback runs ordered strategies until one succeeds and records which degraded path was taken.
package fallback
