// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package linetail captures the tail of a process's output: the most recent bytes, up to a
// limit, and the last non-blank line. Carriage returns end a line, so progress bars that
// redraw in place report their latest state.
package linetail
