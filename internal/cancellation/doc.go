// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cancellation provides the cooperative cancel flag shared by jobs, the runner and the batch driver.
//
// A Signal is only ever checked between units of work. Nothing in this package interrupts running code.
package cancellation
