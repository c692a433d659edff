// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package userfacing turns internal errors into messages an operator can act on.
package userfacing
