// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobqueue

import (
	"log/slog"

	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
)

func discardLogger() *slog.Logger {
	return ctxlog.Discard()
}
