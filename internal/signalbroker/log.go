// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"log/slog"
	"os"

	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
)

func ctxlogInfo(ctx context.Context, detail string, s os.Signal) {
	ctxlog.Event(ctx, ctxlog.Logger(ctx), slog.LevelInfo, "signal", "watchdog", "detail", detail, "signal", s.String())
}
