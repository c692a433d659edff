// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the upscaler command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/upscaler"
	"github.com/matt-FFFFFF/upscaler/cmd"
	"github.com/matt-FFFFFF/upscaler/cmd/cmdstate"
	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/signalbroker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	// The first signal cancels the running job after its current unit, the second the context.
	interrupt := cancellation.NewToken()
	ctx = cmdstate.WithInterrupt(ctx, interrupt)

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, interrupt, cancel)

	cmd.RootCmd.Version = fmt.Sprintf("%s (commit: %s)", upscaler.Version, upscaler.Commit)

	err := cmd.RootCmd.Run(ctx, os.Args)

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}

	ctxlog.Logger(ctx).Info("command completed successfully")
}
