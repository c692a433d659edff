// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
)

// Watch monitors the signal channel until it is closed or ctx is done.
// The first signal of a given type cancels sig, if not nil.
// The second signal of the same type cancels the context and closes sigCh.
func Watch(ctx context.Context, sigCh chan os.Signal, sig cancellation.Signal, cancel context.CancelFunc) {
	seen := make(map[os.Signal]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sigCh:
			if !ok {
				return
			}

			if _, dup := seen[s]; dup {
				ctxlogInfo(ctx, "received second signal of type, forcefully terminating", s)
				close(sigCh)
				cancel()

				return
			}

			ctxlogInfo(ctx, "received first signal of type, cancelling after the current unit", s)

			if sig != nil {
				sig.Cancel()
			}

			seen[s] = struct{}{}
		}
	}
}
