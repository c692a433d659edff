// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/color"
)

// Printer is a Listener that writes one block of text per event.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// OnEvent implements Listener.
func (p *Printer) OnEvent(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.w, Format(e)) //nolint:errcheck
}

// Format renders e as console text ending in a newline.
func Format(e Event) string {
	label := e.Label
	if label == "" {
		label = e.JobID
	}

	var b strings.Builder

	switch e.Type {
	case EventQueued, EventStarted:
		fmt.Fprintf(&b, "%s %s\n", color.Status(e.Type.String()), label)

	case EventProgress:
		fmt.Fprintf(&b, "[%d/%d] %3.0f%% ETA %s %s\n",
			e.Data.Completed, e.Data.Total, percent(e.Data.Completed, e.Data.Total), FormatETA(e.Data.ETA), label)

	case EventArtifact:
		a := e.Data.Artifact
		if a == nil {
			return ""
		}

		fmt.Fprintf(&b, "  %s\n", a.InputPath)
		fmt.Fprintf(&b, "    master: %s\n", a.MasterOutputPath)

		if a.VisualOutputPath != "" {
			fmt.Fprintf(&b, "    visual: %s\n", a.VisualOutputPath)
		}

		for _, n := range a.Notes {
			fmt.Fprintf(&b, "    %s: %s\n", color.Status("fallback"), n)
		}

	case EventCompleted:
		fmt.Fprintf(&b, "%s %s: %d of %d in %s\n",
			color.Status("completed"), label, e.Data.Completed, e.Data.Total, e.Data.Duration.Round(time.Millisecond))

	case EventFailed, EventCancelled:
		fmt.Fprintf(&b, "%s %s", color.Status(e.Type.String()), label)

		if e.Data.Err != nil {
			fmt.Fprintf(&b, ": %s", e.Data.Err)
		}

		b.WriteString("\n")

	default:
		return ""
	}

	return b.String()
}

// FormatETA renders an ETA rounded to the second, or "unknown".
func FormatETA(eta *time.Duration) string {
	if eta == nil {
		return "unknown"
	}

	return eta.Round(time.Second).String()
}

func percent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}

	return float64(completed) * 100 / float64(total)
}
