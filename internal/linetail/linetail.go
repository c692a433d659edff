// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package linetail

import (
	"bytes"
	"strings"
	"sync"
)

// Writer is an io.Writer that keeps the tail of what was written to it.
// It is safe for concurrent use, so one Writer can collect both stdout and stderr.
type Writer struct {
	limit int

	mu       sync.RWMutex
	buf      bytes.Buffer
	lastLine string
	partial  []byte
}

// New creates a Writer keeping at most limit bytes. A limit of zero or less keeps everything.
func New(limit int) *Writer {
	return &Writer{limit: limit}
}

// Write implements io.Writer. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.keep(p)
	w.scan(p)

	return len(p), nil
}

func (w *Writer) keep(p []byte) {
	if w.limit <= 0 {
		w.buf.Write(p)
		return
	}

	if len(p) >= w.limit {
		w.buf.Reset()
		w.buf.Write(p[len(p)-w.limit:])

		return
	}

	if over := w.buf.Len() + len(p) - w.limit; over > 0 {
		w.buf.Next(over)
	}

	w.buf.Write(p)
}

// scan must be called with the write lock held.
func (w *Writer) scan(p []byte) {
	for _, b := range p {
		if b != '\n' && b != '\r' {
			w.partial = append(w.partial, b)
			continue
		}

		if line := strings.TrimSpace(string(w.partial)); line != "" {
			w.lastLine = line
		}

		w.partial = w.partial[:0]
	}

	if w.limit > 0 && len(w.partial) > w.limit {
		w.partial = append(w.partial[:0], w.partial[len(w.partial)-w.limit:]...)
	}
}

// LastLine returns the last complete non-blank line, trimmed of surrounding space.
// If maxLength > 3 and the line is longer, it is cut and "..." appended.
func (w *Writer) LastLine(maxLength int) string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	line := w.lastLine
	if maxLength > 3 && len(line) > maxLength {
		line = line[:maxLength-3] + "..."
	}

	return line
}

// Partial returns the data written since the last line break.
func (w *Writer) Partial() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return string(w.partial)
}

// Bytes returns a copy of the kept output.
func (w *Writer) Bytes() []byte {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return bytes.Clone(w.buf.Bytes())
}

// Len returns the number of bytes kept.
func (w *Writer) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.buf.Len()
}

// Reset discards everything written so far.
func (w *Writer) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset()
	w.lastLine = ""
	w.partial = w.partial[:0]
}
