// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package fallback

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrExhausted is returned when every step of a chain failed.
	ErrExhausted = errors.New("all fallback strategies failed")
	// ErrNoSteps is returned when a chain has nothing to run.
	ErrNoSteps = errors.New("fallback chain has no steps")
)

// Step is one strategy. Note is recorded when this step is the one that succeeds,
// so the primary step normally has no note.
type Step[T any] struct {
	Name string
	Note string
	Run  func(ctx context.Context) (T, error)
}

// Chain is an ordered list of steps, strongest first.
type Chain[T any] struct {
	Steps []Step[T]
	// OnFailure is called for every failed step before the next one is tried.
	OnFailure func(step string, err error)
}

// Then returns a copy of c with step appended.
func (c Chain[T]) Then(name, note string, run func(ctx context.Context) (T, error)) Chain[T] {
	c.Steps = append(slices.Clip(c.Steps), Step[T]{Name: name, Note: note, Run: run})
	return c
}

// Run tries each step in order and returns the first success, adding its note to notes.
// A later step only runs after the previous one failed. If all fail, the error wraps
// ErrExhausted and the last step's error. A done ctx stops the chain.
func (c Chain[T]) Run(ctx context.Context, notes *Notes) (T, error) {
	var zero T

	if len(c.Steps) == 0 {
		return zero, ErrNoSteps
	}

	var last error

	for _, step := range c.Steps {
		if err := ctx.Err(); err != nil {
			return zero, errors.Join(err, last)
		}

		v, err := step.Run(ctx)
		if err == nil {
			if step.Note != "" {
				notes.Add(step.Note)
			}

			return v, nil
		}

		last = fmt.Errorf("%s: %w", step.Name, err)

		if c.OnFailure != nil {
			c.OnFailure(step.Name, err)
		}
	}

	return zero, errors.Join(ErrExhausted, last)
}

// Notes is an append-only list of human readable provenance notes.
// A nil *Notes discards everything.
type Notes struct {
	items []string
}

// Add appends a note.
func (n *Notes) Add(note string) {
	if n == nil {
		return
	}

	n.items = append(n.items, note)
}

// Extend appends several notes in order.
func (n *Notes) Extend(notes ...string) {
	for _, note := range notes {
		n.Add(note)
	}
}

// List returns a copy of the notes.
func (n *Notes) List() []string {
	if n == nil || len(n.items) == 0 {
		return nil
	}

	return slices.Clone(n.items)
}

// Len returns the number of notes.
func (n *Notes) Len() int {
	if n == nil {
		return 0
	}

	return len(n.items)
}
