// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cancellation

import (
	"context"
	"sync"
	"sync/atomic"
)

// Signal is a cooperative cancel flag.
type Signal interface {
	Cancel()
	IsCancelled() bool
}

// Observer is implemented by signals that run a hook the first time cancellation is observed.
type Observer interface {
	Observe() bool
}

// Token is the default Signal implementation.
// The zero value is usable and never runs a hook.
type Token struct {
	cancelled atomic.Bool
	once      sync.Once
	onCancel  func()
}

// Option configures a Token.
type Option func(*Token)

// WithOnCancel sets a hook that runs exactly once, at the first Observe call after Cancel.
func WithOnCancel(fn func()) Option {
	return func(t *Token) {
		t.onCancel = fn
	}
}

// NewToken creates a new, uncancelled token.
func NewToken(opts ...Option) *Token {
	t := &Token{}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Cancel marks the token as cancelled. It is safe to call more than once and from any goroutine.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

// IsCancelled reports whether Cancel has been called.
func (t *Token) IsCancelled() bool {
	return t.cancelled.Load()
}

// Observe reports whether the token is cancelled and, on the first positive observation, runs the hook.
func (t *Token) Observe() bool {
	if !t.cancelled.Load() {
		return false
	}

	t.once.Do(func() {
		if t.onCancel != nil {
			t.onCancel()
		}
	})

	return true
}

// Observe checks s at a safe point. A nil signal is never cancelled.
func Observe(s Signal) bool {
	if s == nil {
		return false
	}

	if o, ok := s.(Observer); ok {
		return o.Observe()
	}

	return s.IsCancelled()
}

type contextSignal struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// FromContext returns a Signal that is cancelled once ctx is done.
// Calling Cancel on the result cancels a context derived from ctx, not ctx itself.
func FromContext(ctx context.Context) Signal {
	ctx, cancel := context.WithCancel(ctx)

	return &contextSignal{ctx: ctx, cancel: cancel}
}

func (c *contextSignal) Cancel() {
	c.cancel()
}

func (c *contextSignal) IsCancelled() bool {
	return c.ctx.Err() != nil
}

// Linked returns a Signal that is cancelled when own is, or when any of parents is.
// Cancel only reaches own, so one job can be stopped without cancelling a signal it shares.
// Nil parents are ignored.
func Linked(own Signal, parents ...Signal) Signal {
	l := linked{own: own}

	for _, p := range parents {
		if p != nil {
			l.parents = append(l.parents, p)
		}
	}

	return l
}

type linked struct {
	own     Signal
	parents []Signal
}

func (l linked) Cancel() {
	l.own.Cancel()
}

func (l linked) IsCancelled() bool {
	if l.own.IsCancelled() {
		return true
	}

	for _, p := range l.parents {
		if p.IsCancelled() {
			return true
		}
	}

	return false
}

// Observe observes every member, so each cancelled member runs its own hook.
func (l linked) Observe() bool {
	cancelled := Observe(l.own)

	for _, p := range l.parents {
		if Observe(p) {
			cancelled = true
		}
	}

	return cancelled
}
