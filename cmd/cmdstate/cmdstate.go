// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmdstate carries process wide state from main and the root command's
// Before hook down to the subcommands through the context.
package cmdstate

import (
	"context"

	"github.com/matt-FFFFFF/upscaler/internal/cancellation"
	"github.com/matt-FFFFFF/upscaler/internal/config"
)

type (
	settingsKey     struct{}
	settingsFileKey struct{}
	interruptKey    struct{}
)

// WithSettings returns a copy of ctx carrying s.
func WithSettings(ctx context.Context, s *config.Settings) context.Context {
	return context.WithValue(ctx, settingsKey{}, s)
}

// Settings returns the settings carried by ctx, or the defaults.
func Settings(ctx context.Context) *config.Settings {
	if s, ok := ctx.Value(settingsKey{}).(*config.Settings); ok && s != nil {
		return s
	}

	def := config.Defaults()

	return &def
}

// WithSettingsFile returns a copy of ctx recording the file the settings were read from.
func WithSettingsFile(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, settingsFileKey{}, path)
}

// SettingsFile returns the file the settings were read from, or "" when only the defaults
// and the environment applied.
func SettingsFile(ctx context.Context) string {
	path, _ := ctx.Value(settingsFileKey{}).(string)
	return path
}

// WithInterrupt returns a copy of ctx carrying the token cancelled by the first interrupt signal.
func WithInterrupt(ctx context.Context, t *cancellation.Token) context.Context {
	return context.WithValue(ctx, interruptKey{}, t)
}

// Interrupt returns the interrupt token carried by ctx. Without one, a new token is returned
// that nothing else cancels.
func Interrupt(ctx context.Context) *cancellation.Token {
	if t, ok := ctx.Value(interruptKey{}).(*cancellation.Token); ok && t != nil {
		return t
	}

	return cancellation.NewToken()
}
