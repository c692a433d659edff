// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads application settings from an optional upscaler.yaml file,
// UPSCALER_ prefixed environment variables and built-in defaults. The environment
// overrides the file, which overrides the defaults.
package config
