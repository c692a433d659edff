// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package model

import (
	"context"
	"strings"
)

// ComputeCPU is the compute mode used when no GPU is usable.
const ComputeCPU = "CPU"

// EffectiveCompute downgrades GPU-capable compute modes to CPU when no GPU is usable.
// An explicit CPU request and unrecognised modes are returned unchanged.
func EffectiveCompute(ctx context.Context, compute string, env []string) string {
	switch strings.ToLower(strings.TrimSpace(compute)) {
	case "", "auto", "gpu", "cuda":
		if !GPUAvailable(ctx, env) {
			return ComputeCPU
		}
	}

	return compute
}

// GPUAvailable reports whether CUDA is enabled in env and nvidia-smi lists at least one GPU.
func GPUAvailable(ctx context.Context, env []string) bool {
	if CUDADisabled(env) {
		return false
	}

	smi, err := LookPath("nvidia-smi")
	if err != nil {
		return false
	}

	out, err := Run(ctx, smi, []string{"--query-gpu=name", "--format=csv,noheader"}, env)
	if err != nil {
		return false
	}

	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			return true
		}
	}

	return false
}

// CUDADisabled reports whether CUDA_VISIBLE_DEVICES or NVIDIA_VISIBLE_DEVICES hides every device.
func CUDADisabled(env []string) bool {
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || (k != "CUDA_VISIBLE_DEVICES" && k != "NVIDIA_VISIBLE_DEVICES") {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "-1", "none", "null", "void":
			return true
		}
	}

	return false
}
