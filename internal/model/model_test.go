// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package model

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryYAML = `
- name: Real-ESRGAN
  entrypoint: realesrgan.infer
  weights_url: https://github.com/xinntao/Real-ESRGAN/releases/download/v0.2.5.0/RealESRGAN_x4plus.pth
  env:
    MODEL_THREADS: "2"
- name: SwinIR
  entrypoint: scripts/run.py
  weights_url: https://example.com/swinir-v1.3.pth
`

func TestLoadRegistry(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/models/registry.yaml", []byte(registryYAML), 0o644))

	reg, err := LoadRegistry(fs, "/models/registry.yaml")
	require.NoError(t, err)
	require.Len(t, reg.Entries(), 2)

	e, ok := reg.Lookup("Real-ESRGAN")
	require.True(t, ok)
	assert.Equal(t, "realesrgan.infer", e.Entrypoint)
	assert.Equal(t, "2", e.Env["MODEL_THREADS"])

	assert.Equal(t, "v0.2.5.0", reg.ResolveVersion("Real-ESRGAN"))
	assert.Equal(t, "v1.3", reg.ResolveVersion("SwinIR"))
	assert.Equal(t, UnknownVersion, reg.ResolveVersion("missing"))
}

func TestLoadRegistry_MissingFileIsEmpty(t *testing.T) {
	reg, err := LoadRegistry(afero.NewMemMapFs(), "/nope.yaml")
	require.NoError(t, err)
	assert.Empty(t, reg.Entries())
}

func TestLoadRegistry_Invalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/r.yaml", []byte("name: [unclosed"), 0o644))

	_, err := LoadRegistry(fs, "/r.yaml")
	require.Error(t, err)
}

func TestVersionFromURL(t *testing.T) {
	cases := map[string]string{
		"":                                      "",
		"https://host/releases/download/v1.2/w": "v1.2",
		"https://host/weights-v3.4.5.bin":       "v3.4.5",
		"https://host/weights.bin":              "",
	}

	for in, want := range cases {
		assert.Equal(t, want, VersionFromURL(in), in)
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "real-esrgan", Slugify("Real-ESRGAN"))
	assert.Equal(t, "v0-2-5", Slugify("v0.2.5"))
	assert.Equal(t, "a-b", Slugify("  A  //  b__ "))
	assert.Equal(t, "model", Slugify("!!!"))
}

func TestResolveInstallPaths(t *testing.T) {
	p := ResolveInstallPaths("/cache", "Real-ESRGAN", "", "")
	root := filepath.Join("/cache", "real-esrgan", "latest")
	assert.Equal(t, root, p.Root)
	assert.Equal(t, filepath.Join(root, "weights.bin"), p.Weights)
	assert.Equal(t, filepath.Join(root, "manifest.json"), p.Manifest)
	assert.Equal(t, filepath.Join(root, "venv"), p.Venv)
}

func TestBuildArgs(t *testing.T) {
	inv := Invocation{
		Input:     "in.png",
		Output:    "out.png",
		Scale:     4,
		Tiling:    "512",
		Precision: "FP16",
		Compute:   "GPU",
		ExtraArgs: []string{"--denoise", "0.5"},
	}

	args := BuildArgs("pkg.infer", "/w.bin", inv)
	assert.Equal(t, []string{
		"-m", "pkg.infer",
		"--weights", "/w.bin",
		"--input", "in.png",
		"--output", "out.png",
		"--scale", "4",
		"--tiling", "512",
		"--precision", "FP16",
		"--compute", "GPU",
		"--denoise", "0.5",
	}, args)

	args = BuildArgs("/models/run.py", "/w.bin", Invocation{Input: "a", Output: "b"})
	assert.Equal(t, []string{"/models/run.py", "--weights", "/w.bin", "--input", "a", "--output", "b"}, args)
}

func TestMergeEnv(t *testing.T) {
	env := MergeEnv([]string{"A=1", "B=2"}, map[string]string{"B": "3", "C": "4"})
	slices.Sort(env)
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, env)

	assert.Equal(t, []string{"A=1"}, MergeEnv([]string{"A=1"}, nil))
}

func TestCUDADisabled(t *testing.T) {
	for _, v := range []string{"", "-1", "none", "NULL", "void"} {
		assert.True(t, CUDADisabled([]string{"CUDA_VISIBLE_DEVICES=" + v}), v)
	}

	assert.True(t, CUDADisabled([]string{"NVIDIA_VISIBLE_DEVICES=none"}))
	assert.False(t, CUDADisabled([]string{"CUDA_VISIBLE_DEVICES=0"}))
	assert.False(t, CUDADisabled(nil))
}

func TestEffectiveCompute(t *testing.T) {
	ctx := context.Background()

	t.Run("no nvidia-smi", func(t *testing.T) {
		stubs := gostub.Stub(&LookPath, func(string) (string, error) { return "", errors.New("not found") })
		defer stubs.Reset()

		assert.Equal(t, ComputeCPU, EffectiveCompute(ctx, "GPU", nil))
		assert.Equal(t, ComputeCPU, EffectiveCompute(ctx, "", nil))
		assert.Equal(t, "CPU", EffectiveCompute(ctx, "CPU", nil))
		assert.Equal(t, "NPU", EffectiveCompute(ctx, "NPU", nil))
	})

	t.Run("gpu listed", func(t *testing.T) {
		stubs := gostub.Stub(&LookPath, func(string) (string, error) { return "/usr/bin/nvidia-smi", nil })
		stubs.Stub(&Run, RunFunc(func(context.Context, string, []string, []string) ([]byte, error) {
			return []byte("NVIDIA A100\n"), nil
		}))
		defer stubs.Reset()

		assert.Equal(t, "GPU", EffectiveCompute(ctx, "GPU", nil))
		assert.Equal(t, ComputeCPU, EffectiveCompute(ctx, "cuda", []string{"CUDA_VISIBLE_DEVICES=-1"}))
	})

	t.Run("empty listing", func(t *testing.T) {
		stubs := gostub.Stub(&LookPath, func(string) (string, error) { return "/usr/bin/nvidia-smi", nil })
		stubs.Stub(&Run, RunFunc(func(context.Context, string, []string, []string) ([]byte, error) {
			return []byte("\n  \n"), nil
		}))
		defer stubs.Reset()

		assert.Equal(t, ComputeCPU, EffectiveCompute(ctx, "auto", nil))
	})
}

type installFixture struct {
	fs    afero.Fs
	inv   *CommandInvoker
	paths InstallPaths
}

func newInstallFixture(t *testing.T, entry Entry) installFixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	paths := ResolveInstallPaths("/cache", entry.Name, entry.Version, entry.WeightsFile)

	for _, f := range []string{paths.Weights, paths.Manifest, filepath.Join(paths.Venv, "pyvenv.cfg"), "/data/in.png"} {
		require.NoError(t, afero.WriteFile(fs, f, []byte("x"), 0o644))
	}

	inv := NewCommandInvoker(NewRegistry(entry),
		WithFs(fs),
		WithCacheDir("/cache"),
		WithEnv([]string{"PATH=/bin", "MODEL_THREADS=8"}),
	)

	return installFixture{fs: fs, inv: inv, paths: paths}
}

func TestInvoke_RunsPythonInVenv(t *testing.T) {
	fx := newInstallFixture(t, Entry{Name: "Real-ESRGAN", Entrypoint: "realesrgan.infer", Env: map[string]string{"MODEL_THREADS": "2"}})

	var (
		gotName string
		gotArgs []string
		gotEnv  []string
	)

	stubs := gostub.Stub(&LookPath, func(string) (string, error) { return "", errors.New("not found") })
	stubs.Stub(&Run, RunFunc(func(_ context.Context, name string, args, env []string) ([]byte, error) {
		gotName, gotArgs, gotEnv = name, args, env
		return nil, nil
	}))
	defer stubs.Reset()

	err := fx.inv.Invoke(context.Background(), Invocation{
		Model:   "Real-ESRGAN",
		Input:   "/data/in.png",
		Output:  "/out/sub/out.png",
		Scale:   2,
		Compute: "GPU",
		Env:     map[string]string{"EXTRA": "yes"},
	})
	require.NoError(t, err)

	assert.Equal(t, fx.paths.Python(), gotName)
	assert.Equal(t, []string{"-m", "realesrgan.infer"}, gotArgs[:2])
	assert.Contains(t, strings.Join(gotArgs, " "), "--compute CPU")
	assert.Contains(t, gotEnv, "MODEL_THREADS=2")
	assert.Contains(t, gotEnv, "EXTRA=yes")
	assert.NotContains(t, gotEnv, "MODEL_THREADS=8")

	ok, err := afero.DirExists(fx.fs, "/out/sub")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInvoke_Errors(t *testing.T) {
	ctx := context.Background()
	base := Invocation{Model: "SwinIR", Input: "/data/in.png", Output: "/out/o.png"}

	t.Run("unknown model", func(t *testing.T) {
		fx := newInstallFixture(t, Entry{Name: "SwinIR", Entrypoint: "scripts/run.py"})
		inv := base
		inv.Model = "Other"
		require.ErrorIs(t, fx.inv.Invoke(ctx, inv), ErrUnknownModel)
	})

	t.Run("entrypoint missing", func(t *testing.T) {
		fx := newInstallFixture(t, Entry{Name: "SwinIR", Entrypoint: "scripts/run.py"})
		require.ErrorIs(t, fx.inv.Invoke(ctx, base), ErrEntrypointMissing)
	})

	t.Run("weights missing", func(t *testing.T) {
		fx := newInstallFixture(t, Entry{Name: "SwinIR", Entrypoint: "swinir"})
		require.NoError(t, fx.fs.Remove(fx.paths.Weights))
		require.ErrorIs(t, fx.inv.Invoke(ctx, base), ErrWeightsMissing)
	})

	t.Run("venv missing", func(t *testing.T) {
		fx := newInstallFixture(t, Entry{Name: "SwinIR", Entrypoint: "swinir"})
		require.NoError(t, fx.fs.RemoveAll(fx.paths.Venv))
		require.ErrorIs(t, fx.inv.Invoke(ctx, base), ErrNotInstalled)
	})

	t.Run("input missing", func(t *testing.T) {
		fx := newInstallFixture(t, Entry{Name: "SwinIR", Entrypoint: "swinir"})
		inv := base
		inv.Input = "/data/none.png"
		require.ErrorIs(t, fx.inv.Invoke(ctx, inv), ErrInputMissing)
	})

	t.Run("process fails", func(t *testing.T) {
		fx := newInstallFixture(t, Entry{Name: "SwinIR", Entrypoint: "swinir"})
		boom := errors.New("exit status 1")

		stubs := gostub.Stub(&LookPath, func(string) (string, error) { return "", errors.New("not found") })
		stubs.Stub(&Run, RunFunc(func(context.Context, string, []string, []string) ([]byte, error) {
			return []byte("Traceback"), boom
		}))
		defer stubs.Reset()

		err := fx.inv.Invoke(ctx, base)
		require.ErrorIs(t, err, ErrInferenceFailed)
		require.ErrorIs(t, err, boom)
	})
}

func TestInvoke_RelativeScriptResolvesAgainstInstallRoot(t *testing.T) {
	fx := newInstallFixture(t, Entry{Name: "SwinIR", Entrypoint: "scripts/run.py"})
	script := filepath.Join(fx.paths.Root, "scripts", "run.py")
	require.NoError(t, afero.WriteFile(fx.fs, script, []byte("print()"), 0o644))

	var gotArgs []string

	stubs := gostub.Stub(&LookPath, func(string) (string, error) { return "", errors.New("not found") })
	stubs.Stub(&Run, RunFunc(func(_ context.Context, _ string, args, _ []string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	}))
	defer stubs.Reset()

	require.NoError(t, fx.inv.Invoke(context.Background(), Invocation{Model: "SwinIR", Input: "/data/in.png", Output: "/out/o.png"}))
	assert.Equal(t, script, gotArgs[0])
}
