// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package batchfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/matt-FFFFFF/upscaler/internal/raster"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
)

const hclExt = ".hcl"

var (
	// ErrParse is returned when a definition cannot be decoded.
	ErrParse = errors.New("failed to parse batch file")
	// ErrInvalid is returned when a definition fails validation.
	ErrInvalid = errors.New("invalid batch file")
)

// FS is the filesystem inputs are resolved on.
var FS = afero.NewOsFs()

// Definition is a batch file.
type Definition struct {
	Name      string    `yaml:"name" hcl:"name,optional"`
	OutputDir string    `yaml:"output_dir" hcl:"output_dir,optional"`
	Report    string    `yaml:"report" hcl:"report,optional"`
	Requests  []Request `yaml:"requests" hcl:"request,block" validate:"required,min=1,dive"`
}

// Request is one entry of a batch file. Input may name a directory, which expands to the
// supported images below it.
type Request struct {
	Input         string `yaml:"input" hcl:"input" validate:"required"`
	OutputFormat  string `yaml:"output_format" hcl:"output_format,optional"`
	Scale         int    `yaml:"scale" hcl:"scale" validate:"gt=0"`
	BandHandling  string `yaml:"band_handling" hcl:"band_handling,optional" validate:"omitempty,oneof='RGB only' 'RGB + all bands' 'All bands'"`
	RGB           []int  `yaml:"rgb" hcl:"rgb,optional" validate:"omitempty,len=3,dive,gte=0"`
	Model         string `yaml:"model" hcl:"model,optional"`
	ModelVersion  string `yaml:"model_version" hcl:"model_version,optional"`
	ModelCacheDir string `yaml:"model_cache_dir" hcl:"model_cache_dir,optional"`
	Tiling        string `yaml:"tiling" hcl:"tiling,optional"`
	Precision     string `yaml:"precision" hcl:"precision,optional"`
	Compute       string `yaml:"compute" hcl:"compute,optional"`
	Tag           string `yaml:"tag" hcl:"tag,optional"`
	ReprojectTo   *Grid  `yaml:"reproject_to" hcl:"reproject_to,block"`
}

// Grid is a target pixel grid.
type Grid struct {
	CRS       string    `yaml:"crs" hcl:"crs"`
	Transform []float64 `yaml:"transform" hcl:"transform" validate:"len=6"`
	Width     int       `yaml:"width" hcl:"width" validate:"gt=0"`
	Height    int       `yaml:"height" hcl:"height" validate:"gt=0"`
}

// Signature converts g to a raster.GridSignature.
func (g *Grid) Signature() *raster.GridSignature {
	if g == nil {
		return nil
	}

	sig := &raster.GridSignature{CRS: g.CRS, Width: g.Width, Height: g.Height}
	copy(sig.Transform[:], g.Transform)

	return sig
}

// Parse decodes and validates a definition. filename selects the syntax and is used in messages.
func Parse(filename string, data []byte) (*Definition, error) {
	var (
		def Definition
		err error
	)

	if strings.EqualFold(filepath.Ext(filename), hclExt) {
		err = hclsimple.Decode(filename, data, evalContext(), &def)
	} else {
		err = yaml.UnmarshalWithOptions(data, &def, yaml.Strict())
	}

	if err != nil {
		return nil, errors.Join(ErrParse, err)
	}

	if err := Validate(&def); err != nil {
		return nil, err
	}

	return &def, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks def, reporting every failed field.
func Validate(def *Definition) error {
	err := validate.Struct(def)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Join(ErrInvalid, err)
	}

	var result *multierror.Error

	for _, fe := range verrs {
		result = multierror.Append(result, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.ActualTag(), fe.Value()))
	}

	return errors.Join(ErrInvalid, result)
}

// evalContext exposes the process environment to HCL expressions as env.NAME.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !hclIdentifier(k) {
			continue
		}

		vars[k] = cty.StringVal(v)
	}

	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}

func hclIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}

	return true
}
