// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	// FileName is the settings file name, without extension.
	FileName = "upscaler"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "UPSCALER"
)

var (
	// ErrLoad is returned when a settings file exists but cannot be read.
	ErrLoad = errors.New("failed to load settings")
	// ErrInvalid is returned when the merged settings fail validation.
	ErrInvalid = errors.New("invalid settings")
)

// Settings are the application settings.
type Settings struct {
	OutputDir     string `mapstructure:"output_dir" yaml:"output_dir" validate:"required"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=pretty json"`
	Registry      string `mapstructure:"registry" yaml:"registry"`
	ModelCacheDir string `mapstructure:"model_cache_dir" yaml:"model_cache_dir"`
	History       string `mapstructure:"history" yaml:"history"`
	Report        bool   `mapstructure:"report" yaml:"report"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	cacheDir := ""
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, FileName, "models")
	}

	return Settings{
		OutputDir:     "./upscaled",
		LogLevel:      "warn",
		LogFormat:     "pretty",
		Registry:      filepath.Join("models", "registry.yaml"),
		ModelCacheDir: cacheDir,
		Report:        true,
	}
}

type options struct {
	fs          afero.Fs
	file        string
	searchPaths []string
}

// Option configures Load.
type Option func(*options)

// WithFs sets the filesystem settings files are read from.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithFile reads settings from path instead of searching. The file must exist.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithSearchPaths replaces the directories searched for upscaler.yaml.
func WithSearchPaths(paths ...string) Option {
	return func(o *options) {
		o.searchPaths = paths
	}
}

// DefaultSearchPaths returns the working directory and $HOME/.config/upscaler.
func DefaultSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", FileName))
	}

	return paths
}

// Load merges the defaults, the settings file when one is found and the environment.
// It also returns the file that was read, or "" when none was found.
func Load(opts ...Option) (*Settings, string, error) {
	o := &options{
		fs:          afero.NewOsFs(),
		searchPaths: DefaultSearchPaths(),
	}

	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	v.SetFs(o.fs)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Defaults()
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("registry", def.Registry)
	v.SetDefault("model_cache_dir", def.ModelCacheDir)
	v.SetDefault("history", def.History)
	v.SetDefault("report", def.Report)

	if o.file != "" {
		v.SetConfigFile(o.file)
	} else {
		v.SetConfigName(FileName)

		for _, p := range o.searchPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.file != "" || !errors.As(err, &notFound) {
			return nil, "", errors.Join(ErrLoad, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, "", errors.Join(ErrLoad, err)
	}

	s.LogLevel = strings.ToLower(s.LogLevel)
	s.LogFormat = strings.ToLower(s.LogFormat)

	if err := s.Validate(); err != nil {
		return nil, "", err
	}

	return &s, v.ConfigFileUsed(), nil
}

var validate = validator.New()

// Validate checks the settings values and reports the first offending field.
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s must satisfy %q, got %q", ErrInvalid, fe.Field(), fe.ActualTag(), fe.Value())
	}

	return errors.Join(ErrInvalid, err)
}
