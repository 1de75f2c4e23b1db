//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads engine configuration from config.yml and .env files
// with environment variable overrides. Everything has a built-in default;
// running without any config file is fully supported.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"trpc.group/trpc-go/trpc-canvas-go/log"
)

// envPrefix namespaces environment overrides, e.g. CANVAS_PROVIDER_NAME.
const envPrefix = "CANVAS"

// ProviderConfig selects and parameterizes the generative provider.
type ProviderConfig struct {
	// Name is the provider to use: "openai", "gemini" or "stub".
	Name string `mapstructure:"name"`
	// Model overrides the provider's default model.
	Model string `mapstructure:"model"`
	// APIKey falls back to the provider's own environment variable when
	// empty.
	APIKey string `mapstructure:"api_key"`
	// BaseURL points at a compatible alternative endpoint.
	BaseURL string `mapstructure:"base_url"`
}

// RetryConfig bounds the dispatch retry loop.
type RetryConfig struct {
	MaxAttempts int             `mapstructure:"max_attempts"`
	Backoff     []time.Duration `mapstructure:"backoff"`
}

// ContextConfig sets the context collection depths.
type ContextConfig struct {
	PreviousDepth int `mapstructure:"previous_depth"`
	NextDepth     int `mapstructure:"next_depth"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `mapstructure:"driver"`
	// Path is the sqlite database file.
	Path string `mapstructure:"path"`
}

// ScriptConfig parameterizes the script sandbox.
type ScriptConfig struct {
	// OutputDir is the scratch directory scripts may write to.
	OutputDir string `mapstructure:"output_dir"`
	// Timeout is the wall-clock kill deadline.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config is the full engine configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Provider ProviderConfig `mapstructure:"provider"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Context  ContextConfig  `mapstructure:"context"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Script   ScriptConfig   `mapstructure:"script"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Provider: ProviderConfig{
			Name: "stub",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Backoff:     []time.Duration{0, time.Second, 2 * time.Second},
		},
		Context: ContextConfig{
			PreviousDepth: 3,
			NextDepth:     1,
		},
		Storage: StorageConfig{
			Driver: "memory",
			Path:   "canvas.db",
		},
		Script: ScriptConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Options controls where Load looks for files.
type Options struct {
	// ConfigFile is an explicit config file path. Empty means search the
	// standard locations.
	ConfigFile string
	// EnvFile is an explicit .env path. Empty means search.
	EnvFile string
}

// Option configures Load.
type Option func(*Options)

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) Option {
	return func(o *Options) { o.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) Option {
	return func(o *Options) { o.EnvFile = path }
}

var configSearchPaths = []string{
	"./config.yml",
	"./config/config.yml",
	"../config.yml",
}

var envSearchPaths = []string{
	"./.env",
	"../.env",
}

// Load builds the configuration: defaults, then config.yml, then .env, then
// process environment, later sources winning. Missing files are not errors.
func Load(opts ...Option) (*Config, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	// .env first so the viper environment pass below sees its variables.
	if path := firstExisting(options.EnvFile, envSearchPaths); path != "" {
		if err := godotenv.Load(path); err != nil {
			log.Warnf("load env file %s: %v", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := firstExisting(options.ConfigFile, configSearchPaths); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key with viper so environment overrides are
// visible to Unmarshal. Values mirror Default().
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("provider.name", d.Provider.Name)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.api_key", d.Provider.APIKey)
	v.SetDefault("provider.base_url", d.Provider.BaseURL)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.backoff", d.Retry.Backoff)
	v.SetDefault("context.previous_depth", d.Context.PreviousDepth)
	v.SetDefault("context.next_depth", d.Context.NextDepth)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("script.output_dir", d.Script.OutputDir)
	v.SetDefault("script.timeout", d.Script.Timeout)
}

// firstExisting returns the explicit path when it exists, otherwise the
// first search path that exists. Missing files are not errors.
func firstExisting(explicit string, searchPaths []string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}
	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
