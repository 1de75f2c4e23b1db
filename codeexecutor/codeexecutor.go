//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package codeexecutor provides the interface for running user-supplied
// scripts from script nodes in an isolated sandbox.
package codeexecutor

import (
	"context"
	"errors"
	"time"
)

// ErrPolicyViolation marks a sandbox policy breach: a disallowed module
// import or filesystem access outside the scratch directory. Policy
// violations are deterministic and must not be retried.
var ErrPolicyViolation = errors.New("sandbox policy violation")

// DefaultTimeout is the wall-clock limit for one script execution.
const DefaultTimeout = 10 * time.Second

// Input is one script execution request.
type Input struct {
	// Code is the user-supplied script source.
	Code string
	// Stdin is the textual input handed to the script.
	Stdin string
}

// Result is the outcome of one script execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Policy constrains what a script may do.
type Policy struct {
	// AllowedModules is the import allow-list. Empty means the runner's
	// default safe set.
	AllowedModules []string
	// OutputDir is the only directory the script may write to. Empty
	// disables file output entirely.
	OutputDir string
	// Timeout is the wall-clock kill deadline; zero means DefaultTimeout.
	Timeout time.Duration
}

// Runner executes scripts under a policy.
type Runner interface {
	Execute(ctx context.Context, input Input, policy Policy) (Result, error)
}
