//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package lua provides a codeexecutor.Runner that executes scripts in an
// in-process Lua sandbox. No libraries are loaded by default; the policy
// allow-list controls what require() may return, and file output is limited
// to the policy's scratch directory.
package lua

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"trpc.group/trpc-go/trpc-canvas-go/codeexecutor"
)

// defaultAllowedModules is the safe standard set scripts may require.
var defaultAllowedModules = []string{"string", "table", "math"}

// Runner executes scripts in a sandboxed Lua state.
type Runner struct {
	timeout time.Duration
}

// Option configures the runner.
type Option func(*Runner)

// WithTimeout sets the default wall-clock limit, used when the policy does
// not set its own.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) { r.timeout = timeout }
}

// New creates a sandboxed Lua runner.
func New(opts ...Option) *Runner {
	r := &Runner{timeout: codeexecutor.DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// session tracks one execution's captured output and policy state.
type session struct {
	stdout    strings.Builder
	stderr    strings.Builder
	violation error
}

// Execute runs one script. The context deadline is the wall-clock kill:
// gopher-lua aborts the running state when the context expires. Script
// errors surface as a non-zero exit code; policy violations surface as
// codeexecutor.ErrPolicyViolation.
func (r *Runner) Execute(ctx context.Context, input codeexecutor.Input, policy codeexecutor.Policy) (codeexecutor.Result, error) {
	timeout := policy.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	st := &session{}
	allowed := policy.AllowedModules
	if allowed == nil {
		allowed = defaultAllowedModules
	}
	openSafeLibs(L, allowed)
	registerAPI(L, st, input.Stdin, policy, allowed)

	fn, err := L.LoadString(input.Code)
	if err != nil {
		return codeexecutor.Result{Stderr: err.Error(), ExitCode: 1}, nil
	}
	L.Push(fn)
	callErr := L.PCall(0, lua.MultRet, nil)

	if st.violation != nil {
		return codeexecutor.Result{
			Stdout:   st.stdout.String(),
			Stderr:   st.violation.Error(),
			ExitCode: 1,
		}, st.violation
	}
	if callErr != nil {
		st.stderr.WriteString(callErr.Error())
		return codeexecutor.Result{
			Stdout:   st.stdout.String(),
			Stderr:   st.stderr.String(),
			ExitCode: 1,
		}, nil
	}

	// Returned values append to stdout so pure-expression scripts produce
	// output without calling print.
	for i := 1; i <= L.GetTop(); i++ {
		st.stdout.WriteString(lua.LVAsString(L.ToStringMeta(L.Get(i))))
	}

	return codeexecutor.Result{
		Stdout: st.stdout.String(),
		Stderr: st.stderr.String(),
	}, nil
}

// openSafeLibs loads the base library plus the allow-listed standard
// modules, then strips the base functions that reach outside the sandbox.
func openSafeLibs(L *lua.LState, allowed []string) {
	lua.OpenBase(L)
	for _, name := range allowed {
		switch name {
		case "string":
			lua.OpenString(L)
		case "table":
			lua.OpenTable(L)
		case "math":
			lua.OpenMath(L)
		}
	}

	// No dynamic code loading, no file access, no stdout other than the
	// captured print.
	for _, name := range []string{"loadfile", "dofile", "load", "loadstring", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// registerAPI installs the captured print, the policy-checked require and
// the scratch-directory writer.
func registerAPI(L *lua.LState, st *session, stdin string, policy codeexecutor.Policy, allowed []string) {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = struct{}{}
	}

	L.SetGlobal("input", lua.LString(stdin))

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		for i := 1; i <= top; i++ {
			if i > 1 {
				st.stdout.WriteString("\t")
			}
			st.stdout.WriteString(lua.LVAsString(L.ToStringMeta(L.Get(i))))
		}
		st.stdout.WriteString("\n")
		return 0
	}))

	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if _, ok := allowedSet[name]; !ok {
			st.violation = fmt.Errorf("%w: module %q is not allow-listed", codeexecutor.ErrPolicyViolation, name)
			L.RaiseError("module %q is not allow-listed", name)
			return 0
		}
		L.Push(L.GetGlobal(name))
		return 1
	}))

	L.SetGlobal("write_output", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		data := L.CheckString(2)
		if policy.OutputDir == "" {
			st.violation = fmt.Errorf("%w: file output is disabled", codeexecutor.ErrPolicyViolation)
			L.RaiseError("file output is disabled")
			return 0
		}
		clean := filepath.Clean(name)
		if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
			st.violation = fmt.Errorf("%w: path %q escapes the output directory", codeexecutor.ErrPolicyViolation, name)
			L.RaiseError("path %q escapes the output directory", name)
			return 0
		}
		path := filepath.Join(policy.OutputDir, clean)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			L.RaiseError("create output directory: %v", err)
			return 0
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			L.RaiseError("write output file: %v", err)
			return 0
		}
		return 0
	}))
}
