//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-canvas-go/codeexecutor"
	"trpc.group/trpc-go/trpc-canvas-go/graph"
)

// scriptHandler runs the node content through the sandboxed runner with
// the nearest upstream textual content on stdin.
type scriptHandler struct {
	runner    codeexecutor.Runner
	outputDir string
}

func newScriptHandler(runner codeexecutor.Runner, outputDir string) *scriptHandler {
	return &scriptHandler{runner: runner, outputDir: outputDir}
}

func (h *scriptHandler) Type() graph.NodeType { return graph.NodeTypeScript }

func (h *scriptHandler) Execute(ctx context.Context, inv *Invocation) (*StepResult, error) {
	if h.runner == nil {
		return nil, Permanent(errors.New("no script runner configured"))
	}

	stdin, _ := upstreamText(inv.Previous)
	input := codeexecutor.Input{
		Code:  inv.Node.Content,
		Stdin: stdin,
	}
	policy := codeexecutor.Policy{
		AllowedModules: inv.Node.Meta().AllowedModules,
		OutputDir:      h.outputDir,
	}

	result, err := h.runner.Execute(ctx, input, policy)
	if err != nil {
		if errors.Is(err, codeexecutor.ErrPolicyViolation) {
			return nil, Permanent(err)
		}
		return nil, fmt.Errorf("execute script: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("script exited with code %d: %s", result.ExitCode, result.Stderr)
	}

	var logs []string
	if result.Stderr != "" {
		logs = append(logs, "stderr: "+result.Stderr)
	}
	return &StepResult{
		Content:     result.Stdout,
		ContentType: "text/plain",
		Logs:        logs,
	}, nil
}
