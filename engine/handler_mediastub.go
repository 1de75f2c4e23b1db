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
	"fmt"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-canvas-go/graph"
)

// mediaStubHandler synthesizes a placeholder result for generation
// backends that are not implemented yet.
type mediaStubHandler struct{}

func newMediaStubHandler() *mediaStubHandler { return &mediaStubHandler{} }

func (h *mediaStubHandler) Type() graph.NodeType { return graph.NodeTypeMediaStub }

func (h *mediaStubHandler) Execute(ctx context.Context, inv *Invocation) (*StepResult, error) {
	title := inv.Node.Title()
	if title == "" {
		title = string(inv.Node.Type)
	}
	jobID := "stub-" + uuid.NewString()
	return &StepResult{
		Content:     fmt.Sprintf("[placeholder] %s — generation backend not yet available", title),
		ContentType: "text/plain",
		Logs:        []string{"synthesized placeholder result"},
		ProviderMetadata: map[string]any{
			"provider": "stub",
			"job_id":   jobID,
		},
	}, nil
}
