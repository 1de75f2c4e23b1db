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

	"trpc.group/trpc-go/trpc-canvas-go/graph"
)

// textHandler returns the node's stored content unchanged. It also serves
// as the fallback for node types with no dedicated handler, folders
// included.
type textHandler struct {
	nodeType graph.NodeType
}

func newTextHandler(nodeType graph.NodeType) *textHandler {
	return &textHandler{nodeType: nodeType}
}

func (h *textHandler) Type() graph.NodeType { return h.nodeType }

func (h *textHandler) Execute(ctx context.Context, inv *Invocation) (*StepResult, error) {
	return &StepResult{
		Content:     inv.Node.Content,
		ContentType: "text/plain",
	}, nil
}
