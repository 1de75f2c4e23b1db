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

	"trpc.group/trpc-go/trpc-canvas-go/artifact"
	"trpc.group/trpc-go/trpc-canvas-go/asset"
	"trpc.group/trpc-go/trpc-canvas-go/graph"
	"trpc.group/trpc-go/trpc-canvas-go/storage"
)

// Invocation carries everything one handler execution may need. Handlers
// hold no shared mutable state; all collaboration goes through the
// invocation.
type Invocation struct {
	// ProjectID scopes every storage operation of this run.
	ProjectID string
	// Node is the node being executed.
	Node *graph.Node
	// Context is the per-run execution context over the whole project.
	Context *graph.ExecutionContext
	// Previous are the depth-bounded upstream nodes, topologically ordered,
	// folders already expanded.
	Previous []graph.ContextNode
	// Next are the depth-bounded downstream node summaries.
	Next []graph.NextNode

	Store        storage.Service
	Assets       asset.Service
	Materializer *artifact.Materializer
}

// StepResult is the normalized outcome every handler produces.
type StepResult struct {
	// Content is the node's new stored content.
	Content string
	// ContentType describes Content, e.g. "text/plain".
	ContentType string
	// Logs are human-readable lines describing the step.
	Logs []string
	// CreatedNodes are nodes materialized during the step.
	CreatedNodes []*graph.Node
	// ProviderMetadata carries provider pass-through data into the run
	// record.
	ProviderMetadata map[string]any
}

// Handler executes nodes of one type.
type Handler interface {
	// Type reports the node type this handler serves.
	Type() graph.NodeType
	// Execute runs one dispatch attempt for the node.
	Execute(ctx context.Context, inv *Invocation) (*StepResult, error)
}

// upstreamText returns the content of the nearest upstream node that
// carries text, preferring the closest hop. Previous is topologically
// ordered, so within one hop distance the later entry is the closer one.
func upstreamText(previous []graph.ContextNode) (string, bool) {
	bestDepth := -1
	content := ""
	for _, cn := range previous {
		if cn.Node.Content == "" {
			continue
		}
		switch cn.Node.Type {
		case graph.NodeTypeImage, graph.NodeTypeVideo:
			continue
		}
		if bestDepth == -1 || cn.Depth <= bestDepth {
			bestDepth = cn.Depth
			content = cn.Node.Content
		}
	}
	return content, content != ""
}
