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

	"trpc.group/trpc-go/trpc-canvas-go/graph"
	"trpc.group/trpc-go/trpc-canvas-go/parser"
)

// parserHandler turns the nearest upstream textual content into a
// structured extraction.
type parserHandler struct{}

func newParserHandler() *parserHandler { return &parserHandler{} }

func (h *parserHandler) Type() graph.NodeType { return graph.NodeTypeParser }

func (h *parserHandler) Execute(ctx context.Context, inv *Invocation) (*StepResult, error) {
	content, ok := upstreamText(inv.Previous)
	if !ok {
		return nil, Permanent(errors.New("parser node has no upstream textual content"))
	}

	extraction, err := parser.Parse(content)
	if err != nil {
		if errors.Is(err, parser.ErrSchemaValidation) {
			// The same input parses the same way every time; retrying
			// cannot help.
			return nil, Permanent(err)
		}
		return nil, fmt.Errorf("parse upstream content: %w", err)
	}

	return &StepResult{
		Content:     extraction.Format(),
		ContentType: "text/markdown",
		Logs: []string{
			fmt.Sprintf("extracted %q with %d links", extraction.Title, len(extraction.Links)),
		},
	}, nil
}
