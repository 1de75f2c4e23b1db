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
	"encoding/json"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-canvas-go/graph"
	"trpc.group/trpc-go/trpc-canvas-go/internal/jsonfix"
	"trpc.group/trpc-go/trpc-canvas-go/model"
)

// Response shapes a generative node may configure.
const (
	shapeTree       = "tree"
	shapeSingle     = "single"
	shapeCollection = "collection"
)

// generativeHandler runs the node's prompt against the configured provider
// and branches on the node's response shape.
type generativeHandler struct {
	model model.Model
}

func newGenerativeHandler(m model.Model) *generativeHandler {
	return &generativeHandler{model: m}
}

func (h *generativeHandler) Type() graph.NodeType { return graph.NodeTypeGenerative }

func (h *generativeHandler) Execute(ctx context.Context, inv *Invocation) (*StepResult, error) {
	if h.model == nil {
		return nil, Permanent(fmt.Errorf("%w: no provider configured", model.ErrProvider))
	}

	meta := inv.Node.Meta()
	request := &model.Request{
		Model:        meta.Model,
		Instructions: meta.Instructions,
		Prompt:       buildPrompt(inv),
		Attachments:  collectAttachments(inv),
	}
	response, err := h.model.Generate(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	switch meta.ResponseShape {
	case shapeTree:
		return h.expandTree(ctx, inv, response)
	case shapeSingle:
		return h.materializeSingle(ctx, inv, response)
	case shapeCollection:
		return h.materializeCollection(ctx, inv, response)
	default:
		return h.passthrough(ctx, inv, response)
	}
}

// buildPrompt assembles the provider prompt from the node's own content,
// the collected upstream context and the downstream summaries.
func buildPrompt(inv *Invocation) string {
	var b strings.Builder
	b.WriteString(inv.Node.Content)

	if len(inv.Previous) > 0 {
		b.WriteString("\n\nContext:\n")
		for _, cn := range inv.Previous {
			switch cn.Node.Type {
			case graph.NodeTypeImage, graph.NodeTypeVideo:
				continue
			}
			if cn.Node.Content == "" {
				continue
			}
			if title := cn.Node.Title(); title != "" && title != cn.Node.Content {
				fmt.Fprintf(&b, "- [%s] %s\n", title, cn.Node.Content)
			} else {
				fmt.Fprintf(&b, "- %s\n", cn.Node.Content)
			}
		}
	}

	if len(inv.Next) > 0 {
		b.WriteString("\nDownstream:\n")
		for _, nn := range inv.Next {
			label := nn.Title
			if label == "" {
				label = string(nn.Type)
			}
			fmt.Fprintf(&b, "- %s\n", label)
		}
	}
	return b.String()
}

// collectAttachments pulls media inputs from upstream edges whose target
// handle names a semantic role.
func collectAttachments(inv *Invocation) []model.Attachment {
	var attachments []model.Attachment
	for _, e := range inv.Context.Edges {
		if e.To != inv.Node.ID || e.TargetHandle == "" {
			continue
		}
		upstream, ok := inv.Context.Nodes[e.From]
		if !ok {
			continue
		}
		url := attachmentURL(upstream)
		if url == "" {
			continue
		}
		attachments = append(attachments, model.Attachment{
			Role: e.TargetHandle,
			URL:  url,
		})
	}
	return attachments
}

// attachmentURL picks the media location carried by an upstream node.
func attachmentURL(n *graph.Node) string {
	meta := n.Meta()
	for _, candidate := range []string{meta.ImageURL, meta.VideoURL, meta.SourceURL, n.Content} {
		if urlLike(candidate) {
			return candidate
		}
	}
	return ""
}

func urlLike(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "data:")
}

// outputText renders a provider output as text. Non-string outputs are
// re-encoded as JSON.
func outputText(output any) string {
	if s, ok := output.(string); ok {
		return s
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprintf("%v", output)
	}
	return string(data)
}

// Keys tried, in order, when reading a tree node's title and children.
var (
	treeTitleKeys    = []string{"title", "name", "label", "text", "content"}
	treeChildrenKeys = []string{"children", "items", "nodes", "branches"}
)

// treeWork is one pending subtree expansion.
type treeWork struct {
	parent *graph.Node
	value  any
}

// expandTree parses the reply as nested JSON and expands it into a node
// subtree under the source node. A reply that does not parse is a provider
// error and stays retryable.
func (h *generativeHandler) expandTree(ctx context.Context, inv *Invocation, response *model.Response) (*StepResult, error) {
	text := outputText(response.Output)
	var doc any
	if err := jsonfix.Parse(text, &doc); err != nil {
		return nil, fmt.Errorf("%w: tree response is not valid JSON: %v", model.ErrProvider, err)
	}

	var (
		created  []*graph.Node
		ordinals = make(map[string]int)
	)
	stack := []treeWork{{parent: inv.Node, value: doc}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := item.value.(type) {
		case []any:
			// Reverse push keeps document order in creation order.
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, treeWork{parent: item.parent, value: v[i]})
			}
		case map[string]any:
			title := treeNodeTitle(v)
			if title == "" {
				continue
			}
			child, err := h.createTreeNode(ctx, inv, item.parent, title, response.JobID, ordinals)
			if err != nil {
				return nil, err
			}
			created = append(created, child)
			for _, key := range treeChildrenKeys {
				if children, ok := v[key]; ok {
					stack = append(stack, treeWork{parent: child, value: children})
					break
				}
			}
		case string:
			if v == "" {
				continue
			}
			child, err := h.createTreeNode(ctx, inv, item.parent, v, response.JobID, ordinals)
			if err != nil {
				return nil, err
			}
			created = append(created, child)
		}
	}

	logs := append([]string(nil), response.Logs...)
	logs = append(logs, fmt.Sprintf("expanded tree into %d nodes", len(created)))
	return &StepResult{
		Content:          text,
		ContentType:      "application/json",
		Logs:             logs,
		CreatedNodes:     created,
		ProviderMetadata: providerMetadata(response),
	}, nil
}

func treeNodeTitle(m map[string]any) string {
	for _, key := range treeTitleKeys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (h *generativeHandler) createTreeNode(ctx context.Context, inv *Invocation, parent *graph.Node, title, jobID string, ordinals map[string]int) (*graph.Node, error) {
	ordinal := ordinals[parent.ID]
	ordinals[parent.ID] = ordinal + 1

	node := &graph.Node{
		Type:    graph.NodeTypeText,
		Content: title,
		Metadata: &graph.Metadata{
			SourceNodeID: inv.Node.ID,
			SourceJobID:  jobID,
		},
		Position: graph.Point{
			X: parent.Position.X + parent.Width + 120,
			Y: parent.Position.Y + float64(ordinal)*90,
		},
	}
	edge := &graph.Edge{From: parent.ID, Label: graph.EdgeLabelArtifact}
	stored, err := inv.Store.CreateNodeWithEdge(ctx, inv.ProjectID, node, edge)
	if err != nil {
		return nil, fmt.Errorf("create tree node: %w", err)
	}
	return stored, nil
}

// materializeSingle extracts artifacts from the reply and returns either
// the aggregated text or the materialization summary.
func (h *generativeHandler) materializeSingle(ctx context.Context, inv *Invocation, response *model.Response) (*StepResult, error) {
	result, err := inv.Materializer.MaterializeResponse(ctx, inv.ProjectID, inv.Node, response.Output, response.JobID)
	if err != nil {
		return nil, fmt.Errorf("materialize: %w", err)
	}

	content := result.AggregatedText
	if content == "" && len(result.Logs) > 0 {
		content = result.Logs[len(result.Logs)-1]
	}
	return &StepResult{
		Content:          content,
		ContentType:      "text/plain",
		Logs:             append(append([]string(nil), response.Logs...), result.Logs...),
		CreatedNodes:     result.CreatedNodes,
		ProviderMetadata: providerMetadata(response),
	}, nil
}

// materializeCollection materializes the reply into a downstream folder,
// creating the folder when the node has none yet, and appends the created
// nodes to the folder's member list.
func (h *generativeHandler) materializeCollection(ctx context.Context, inv *Invocation, response *model.Response) (*StepResult, error) {
	folder, err := h.ensureFolder(ctx, inv)
	if err != nil {
		return nil, err
	}

	result, err := inv.Materializer.MaterializeResponse(ctx, inv.ProjectID, folder, response.Output, response.JobID)
	if err != nil {
		return nil, fmt.Errorf("materialize into folder: %w", err)
	}

	if len(result.CreatedNodes) > 0 {
		items := append([]string(nil), folder.Meta().FolderItems...)
		for _, n := range result.CreatedNodes {
			items = append(items, n.ID)
		}
		patch := &graph.Metadata{FolderItems: items}
		if err := inv.Store.UpdateNodeMetadata(ctx, inv.ProjectID, folder.ID, patch); err != nil {
			return nil, fmt.Errorf("update folder members: %w", err)
		}
	}

	logs := append(append([]string(nil), response.Logs...), result.Logs...)
	logs = append(logs, fmt.Sprintf("collected %d nodes into folder %s", len(result.CreatedNodes), folder.ID))
	return &StepResult{
		Content:          fmt.Sprintf("collection of %d items", len(folder.Meta().FolderItems)+len(result.CreatedNodes)),
		ContentType:      "text/plain",
		Logs:             logs,
		CreatedNodes:     result.CreatedNodes,
		ProviderMetadata: providerMetadata(response),
	}, nil
}

// ensureFolder returns the node's downstream folder, creating one when no
// outgoing edge reaches a folder yet.
func (h *generativeHandler) ensureFolder(ctx context.Context, inv *Invocation) (*graph.Node, error) {
	for _, e := range inv.Context.Edges {
		if e.From != inv.Node.ID {
			continue
		}
		if n, ok := inv.Context.Nodes[e.To]; ok && n.Type == graph.NodeTypeFolder {
			return n, nil
		}
	}

	folder := &graph.Node{
		Type: graph.NodeTypeFolder,
		Metadata: &graph.Metadata{
			Title:        inv.Node.Title() + " results",
			SourceNodeID: inv.Node.ID,
		},
		Position: graph.Point{
			X: inv.Node.Position.X + inv.Node.Width + 120,
			Y: inv.Node.Position.Y,
		},
	}
	edge := &graph.Edge{From: inv.Node.ID, Label: graph.EdgeLabelArtifact}
	stored, err := inv.Store.CreateNodeWithEdge(ctx, inv.ProjectID, folder, edge)
	if err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return stored, nil
}

// passthrough returns the raw text, still materializing artifacts when the
// output looks structured.
func (h *generativeHandler) passthrough(ctx context.Context, inv *Invocation, response *model.Response) (*StepResult, error) {
	text := outputText(response.Output)
	step := &StepResult{
		Content:          text,
		ContentType:      "text/plain",
		Logs:             append([]string(nil), response.Logs...),
		ProviderMetadata: providerMetadata(response),
	}

	_, isString := response.Output.(string)
	if !isString || jsonfix.LooksStructured(text) {
		result, err := inv.Materializer.MaterializeResponse(ctx, inv.ProjectID, inv.Node, response.Output, response.JobID)
		if err != nil {
			return nil, fmt.Errorf("materialize: %w", err)
		}
		step.Logs = append(step.Logs, result.Logs...)
		step.CreatedNodes = result.CreatedNodes
	}
	return step, nil
}

func providerMetadata(response *model.Response) map[string]any {
	if response.ProviderMetadata == nil && response.JobID == "" {
		return nil
	}
	meta := make(map[string]any, len(response.ProviderMetadata)+1)
	for k, v := range response.ProviderMetadata {
		meta[k] = v
	}
	if response.JobID != "" {
		meta["job_id"] = response.JobID
	}
	return meta
}
