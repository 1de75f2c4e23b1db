//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package storage defines the persistence service the execution engine
// consumes. Implementations are assumed internally consistent (no partial
// node without an id) but not transactional across calls unless a method
// says so.
package storage

import (
	"context"

	"trpc.group/trpc-go/trpc-canvas-go/graph"
)

// Service is the narrow persistence interface for project graphs.
// All operations are scoped by project id.
type Service interface {
	// GetNode returns one node or graph.ErrNodeNotFound.
	GetNode(ctx context.Context, projectID, nodeID string) (*graph.Node, error)
	// ListNodes returns every node in the project.
	ListNodes(ctx context.Context, projectID string) ([]*graph.Node, error)
	// ListEdges returns every edge in the project.
	ListEdges(ctx context.Context, projectID string) ([]*graph.Edge, error)
	// CreateNode persists a new node. A missing id is assigned by the
	// implementation; the stored node is returned.
	CreateNode(ctx context.Context, projectID string, node *graph.Node) (*graph.Node, error)
	// CreateNodeWithEdge persists a node and its connecting edge atomically:
	// the node is never visible without the edge.
	CreateNodeWithEdge(ctx context.Context, projectID string, node *graph.Node, edge *graph.Edge) (*graph.Node, error)
	// AddEdge persists a new edge.
	AddEdge(ctx context.Context, projectID string, edge *graph.Edge) error
	// UpdateNodeMetadata merges patch into the node's stored metadata.
	UpdateNodeMetadata(ctx context.Context, projectID, nodeID string, patch *graph.Metadata) error
	// UpdateNodeContent replaces the node's stored content.
	UpdateNodeContent(ctx context.Context, projectID, nodeID, content string) error
}
