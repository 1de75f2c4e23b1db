//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory implementation of the storage
// service. It is suitable for testing and development environments.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-canvas-go/graph"
)

// Service is an in-memory implementation of storage.Service.
type Service struct {
	// nodes maps project id to node id to node.
	nodes map[string]map[string]*graph.Node
	// edges maps project id to the project's edge list.
	edges map[string][]*graph.Edge
	// order maps project id to node ids in insertion order, so listings are
	// stable.
	order map[string][]string
	// mutex protects concurrent access to all maps.
	mutex sync.RWMutex
}

// NewService creates a new in-memory storage service.
func NewService() *Service {
	return &Service{
		nodes: make(map[string]map[string]*graph.Node),
		edges: make(map[string][]*graph.Edge),
		order: make(map[string][]string),
	}
}

// GetNode returns a copy of the stored node.
func (s *Service) GetNode(ctx context.Context, projectID, nodeID string) (*graph.Node, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	node, ok := s.nodes[projectID][nodeID]
	if !ok {
		return nil, fmt.Errorf("node %q in project %q: %w", nodeID, projectID, graph.ErrNodeNotFound)
	}
	return cloneNode(node), nil
}

// ListNodes returns copies of every node in insertion order.
func (s *Service) ListNodes(ctx context.Context, projectID string) ([]*graph.Node, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := s.order[projectID]
	out := make([]*graph.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneNode(s.nodes[projectID][id]))
	}
	return out, nil
}

// ListEdges returns copies of every edge.
func (s *Service) ListEdges(ctx context.Context, projectID string) ([]*graph.Edge, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]*graph.Edge, 0, len(s.edges[projectID]))
	for _, e := range s.edges[projectID] {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

// CreateNode stores a new node, assigning an id when missing.
func (s *Service) CreateNode(ctx context.Context, projectID string, node *graph.Node) (*graph.Node, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.createNodeLocked(projectID, node)
}

// CreateNodeWithEdge stores a node and its connecting edge under one lock
// acquisition, so readers never observe the node without the edge.
func (s *Service) CreateNodeWithEdge(ctx context.Context, projectID string, node *graph.Node, edge *graph.Edge) (*graph.Node, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, err := s.createNodeLocked(projectID, node)
	if err != nil {
		return nil, err
	}
	e := *edge
	if e.To == "" {
		e.To = stored.ID
	}
	s.edges[projectID] = append(s.edges[projectID], &e)
	return stored, nil
}

// AddEdge stores a new edge.
func (s *Service) AddEdge(ctx context.Context, projectID string, edge *graph.Edge) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *edge
	s.edges[projectID] = append(s.edges[projectID], &copied)
	return nil
}

// UpdateNodeMetadata merges patch into the stored metadata.
func (s *Service) UpdateNodeMetadata(ctx context.Context, projectID, nodeID string, patch *graph.Metadata) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	node, ok := s.nodes[projectID][nodeID]
	if !ok {
		return fmt.Errorf("node %q in project %q: %w", nodeID, projectID, graph.ErrNodeNotFound)
	}
	node.Meta().Merge(patch)
	return nil
}

// UpdateNodeContent replaces the stored content.
func (s *Service) UpdateNodeContent(ctx context.Context, projectID, nodeID, content string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	node, ok := s.nodes[projectID][nodeID]
	if !ok {
		return fmt.Errorf("node %q in project %q: %w", nodeID, projectID, graph.ErrNodeNotFound)
	}
	node.Content = content
	return nil
}

func (s *Service) createNodeLocked(projectID string, node *graph.Node) (*graph.Node, error) {
	stored := cloneNode(node)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if s.nodes[projectID] == nil {
		s.nodes[projectID] = make(map[string]*graph.Node)
	}
	if _, exists := s.nodes[projectID][stored.ID]; exists {
		return nil, fmt.Errorf("node %q already exists in project %q", stored.ID, projectID)
	}
	s.nodes[projectID][stored.ID] = stored
	s.order[projectID] = append(s.order[projectID], stored.ID)
	return cloneNode(stored), nil
}

// cloneNode copies a node so callers never share storage-owned pointers.
func cloneNode(n *graph.Node) *graph.Node {
	copied := *n
	copied.Metadata = n.Metadata.Clone()
	return &copied
}
