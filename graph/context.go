//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"fmt"
	"sort"
)

const (
	// MaxContextDepth caps how far context collection may traverse,
	// regardless of the requested depth. Generative calls have finite input
	// budgets; unbounded ancestor traversal on a large canvas would blow the
	// budget long before it improved the prompt.
	MaxContextDepth = 10
	// DefaultFolderContextLimit is the number of trailing folder members
	// exposed during collection when the folder does not configure its own
	// limit.
	DefaultFolderContextLimit = 6
	// MaxFolderContextLimit caps per-folder configured limits.
	MaxFolderContextLimit = 24
)

// Store is the subset of the persistence service needed to build execution
// contexts.
type Store interface {
	ListNodes(ctx context.Context, projectID string) ([]*Node, error)
	ListEdges(ctx context.Context, projectID string) ([]*Edge, error)
}

// ExecutionContext is the ephemeral, per-run view of a project graph.
// It is built fresh for every run and never persisted.
type ExecutionContext struct {
	// Target is the node being executed.
	Target *Node
	// Nodes maps node ids to nodes for the whole project.
	Nodes map[string]*Node
	// Edges is the full project edge list.
	Edges []*Edge
	// Order is a topological order over every node id.
	Order []string

	// orderIndex maps node id to its position in Order.
	orderIndex map[string]int
	// incoming/outgoing are adjacency lists derived from Edges.
	incoming map[string][]*Edge
	outgoing map[string][]*Edge
}

// ContextNode is an ancestor captured during upstream collection, tagged
// with the hop distance at which it was first discovered.
type ContextNode struct {
	Node  *Node
	Depth int
}

// NextNode is a lightweight descriptor of a downstream node. Successor
// content is never needed for execution, only for prompting context, so full
// nodes are not returned.
type NextNode struct {
	ID          string
	Type        NodeType
	Title       string
	Description string
	// EdgeLabel is the label on the first hop leading toward this node.
	EdgeLabel string
}

// BuildContext loads the project graph, orders it topologically and returns
// the execution context for nodeID. It fails with ErrNodeNotFound when the
// node does not exist and ErrCyclicGraph when the graph cannot be ordered.
// Structural failures happen before any side effect.
func BuildContext(ctx context.Context, store Store, projectID, nodeID string) (*ExecutionContext, error) {
	nodes, err := store.ListNodes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	edges, err := store.ListEdges(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	nodeMap := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		nodeMap[n.ID] = n
	}
	target, ok := nodeMap[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %q in project %q: %w", nodeID, projectID, ErrNodeNotFound)
	}

	ec := &ExecutionContext{
		Target:   target,
		Nodes:    nodeMap,
		Edges:    edges,
		incoming: make(map[string][]*Edge),
		outgoing: make(map[string][]*Edge),
	}
	for _, e := range edges {
		// Edges referencing unknown nodes are tolerated in storage but
		// excluded from traversal.
		if _, ok := nodeMap[e.From]; !ok {
			continue
		}
		if _, ok := nodeMap[e.To]; !ok {
			continue
		}
		ec.outgoing[e.From] = append(ec.outgoing[e.From], e)
		ec.incoming[e.To] = append(ec.incoming[e.To], e)
	}

	order, err := ec.topologicalOrder()
	if err != nil {
		return nil, err
	}
	ec.Order = order
	ec.orderIndex = make(map[string]int, len(order))
	for i, id := range order {
		ec.orderIndex[id] = i
	}
	return ec, nil
}

// topologicalOrder runs Kahn's algorithm over the whole project. The seed
// queue and neighbor expansion are sorted by node id so the order is
// deterministic for a fixed store state.
func (ec *ExecutionContext) topologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(ec.Nodes))
	for id := range ec.Nodes {
		indegree[id] = 0
	}
	for _, edges := range ec.outgoing {
		for _, e := range edges {
			indegree[e.To]++
		}
	}

	queue := make([]string, 0, len(ec.Nodes))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(ec.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := make([]string, 0, len(ec.outgoing[id]))
		for _, e := range ec.outgoing[id] {
			indegree[e.To]--
			if indegree[e.To] == 0 {
				next = append(next, e.To)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
	}

	if len(order) != len(ec.Nodes) {
		return nil, fmt.Errorf("ordered %d of %d nodes: %w", len(order), len(ec.Nodes), ErrCyclicGraph)
	}
	return order, nil
}

// OrderIndex returns the position of id in the topological order, or -1.
func (ec *ExecutionContext) OrderIndex(id string) int {
	if idx, ok := ec.orderIndex[id]; ok {
		return idx
	}
	return -1
}

// CollectPrevious captures every ancestor of nodeID reachable within
// maxDepth hops over incoming edges, tagged with the depth at first
// discovery. Results are ordered by topological position, shallower depth
// winning ties. Folder ancestors splice in their trailing members directly
// after the folder without traversing member ancestry. maxDepth <= 0 yields
// nil.
func (ec *ExecutionContext) CollectPrevious(nodeID string, maxDepth int) []ContextNode {
	if maxDepth <= 0 {
		return nil
	}
	if maxDepth > MaxContextDepth {
		maxDepth = MaxContextDepth
	}

	depths := map[string]int{nodeID: 0}
	frontier := []string{nodeID}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, e := range ec.incoming[id] {
				if _, seen := depths[e.From]; seen {
					continue
				}
				depths[e.From] = depth
				next = append(next, e.From)
			}
		}
		frontier = next
	}

	collected := make([]ContextNode, 0, len(depths)-1)
	for id, depth := range depths {
		if id == nodeID {
			continue
		}
		collected = append(collected, ContextNode{Node: ec.Nodes[id], Depth: depth})
	}
	sort.SliceStable(collected, func(i, j int) bool {
		oi, oj := ec.OrderIndex(collected[i].Node.ID), ec.OrderIndex(collected[j].Node.ID)
		if oi != oj {
			return oi < oj
		}
		return collected[i].Depth < collected[j].Depth
	})

	return ec.expandFolders(collected)
}

// expandFolders splices the trailing members of each collected folder node
// in directly after the folder, preserving declared member order and
// skipping ids already present in the result.
func (ec *ExecutionContext) expandFolders(collected []ContextNode) []ContextNode {
	seen := make(map[string]struct{}, len(collected))
	for _, cn := range collected {
		seen[cn.Node.ID] = struct{}{}
	}

	out := make([]ContextNode, 0, len(collected))
	for _, cn := range collected {
		out = append(out, cn)
		if cn.Node.Type != NodeTypeFolder || cn.Node.Metadata == nil {
			continue
		}
		for _, memberID := range folderTail(cn.Node.Metadata) {
			member, ok := ec.Nodes[memberID]
			if !ok {
				continue
			}
			if _, dup := seen[memberID]; dup {
				continue
			}
			seen[memberID] = struct{}{}
			out = append(out, ContextNode{Node: member, Depth: cn.Depth})
		}
	}
	return out
}

// folderTail returns the last N declared members of a folder, oldest first
// within the kept tail.
func folderTail(meta *Metadata) []string {
	limit := meta.FolderContextLimit
	if limit <= 0 {
		limit = DefaultFolderContextLimit
	}
	if limit > MaxFolderContextLimit {
		limit = MaxFolderContextLimit
	}
	items := meta.FolderItems
	if len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items
}

// CollectNext is the forward analogue of CollectPrevious. It returns
// lightweight descriptors rather than full nodes, each carrying the label of
// the first outgoing hop on its discovery path.
func (ec *ExecutionContext) CollectNext(nodeID string, maxDepth int) []NextNode {
	if maxDepth <= 0 {
		return nil
	}
	if maxDepth > MaxContextDepth {
		maxDepth = MaxContextDepth
	}

	type visit struct {
		id        string
		edgeLabel string
	}
	seen := map[string]struct{}{nodeID: {}}
	var found []visit
	frontier := []visit{{id: nodeID}}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []visit
		for _, v := range frontier {
			for _, e := range ec.outgoing[v.id] {
				if _, dup := seen[e.To]; dup {
					continue
				}
				seen[e.To] = struct{}{}
				label := v.edgeLabel
				if depth == 1 {
					label = e.Label
				}
				nv := visit{id: e.To, edgeLabel: label}
				found = append(found, nv)
				next = append(next, nv)
			}
		}
		frontier = next
	}

	sort.SliceStable(found, func(i, j int) bool {
		return ec.OrderIndex(found[i].id) < ec.OrderIndex(found[j].id)
	})

	out := make([]NextNode, 0, len(found))
	for _, v := range found {
		n := ec.Nodes[v.id]
		nn := NextNode{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title(),
			EdgeLabel: v.edgeLabel,
		}
		if n.Metadata != nil {
			nn.Description = n.Metadata.Description
		}
		out = append(out, nn)
	}
	return out
}
