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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"trpc.group/trpc-go/trpc-canvas-go/graph"
	"trpc.group/trpc-go/trpc-canvas-go/runlog"
)

// Version identifies the engine in input fingerprints. Bump on any change
// that alters what a given input produces.
const Version = "1.0.0"

// inputHash fingerprints one run's input: the engine version, the target
// node's configuration and a content hash per collected context node. The
// fingerprint is observability only; it never gates re-execution.
func inputHash(node *graph.Node, previous []graph.ContextNode) string {
	h := sha256.New()
	fmt.Fprintf(h, "v=%s\n", Version)
	fmt.Fprintf(h, "node=%s type=%s\n", node.ID, node.Type)
	fmt.Fprintf(h, "content=%s\n", hashString(node.Content))
	if node.Metadata != nil {
		if data, err := json.Marshal(node.Metadata); err == nil {
			fmt.Fprintf(h, "meta=%s\n", hashString(string(data)))
		}
	}
	for _, cn := range previous {
		fmt.Fprintf(h, "ctx=%s depth=%d hash=%s\n", cn.Node.ID, cn.Depth, hashString(cn.Node.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// structuralInputHash fingerprints a run that aborted before the node could
// be loaded.
func structuralInputHash(projectID, nodeID string) string {
	return hashString(fmt.Sprintf("v=%s project=%s node=%s", Version, projectID, nodeID))
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// createdNodeSummaries converts created nodes into run record entries.
func createdNodeSummaries(nodes []*graph.Node) []runlog.CreatedNode {
	if len(nodes) == 0 {
		return nil
	}
	summaries := make([]runlog.CreatedNode, 0, len(nodes))
	for _, n := range nodes {
		summaries = append(summaries, runlog.CreatedNode{
			ID:    n.ID,
			Type:  string(n.Type),
			Title: n.Title(),
		})
	}
	return summaries
}
