//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package graph defines the canvas node/edge model and per-run execution
// context construction.
package graph

// NodeType represents the type of a node on the canvas.
type NodeType string

const (
	// NodeTypeText represents a plain text node.
	NodeTypeText NodeType = "text"
	// NodeTypeGenerative represents a node backed by a generative provider.
	NodeTypeGenerative NodeType = "generative"
	// NodeTypeParser represents a node that parses upstream textual content.
	NodeTypeParser NodeType = "parser"
	// NodeTypeScript represents a node that runs user-supplied code in a sandbox.
	NodeTypeScript NodeType = "script"
	// NodeTypeMediaStub represents a placeholder for a not-yet-implemented
	// media generation backend.
	NodeTypeMediaStub NodeType = "media-stub"
	// NodeTypeFolder represents a container node that groups other nodes by
	// reference.
	NodeTypeFolder NodeType = "folder"
	// NodeTypeImage represents an image artifact node.
	NodeTypeImage NodeType = "image"
	// NodeTypeVideo represents a video artifact node.
	NodeTypeVideo NodeType = "video"
)

// EdgeLabelArtifact is the fixed label carried by every edge the engine
// creates when materializing an artifact.
const EdgeLabelArtifact = "artifact"

// Point is a position on the canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EdgeRef is a denormalized reference to one side of an edge, kept on nodes
// for display purposes only. The edge list is authoritative.
type EdgeRef struct {
	NodeID string `json:"node_id"`
	Label  string `json:"label,omitempty"`
}

// ConnectionSummary summarizes a node's incoming and outgoing edges.
// Informational only; never consulted by traversal.
type ConnectionSummary struct {
	Incoming []EdgeRef `json:"incoming,omitempty"`
	Outgoing []EdgeRef `json:"outgoing,omitempty"`
}

// Node represents a unit of work or content on the canvas.
type Node struct {
	// ID is the unique identifier of the node.
	ID string `json:"id"`
	// Type is the type of the node.
	Type NodeType `json:"type"`
	// Content is the optional string payload of the node.
	Content string `json:"content,omitempty"`
	// Metadata holds typed per-node business data plus provider pass-through
	// extras. Never nil after creation through the storage layer.
	Metadata *Metadata `json:"metadata,omitempty"`
	// Position is the node's top-left corner on the canvas.
	Position Point `json:"position"`
	// Width and Height describe the node's bounding box.
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	// Hidden marks nodes not currently visible on the canvas.
	Hidden bool `json:"hidden,omitempty"`
	// Connections is a denormalized edge summary.
	Connections ConnectionSummary `json:"connections,omitempty"`
}

// Meta returns the node's metadata, never nil.
func (n *Node) Meta() *Metadata {
	if n.Metadata == nil {
		n.Metadata = &Metadata{}
	}
	return n.Metadata
}

// Title returns the display title for the node: the metadata title when set,
// otherwise a prefix of the content.
func (n *Node) Title() string {
	if n.Metadata != nil && n.Metadata.Title != "" {
		return n.Metadata.Title
	}
	const maxTitle = 48
	if len(n.Content) > maxTitle {
		return n.Content[:maxTitle]
	}
	return n.Content
}

// Edge represents a directed, optionally labeled connection between two
// nodes. SourceHandle/TargetHandle route generative inputs to named semantic
// roles, e.g. "style_reference".
type Edge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Label        string `json:"label,omitempty"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}
