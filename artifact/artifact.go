//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package artifact extracts typed artifacts from generative provider
// responses and materializes them as canvas nodes.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
)

// Kind is the artifact content kind.
type Kind string

const (
	// KindText is a textual artifact.
	KindText Kind = "text"
	// KindImage is an image reference (URL or data URI).
	KindImage Kind = "image"
	// KindVideo is a video reference (URL or data URI).
	KindVideo Kind = "video"
)

// Artifact is a typed value extracted from a provider response. Artifacts
// are ephemeral: each one is merged into an existing node, aggregated with
// other text artifacts, or turned into a new node plus connecting edge.
type Artifact struct {
	Kind  Kind
	Value string
	// Title is an optional display title picked up from a sibling field in
	// the response.
	Title string
}

// Signature returns the deterministic content signature of a value.
func Signature(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
