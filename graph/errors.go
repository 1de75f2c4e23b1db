//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "errors"

var (
	// ErrNodeNotFound is returned when the target node does not exist in the
	// project.
	ErrNodeNotFound = errors.New("node not found")
	// ErrCyclicGraph is returned when the project graph cannot be
	// topologically ordered.
	ErrCyclicGraph = errors.New("graph contains a cycle")
)
