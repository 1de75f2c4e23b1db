//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package runlog

import (
	"context"
	"sync"
)

// Sink is an append-only store of run records, queryable by node for
// history display.
type Sink interface {
	// Append stores one record. Records are never updated or deleted.
	Append(ctx context.Context, record *Record) error
	// ListByNode returns the records for one node, oldest first.
	ListByNode(ctx context.Context, projectID, nodeID string) ([]*Record, error)
}

// InMemorySink keeps records in memory. Suitable for tests and development.
type InMemorySink struct {
	records []*Record
	mutex   sync.RWMutex
}

// NewInMemorySink creates an empty in-memory sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// Append stores a copy of the record.
func (s *InMemorySink) Append(ctx context.Context, record *Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *record
	s.records = append(s.records, &copied)
	return nil
}

// ListByNode returns copies of the node's records, oldest first.
func (s *InMemorySink) ListByNode(ctx context.Context, projectID, nodeID string) ([]*Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*Record
	for _, r := range s.records {
		if r.ProjectID == projectID && r.NodeID == nodeID {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}
