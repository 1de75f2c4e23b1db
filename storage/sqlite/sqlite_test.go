//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-canvas-go/graph"
	"trpc.group/trpc-go/trpc-canvas-go/runlog"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "canvas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNodeRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	created, err := s.CreateNode(ctx, "p1", &graph.Node{
		Type:    graph.NodeTypeImage,
		Content: "https://example.com/a.png",
		Metadata: &graph.Metadata{
			ImageURL:          "https://example.com/a.png",
			ArtifactSignature: "sig",
			Extra:             map[string]any{"provider_seed": "42"},
		},
		Position: graph.Point{X: 10, Y: 20},
		Hidden:   true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.GetNode(ctx, "p1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, graph.NodeTypeImage, got.Type)
	assert.Equal(t, "https://example.com/a.png", got.Metadata.ImageURL)
	assert.Equal(t, "sig", got.Metadata.ArtifactSignature)
	assert.Equal(t, "42", got.Metadata.Extra["provider_seed"])
	assert.Equal(t, 10.0, got.Position.X)
	assert.True(t, got.Hidden)

	_, err = s.GetNode(ctx, "p1", "missing")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestCreateNodeWithEdgeTransactional(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	source, err := s.CreateNode(ctx, "p1", &graph.Node{Type: graph.NodeTypeGenerative})
	require.NoError(t, err)

	created, err := s.CreateNodeWithEdge(ctx, "p1",
		&graph.Node{Type: graph.NodeTypeVideo},
		&graph.Edge{From: source.ID, Label: graph.EdgeLabelArtifact})
	require.NoError(t, err)

	edges, err := s.ListEdges(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, created.ID, edges[0].To)

	// Duplicate node id makes the whole transaction roll back: no orphan
	// edge appears.
	_, err = s.CreateNodeWithEdge(ctx, "p1",
		&graph.Node{ID: created.ID, Type: graph.NodeTypeVideo},
		&graph.Edge{From: source.ID, Label: graph.EdgeLabelArtifact})
	require.Error(t, err)

	edges, err = s.ListEdges(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestUpdateNodeContentAndMetadata(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	created, err := s.CreateNode(ctx, "p1", &graph.Node{
		Type:     graph.NodeTypeText,
		Metadata: &graph.Metadata{Title: "old", Model: "keep"},
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateNodeContent(ctx, "p1", created.ID, "updated"))
	require.NoError(t, s.UpdateNodeMetadata(ctx, "p1", created.ID, &graph.Metadata{Title: "new"}))

	got, err := s.GetNode(ctx, "p1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Content)
	assert.Equal(t, "new", got.Metadata.Title)
	assert.Equal(t, "keep", got.Metadata.Model)

	assert.ErrorIs(t, s.UpdateNodeContent(ctx, "p1", "missing", "x"), graph.ErrNodeNotFound)
	assert.ErrorIs(t, s.UpdateNodeMetadata(ctx, "p1", "missing", &graph.Metadata{}), graph.ErrNodeNotFound)
}

func TestRunRecordSink(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Second)
	record := &runlog.Record{
		RunID:      "r1",
		ProjectID:  "p1",
		NodeID:     "n1",
		StartedAt:  started,
		FinishedAt: time.Now(),
		Status:     runlog.StatusFailed,
		InputHash:  "in",
		OutputHash: "out",
		Logs: runlog.Logs{
			Attempts:    3,
			AttemptLogs: []string{"attempt 1 failed", "attempt 2 failed"},
			CreatedNodes: []runlog.CreatedNode{
				{ID: "n2", Type: "image"},
			},
		},
	}
	require.NoError(t, s.Append(ctx, record))

	got, err := s.ListByNode(ctx, "p1", "n1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, runlog.StatusFailed, got[0].Status)
	assert.Equal(t, 3, got[0].Logs.Attempts)
	assert.Len(t, got[0].Logs.AttemptLogs, 2)
	assert.Equal(t, "n2", got[0].Logs.CreatedNodes[0].ID)
	assert.WithinDuration(t, started, got[0].StartedAt, time.Millisecond)

	other, err := s.ListByNode(ctx, "p1", "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}
