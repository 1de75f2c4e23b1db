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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataRoundTripExtras(t *testing.T) {
	in := []byte(`{
		"title": "hero image",
		"image_url": "https://example.com/a.png",
		"provider_seed": 42,
		"provider_tags": ["a", "b"]
	}`)

	var m Metadata
	require.NoError(t, json.Unmarshal(in, &m))
	assert.Equal(t, "hero image", m.Title)
	assert.Equal(t, "https://example.com/a.png", m.ImageURL)
	assert.Equal(t, float64(42), m.Extra["provider_seed"])

	out, err := json.Marshal(&m)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "hero image", back["title"])
	assert.Equal(t, float64(42), back["provider_seed"])
	assert.Equal(t, []any{"a", "b"}, back["provider_tags"])
}

func TestMetadataExtraNeverShadowsTypedFields(t *testing.T) {
	m := Metadata{
		Title: "typed",
		Extra: map[string]any{"title": "sneaky"},
	}
	out, err := json.Marshal(&m)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "typed", back["title"])
}

func TestMetadataClone(t *testing.T) {
	m := &Metadata{
		Title:       "t",
		FolderItems: []string{"a", "b"},
		Extra:       map[string]any{"k": "v"},
	}
	clone := m.Clone()
	clone.FolderItems[0] = "changed"
	clone.Extra["k"] = "changed"

	assert.Equal(t, "a", m.FolderItems[0])
	assert.Equal(t, "v", m.Extra["k"])
}

func TestMetadataMerge(t *testing.T) {
	m := &Metadata{Title: "old", Model: "keep-me"}
	m.Merge(&Metadata{
		Title:             "new",
		ArtifactSignature: "sig",
		Extra:             map[string]any{"job": "j1"},
	})

	assert.Equal(t, "new", m.Title)
	assert.Equal(t, "keep-me", m.Model)
	assert.Equal(t, "sig", m.ArtifactSignature)
	assert.Equal(t, "j1", m.Extra["job"])
}

func TestNodeTitle(t *testing.T) {
	n := &Node{Content: "some plain content"}
	assert.Equal(t, "some plain content", n.Title())

	n.Metadata = &Metadata{Title: "explicit"}
	assert.Equal(t, "explicit", n.Title())

	long := &Node{Content: string(make([]byte, 200))}
	assert.Len(t, long.Title(), 48)
}
