//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(artifacts []Artifact) []Kind {
	out := make([]Kind, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, a.Kind)
	}
	return out
}

func TestExtractPlainString(t *testing.T) {
	got := Extract("hello world")
	require.Len(t, got, 1)
	assert.Equal(t, KindText, got[0].Kind)
	assert.Equal(t, "hello world", got[0].Value)
}

func TestExtractURLClassification(t *testing.T) {
	tests := []struct {
		value string
		want  Kind
	}{
		{"https://x/img1.png", KindImage},
		{"https://x/photo.JPG", KindImage},
		{"https://x/clip.mp4", KindVideo},
		{"https://x/clip.webm?sig=1", KindVideo},
		{"data:image/png;base64,AAAA", KindImage},
		{"data:video/mp4;base64,AAAA", KindVideo},
		{"https://cdn.example.com/videos/abc", KindVideo},
		{"https://cdn.example.com/images/abc", KindImage},
		{"https://example.com/page", KindText},
	}
	for _, tt := range tests {
		got := Extract(tt.value)
		require.Len(t, got, 1, tt.value)
		assert.Equal(t, tt.want, got[0].Kind, tt.value)
	}
}

func TestExtractNestedObject(t *testing.T) {
	raw := map[string]any{
		"output": map[string]any{
			"url":     "https://x/a.png",
			"caption": "a nice image",
		},
	}
	got := Extract(raw)
	require.Len(t, got, 2)
	assert.Equal(t, KindImage, got[0].Kind)
	assert.Equal(t, "https://x/a.png", got[0].Value)
	assert.Equal(t, KindText, got[1].Kind)
	assert.Equal(t, "a nice image", got[1].Value)
}

func TestExtractJSONString(t *testing.T) {
	// A string payload that itself parses as JSON is traversed, not
	// emitted verbatim.
	raw := `{"output": ["https://x/a.png", "caption"]}`
	got := Extract(raw)
	require.Len(t, got, 2)
	assert.Equal(t, []Kind{KindImage, KindText}, kinds(got))
}

func TestExtractFencedJSONString(t *testing.T) {
	raw := "```json\n{\"url\": \"https://x/a.png\"}\n```"
	got := Extract(raw)
	require.Len(t, got, 1)
	assert.Equal(t, KindImage, got[0].Kind)
}

func TestExtractStreamedTokens(t *testing.T) {
	raw := map[string]any{
		"output": []any{"Once ", "upon ", "a ", "time"},
	}
	got := Extract(raw)
	require.Len(t, got, 1)
	assert.Equal(t, KindText, got[0].Kind)
	assert.Equal(t, "Once upon a time", got[0].Value)
}

func TestExtractStringSliceWithURLsNotJoined(t *testing.T) {
	raw := []string{"https://x/a.png", "https://x/b.png"}
	got := Extract(raw)
	require.Len(t, got, 2)
	assert.Equal(t, []Kind{KindImage, KindImage}, kinds(got))
}

func TestExtractDuplicateURLsSuppressed(t *testing.T) {
	raw := map[string]any{
		"output": []any{"https://x/img1.png", "https://x/img1.png", "caption text"},
	}
	got := Extract(raw)
	require.Len(t, got, 2)
	assert.Equal(t, "https://x/img1.png", got[0].Value)
	assert.Equal(t, "caption text", got[1].Value)
}

func TestExtractDuplicateTextKept(t *testing.T) {
	raw := []any{"same", 1, "same"}
	got := Extract(raw)
	require.Len(t, got, 2)
}

func TestExtractTitleFromSibling(t *testing.T) {
	raw := map[string]any{
		"title": "Sunset",
		"url":   "https://x/sunset.png",
	}
	got := Extract(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "Sunset", got[0].Title)
}

func TestExtractUnknownKeysStillVisited(t *testing.T) {
	raw := map[string]any{
		"weird_provider_field": map[string]any{
			"deeply": []any{"https://x/v.mp4"},
		},
	}
	got := Extract(raw)
	require.Len(t, got, 1)
	assert.Equal(t, KindVideo, got[0].Kind)
}

func TestExtractSharedSubstructureOnce(t *testing.T) {
	shared := map[string]any{"url": "https://x/a.png"}
	raw := []any{shared, shared}
	got := Extract(raw)
	assert.Len(t, got, 1)
}

func TestExtractCyclicStructure(t *testing.T) {
	m := map[string]any{"text": "leaf"}
	m["self"] = m

	done := make(chan []Artifact, 1)
	go func() { done <- Extract(m) }()
	got := <-done
	require.Len(t, got, 1)
	assert.Equal(t, "leaf", got[0].Value)
}

func TestExtractDeeplyNested(t *testing.T) {
	// Deep nesting must not blow the stack: the traversal is worklist
	// based.
	inner := any("https://x/deep.png")
	for i := 0; i < 50000; i++ {
		inner = []any{inner}
	}
	got := Extract(inner)
	require.Len(t, got, 1)
	assert.Equal(t, KindImage, got[0].Kind)
}

func TestExtractScalarsIgnored(t *testing.T) {
	assert.Empty(t, Extract(nil))
	assert.Empty(t, Extract(42))
	assert.Empty(t, Extract(true))
	assert.Empty(t, Extract("   "))
}
