//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveDataURI(t *testing.T) {
	s := NewService()
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	raw := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	a, err := s.Save(context.Background(), "p1", raw)
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.MimeType)
	assert.Equal(t, int64(len(payload)), a.Size)
	assert.Contains(t, a.PublicURL, "/assets/p1/")
	assert.Contains(t, a.RelativePath, ".png")

	stored, ok := s.Load(a.RelativePath)
	require.True(t, ok)
	assert.Equal(t, payload, stored)
}

func TestSaveHTTPURLPassesThrough(t *testing.T) {
	s := NewService()
	a, err := s.Save(context.Background(), "p1", "https://cdn.example.com/x.mp4?sig=abc")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/x.mp4?sig=abc", a.PublicURL)
	assert.Equal(t, "video/mp4", a.MimeType)
	assert.Zero(t, a.Size)
}

func TestSaveRejectsGarbage(t *testing.T) {
	s := NewService()
	_, err := s.Save(context.Background(), "p1", "not an asset")
	assert.Error(t, err)

	_, err = s.Save(context.Background(), "p1", "data:image/png;base64,!!!not-base64!!!")
	assert.Error(t, err)

	_, err = s.Save(context.Background(), "p1", "data:text/plain,urlencoded")
	assert.Error(t, err)
}

func TestWithBaseURL(t *testing.T) {
	s := NewService(WithBaseURL("https://assets.example.com/"))
	raw := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{1})
	a, err := s.Save(context.Background(), "p1", raw)
	require.NoError(t, err)
	assert.Contains(t, a.PublicURL, "https://assets.example.com/p1/")
}
