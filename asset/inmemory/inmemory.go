//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory implementation of the asset
// service. It is suitable for testing and development environments.
package inmemory

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-canvas-go/asset"
)

// Service is an in-memory implementation of asset.Service.
type Service struct {
	// blobs maps relative path to decoded bytes.
	blobs map[string][]byte
	// mutex protects concurrent access to blobs.
	mutex sync.RWMutex
	// baseURL prefixes public URLs, default "/assets".
	baseURL string
}

// Option configures the in-memory asset service.
type Option func(*Service)

// WithBaseURL sets the public URL prefix.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// NewService creates a new in-memory asset service.
func NewService(opts ...Option) *Service {
	s := &Service{
		blobs:   make(map[string][]byte),
		baseURL: "/assets",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores raw as an asset. Data URIs are decoded; http(s) URLs pass
// through untouched so remote assets keep their original location.
func (s *Service) Save(ctx context.Context, projectID, raw string) (*asset.Asset, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return &asset.Asset{
			RelativePath: raw,
			PublicURL:    raw,
			MimeType:     mimeFromPath(raw),
		}, nil
	}
	if !strings.HasPrefix(raw, "data:") {
		return nil, fmt.Errorf("unsupported asset payload: %.32q", raw)
	}

	mimeType, data, err := decodeDataURI(raw)
	if err != nil {
		return nil, err
	}

	path := projectID + "/" + uuid.NewString() + extensionFor(mimeType)
	s.mutex.Lock()
	s.blobs[path] = data
	s.mutex.Unlock()

	return &asset.Asset{
		RelativePath: path,
		PublicURL:    s.baseURL + "/" + path,
		MimeType:     mimeType,
		Size:         int64(len(data)),
	}, nil
}

// Load returns the decoded bytes for a stored path, or false.
func (s *Service) Load(path string) ([]byte, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	data, ok := s.blobs[path]
	return data, ok
}

// decodeDataURI splits "data:<mime>;base64,<payload>" into its parts.
// A missing ";base64" marker means the payload is URL-encoded text; only
// base64 payloads are accepted here.
func decodeDataURI(raw string) (string, []byte, error) {
	rest := strings.TrimPrefix(raw, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", nil, fmt.Errorf("malformed data URI: no comma")
	}
	header, payload := rest[:comma], rest[comma+1:]
	mimeType := header
	if idx := strings.IndexByte(header, ';'); idx >= 0 {
		mimeType = header[:idx]
		if !strings.Contains(header[idx:], "base64") {
			return "", nil, fmt.Errorf("unsupported data URI encoding %q", header[idx+1:])
		}
	} else {
		return "", nil, fmt.Errorf("unsupported data URI encoding: not base64")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI payload: %w", err)
	}
	return mimeType, data, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ""
	}
}

func mimeFromPath(raw string) string {
	path := raw
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	case strings.HasSuffix(path, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(path, ".webm"):
		return "video/webm"
	default:
		return ""
	}
}
