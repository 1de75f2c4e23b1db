//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package asset defines the binary asset storage service used when
// materializing media artifacts. Graph and context logic never touch it.
package asset

import "context"

// Asset describes a stored binary asset.
type Asset struct {
	// RelativePath locates the asset inside the store.
	RelativePath string `json:"relative_path"`
	// PublicURL is the URL the editor can load the asset from.
	PublicURL string `json:"public_url"`
	// MimeType is the detected MIME type.
	MimeType string `json:"mime_type"`
	// Size is the decoded byte size.
	Size int64 `json:"size"`
}

// Service stores raw asset payloads. Raw may be a data: URI (decoded and
// stored) or an http(s) URL (recorded as-is; fetching is the caller's
// concern).
type Service interface {
	Save(ctx context.Context, projectID, raw string) (*Asset, error)
}
