//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package artifact

import "strings"

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg"}

var videoExtensions = []string{".mp4", ".webm", ".mov", ".avi", ".mkv", ".m4v"}

// isURLLike reports whether value is an http(s) URL or a data: URI.
func isURLLike(value string) bool {
	return strings.HasPrefix(value, "http://") ||
		strings.HasPrefix(value, "https://") ||
		strings.HasPrefix(value, "data:")
}

// classifyURL decides the artifact kind of a URL-like value by extension,
// MIME prefix and path keywords. Values with no media hints stay text.
func classifyURL(value string) Kind {
	if strings.HasPrefix(value, "data:") {
		switch {
		case strings.HasPrefix(value, "data:image/"):
			return KindImage
		case strings.HasPrefix(value, "data:video/"):
			return KindVideo
		default:
			return KindText
		}
	}

	path := strings.ToLower(value)
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return KindImage
		}
	}
	for _, ext := range videoExtensions {
		if strings.HasSuffix(path, ext) {
			return KindVideo
		}
	}

	// Keyword fallback for providers that serve media from extensionless
	// endpoints.
	switch {
	case strings.Contains(path, "video"):
		return KindVideo
	case strings.Contains(path, "image"), strings.Contains(path, "/img"):
		return KindImage
	}
	return KindText
}
