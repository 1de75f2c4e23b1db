//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package model provides the generative provider interface consumed by
// generative nodes.
package model

import (
	"context"
	"errors"
)

// ErrProvider marks failures of the generative provider: a failed call or a
// response whose shape is unusable. Provider errors are transient from the
// engine's point of view and eligible for retry.
var ErrProvider = errors.New("provider error")

// Attachment is a media input routed to the provider, pulled from an
// upstream node through a named port.
type Attachment struct {
	// Role is the semantic role the attachment fills, e.g.
	// "style_reference". Taken from the edge's target handle.
	Role string
	// URL is the attachment location: an http(s) URL or a data: URI.
	URL string
	// MimeType is optional; providers that need it derive it from URL
	// otherwise.
	MimeType string
}

// Request is a single generation request.
type Request struct {
	// Model selects the provider-side model. Empty means the provider's
	// default.
	Model string
	// Instructions is the system-level steering text from node
	// configuration.
	Instructions string
	// Prompt is the user-facing prompt, already assembled from the node
	// content and collected context.
	Prompt string
	// Attachments are media inputs from upstream ports.
	Attachments []Attachment
	// Metadata carries provider-specific pass-through settings.
	Metadata map[string]string
}

// Response is the provider's reply. Output may be a plain string or an
// arbitrary JSON document; it is the sole input to artifact extraction.
type Response struct {
	Output           any
	ContentType      string
	Logs             []string
	JobID            string
	ProviderMetadata map[string]any
}

// Model is the interface all generative providers implement.
type Model interface {
	Generate(ctx context.Context, request *Request) (*Response, error)
}

// Info describes a provider for registry and logging purposes.
type Info struct {
	Name string
}
