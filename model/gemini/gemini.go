//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides a generative provider backed by the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-canvas-go/model"
)

const defaultModel = "gemini-2.0-flash"

// Model implements model.Model on the Gemini API.
type Model struct {
	client *genai.Client
	name   string
}

// Option configures the Gemini provider.
type Option func(*options)

type options struct {
	clientConfig *genai.ClientConfig
}

// WithClientConfig sets the underlying genai client configuration.
func WithClientConfig(cfg *genai.ClientConfig) Option {
	return func(o *options) { o.clientConfig = cfg }
}

// New creates a Gemini-backed provider for the named model.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	client, err := genai.NewClient(ctx, o.clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if name == "" {
		name = defaultModel
	}
	return &Model{client: client, name: name}, nil
}

// Info returns provider information.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// Generate performs one non-streaming content generation.
func (m *Model) Generate(ctx context.Context, request *model.Request) (*model.Response, error) {
	name := request.Model
	if name == "" {
		name = m.name
	}

	parts := []*genai.Part{genai.NewPartFromText(request.Prompt)}
	for _, att := range request.Attachments {
		parts = append(parts, genai.NewPartFromURI(att.URL, att.MimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var config *genai.GenerateContentConfig
	if request.Instructions != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(request.Instructions, genai.RoleUser),
		}
	}

	completion, err := m.client.Models.GenerateContent(ctx, name, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini generate content: %v", model.ErrProvider, err)
	}
	if len(completion.Candidates) == 0 || completion.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: gemini returned no candidates", model.ErrProvider)
	}

	var text string
	for _, part := range completion.Candidates[0].Content.Parts {
		text += part.Text
	}

	response := &model.Response{
		Output:      text,
		ContentType: "text/plain",
		JobID:       completion.ResponseID,
		ProviderMetadata: map[string]any{
			"provider": "gemini",
			"model":    name,
		},
	}
	if completion.UsageMetadata != nil {
		response.ProviderMetadata["usage_tokens"] = completion.UsageMetadata.TotalTokenCount
	}
	return response, nil
}
