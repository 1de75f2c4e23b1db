//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides a generative provider backed by the OpenAI Chat
// Completions API. Any OpenAI-compatible endpoint works through the base URL
// option.
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"trpc.group/trpc-go/trpc-canvas-go/model"
)

const defaultModel = "gpt-4o-mini"

// Model implements model.Model on the OpenAI API.
type Model struct {
	client openai.Client
	name   string
}

// Option configures the OpenAI provider.
type Option func(*options)

type options struct {
	apiKey  string
	baseURL string
	extra   []openaiopt.RequestOption
}

// WithAPIKey sets the API key. Defaults to OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithClientOptions appends raw openai-go request options.
func WithClientOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) { o.extra = append(o.extra, opts...) }
}

// New creates an OpenAI-backed provider for the named model.
func New(name string, opts ...Option) *Model {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		o.apiKey = os.Getenv("OPENAI_API_KEY")
	}

	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	clientOpts = append(clientOpts, o.extra...)

	if name == "" {
		name = defaultModel
	}
	return &Model{
		client: openai.NewClient(clientOpts...),
		name:   name,
	}
}

// Info returns provider information.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// Generate performs one non-streaming chat completion.
func (m *Model) Generate(ctx context.Context, request *model.Request) (*model.Response, error) {
	name := request.Model
	if name == "" {
		name = m.name
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if request.Instructions != "" {
		messages = append(messages, openai.SystemMessage(request.Instructions))
	}
	messages = append(messages, userMessage(request))

	completion, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(name),
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai chat completion: %v", model.ErrProvider, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", model.ErrProvider)
	}

	return &model.Response{
		Output:      completion.Choices[0].Message.Content,
		ContentType: "text/plain",
		JobID:       completion.ID,
		ProviderMetadata: map[string]any{
			"provider":      "openai",
			"model":         completion.Model,
			"finish_reason": string(completion.Choices[0].FinishReason),
			"usage_tokens":  completion.Usage.TotalTokens,
		},
	}, nil
}

// userMessage builds the user message, attaching images as content parts
// when upstream ports contributed any.
func userMessage(request *model.Request) openai.ChatCompletionMessageParamUnion {
	if len(request.Attachments) == 0 {
		return openai.UserMessage(request.Prompt)
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		{OfText: &openai.ChatCompletionContentPartTextParam{Text: request.Prompt}},
	}
	for _, att := range request.Attachments {
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					// Accepts either a URL or a data: URI.
					URL: att.URL,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: parts,
			},
		},
	}
}
