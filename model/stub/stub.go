//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package stub provides a canned generative provider. Useful as a stand-in
// for not-yet-implemented backends and in tests.
package stub

import (
	"context"
	"fmt"
	"sync/atomic"

	"trpc.group/trpc-go/trpc-canvas-go/model"
)

// Model implements model.Model with canned responses.
type Model struct {
	// Output is returned from every call when set; otherwise a descriptive
	// placeholder string is synthesized from the prompt.
	Output any
	// Err, when set, is returned from every call.
	Err error
	// JobIDPrefix prefixes the synthesized job id, default "stub".
	JobIDPrefix string

	calls atomic.Int64
}

// New creates a stub provider.
func New() *Model {
	return &Model{}
}

// Calls reports how many times Generate ran.
func (m *Model) Calls() int64 {
	return m.calls.Load()
}

// Info returns provider information.
func (m *Model) Info() model.Info {
	return model.Info{Name: "stub"}
}

// Generate returns the canned output.
func (m *Model) Generate(ctx context.Context, request *model.Request) (*model.Response, error) {
	call := m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}

	prefix := m.JobIDPrefix
	if prefix == "" {
		prefix = "stub"
	}
	output := m.Output
	if output == nil {
		prompt := request.Prompt
		if len(prompt) > 64 {
			prompt = prompt[:64]
		}
		output = fmt.Sprintf("[stub output for: %s]", prompt)
	}
	return &model.Response{
		Output:      output,
		ContentType: "text/plain",
		JobID:       fmt.Sprintf("%s-%d", prefix, call),
		ProviderMetadata: map[string]any{
			"provider": "stub",
		},
	}, nil
}
