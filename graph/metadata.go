//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "encoding/json"

// Metadata holds per-node business data. Known concerns get typed fields;
// anything else a provider or the editor attaches survives round-trips
// through Extra.
type Metadata struct {
	// Title and Description label the node in context summaries.
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// FolderItems lists member node ids for folder nodes, oldest first.
	FolderItems []string `json:"folder_items,omitempty"`
	// FolderContextLimit bounds how many trailing members a folder exposes
	// during context collection. Zero means the default.
	FolderContextLimit int `json:"folder_context_limit,omitempty"`

	// Generative node configuration.
	Model         string `json:"model,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
	ResponseShape string `json:"response_shape,omitempty"`

	// Script node configuration.
	AllowedModules []string `json:"allowed_modules,omitempty"`

	// Media link fields. A node may carry several variants of the same link
	// depending on which provider produced it.
	ImageURL  string `json:"image_url,omitempty"`
	VideoURL  string `json:"video_url,omitempty"`
	SourceURL string `json:"source_url,omitempty"`

	// Materialization bookkeeping, written by the engine so later passes can
	// recognize previously produced artifacts.
	ArtifactSignature string `json:"artifact_signature,omitempty"`
	SourceJobID       string `json:"source_job_id,omitempty"`
	SourceNodeID      string `json:"source_node_id,omitempty"`
	SourceExcerpt     string `json:"source_excerpt,omitempty"`

	// Extra carries provider-specific pass-through keys that have no typed
	// field. Keys here never shadow typed fields.
	Extra map[string]any `json:"-"`
}

// metadataAlias avoids recursive MarshalJSON calls.
type metadataAlias Metadata

// knownMetadataKeys mirrors the json tags of the typed fields above.
var knownMetadataKeys = map[string]struct{}{
	"title": {}, "description": {},
	"folder_items": {}, "folder_context_limit": {},
	"model": {}, "instructions": {}, "response_shape": {},
	"allowed_modules": {},
	"image_url":       {}, "video_url": {}, "source_url": {},
	"artifact_signature": {}, "source_job_id": {},
	"source_node_id": {}, "source_excerpt": {},
}

// MarshalJSON folds Extra back into the top-level object.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal((*metadataAlias)(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, known := knownMetadataKeys[k]; known {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON captures unknown top-level keys into Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*metadataAlias)(m)); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, raw := range all {
		if _, known := knownMetadataKeys[k]; known {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
	return nil
}

// Clone returns a copy of the metadata. Slice and map fields are copied one
// level deep.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	if m.FolderItems != nil {
		clone.FolderItems = append([]string(nil), m.FolderItems...)
	}
	if m.AllowedModules != nil {
		clone.AllowedModules = append([]string(nil), m.AllowedModules...)
	}
	if m.Extra != nil {
		clone.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			clone.Extra[k] = v
		}
	}
	return &clone
}

// Merge applies every non-zero field of patch onto m and returns m.
// Extra keys are merged individually.
func (m *Metadata) Merge(patch *Metadata) *Metadata {
	if patch == nil {
		return m
	}
	if patch.Title != "" {
		m.Title = patch.Title
	}
	if patch.Description != "" {
		m.Description = patch.Description
	}
	if patch.FolderItems != nil {
		m.FolderItems = append([]string(nil), patch.FolderItems...)
	}
	if patch.FolderContextLimit != 0 {
		m.FolderContextLimit = patch.FolderContextLimit
	}
	if patch.Model != "" {
		m.Model = patch.Model
	}
	if patch.Instructions != "" {
		m.Instructions = patch.Instructions
	}
	if patch.ResponseShape != "" {
		m.ResponseShape = patch.ResponseShape
	}
	if patch.AllowedModules != nil {
		m.AllowedModules = append([]string(nil), patch.AllowedModules...)
	}
	if patch.ImageURL != "" {
		m.ImageURL = patch.ImageURL
	}
	if patch.VideoURL != "" {
		m.VideoURL = patch.VideoURL
	}
	if patch.SourceURL != "" {
		m.SourceURL = patch.SourceURL
	}
	if patch.ArtifactSignature != "" {
		m.ArtifactSignature = patch.ArtifactSignature
	}
	if patch.SourceJobID != "" {
		m.SourceJobID = patch.SourceJobID
	}
	if patch.SourceNodeID != "" {
		m.SourceNodeID = patch.SourceNodeID
	}
	if patch.SourceExcerpt != "" {
		m.SourceExcerpt = patch.SourceExcerpt
	}
	for k, v := range patch.Extra {
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
	return m
}
