//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package runlog defines the immutable run record and its append-only sink.
package runlog

import "time"

// Status is the terminal status of a run.
type Status string

const (
	// StatusSuccess marks a run that produced a result.
	StatusSuccess Status = "success"
	// StatusFailed marks a run whose attempts were exhausted or that aborted
	// structurally.
	StatusFailed Status = "failed"
)

// CreatedNode summarizes one node created during a run.
type CreatedNode struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// Logs is the structured log payload of a run record.
type Logs struct {
	// Attempts is the number of dispatch attempts consumed.
	Attempts int `json:"attempts"`
	// AttemptLogs holds one line per failed attempt.
	AttemptLogs []string `json:"attempt_logs,omitempty"`
	// StepLogs holds the handler's own log lines.
	StepLogs []string `json:"step_logs,omitempty"`
	// CreatedNodes summarizes nodes materialized during the run.
	CreatedNodes []CreatedNode `json:"created_nodes,omitempty"`
	// ProviderMetadata carries provider pass-through data.
	ProviderMetadata map[string]any `json:"provider_metadata,omitempty"`
}

// Record is an immutable run outcome. Exactly one record is written per run
// attempt sequence, covering all retries, success or failure.
type Record struct {
	RunID      string    `json:"run_id"`
	ProjectID  string    `json:"project_id"`
	NodeID     string    `json:"node_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     Status    `json:"status"`
	// InputHash fingerprints the execution input: node config, context node
	// content hashes and engine version. Observability only.
	InputHash string `json:"input_hash"`
	// OutputHash hashes the produced output, or the error message on
	// failure.
	OutputHash string `json:"output_hash"`
	Logs       Logs   `json:"logs"`
}
