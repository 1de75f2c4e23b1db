//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package engine executes canvas nodes: it builds the per-run execution
// context, dispatches to the handler for the node's type under a bounded
// retry loop and records an immutable run record for every run, success or
// failure.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-canvas-go/artifact"
	"trpc.group/trpc-go/trpc-canvas-go/asset"
	"trpc.group/trpc-go/trpc-canvas-go/codeexecutor"
	"trpc.group/trpc-go/trpc-canvas-go/graph"
	"trpc.group/trpc-go/trpc-canvas-go/log"
	"trpc.group/trpc-go/trpc-canvas-go/model"
	"trpc.group/trpc-go/trpc-canvas-go/runlog"
	"trpc.group/trpc-go/trpc-canvas-go/storage"
)

// Default context collection depths. Upstream content feeds the prompt, so
// it reaches farther than the downstream summaries.
const (
	DefaultPreviousDepth = 3
	DefaultNextDepth     = 1
)

// Engine runs canvas nodes against a project store.
type Engine struct {
	store        storage.Service
	assets       asset.Service
	model        model.Model
	runner       codeexecutor.Runner
	sink         runlog.Sink
	materializer *artifact.Materializer

	handlers      map[graph.NodeType]Handler
	extraHandlers []Handler
	retry         RetryOptions
	previousDepth int
	nextDepth     int
	scriptDir     string
	tracer        trace.Tracer
}

// Option configures the engine.
type Option func(*Engine)

// WithModel sets the generative provider.
func WithModel(m model.Model) Option {
	return func(e *Engine) { e.model = m }
}

// WithScriptRunner sets the sandboxed script runner.
func WithScriptRunner(r codeexecutor.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithScriptOutputDir sets the scratch directory scripts may write to.
// Empty disables script file output.
func WithScriptOutputDir(dir string) Option {
	return func(e *Engine) { e.scriptDir = dir }
}

// WithRunLogSink sets the run record sink.
func WithRunLogSink(sink runlog.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithContextDepths sets the upstream and downstream collection depths.
func WithContextDepths(previous, next int) Option {
	return func(e *Engine) {
		e.previousDepth = previous
		e.nextDepth = next
	}
}

// WithRetryOptions overrides the dispatch retry policy.
func WithRetryOptions(opts RetryOptions) Option {
	return func(e *Engine) { e.retry = opts }
}

// WithHandler registers a handler, replacing any default for its type.
func WithHandler(h Handler) Option {
	return func(e *Engine) { e.extraHandlers = append(e.extraHandlers, h) }
}

// New creates an engine over the given store and asset service and
// registers the default handlers.
func New(store storage.Service, assets asset.Service, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		assets:        assets,
		retry:         DefaultRetryOptions(),
		previousDepth: DefaultPreviousDepth,
		nextDepth:     DefaultNextDepth,
		tracer:        otel.Tracer("trpc.group/trpc-go/trpc-canvas-go/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = runlog.NewInMemorySink()
	}
	e.materializer = artifact.NewMaterializer(store, assets)

	e.handlers = make(map[graph.NodeType]Handler)
	for _, h := range []Handler{
		newTextHandler(graph.NodeTypeText),
		newTextHandler(graph.NodeTypeFolder),
		newGenerativeHandler(e.model),
		newParserHandler(),
		newScriptHandler(e.runner, e.scriptDir),
		newMediaStubHandler(),
	} {
		e.handlers[h.Type()] = h
	}
	for _, h := range e.extraHandlers {
		e.handlers[h.Type()] = h
	}
	return e
}

// RegisterHandler replaces the handler for h's node type.
func (e *Engine) RegisterHandler(h Handler) {
	e.handlers[h.Type()] = h
}

func (e *Engine) handlerFor(nodeType graph.NodeType) Handler {
	if h, ok := e.handlers[nodeType]; ok {
		return h
	}
	// Unknown and media types fall through to text behavior.
	return newTextHandler(nodeType)
}

// RunResult is the outcome of one successful node run.
type RunResult struct {
	RunID        string
	Content      string
	ContentType  string
	Logs         []string
	CreatedNodes []*graph.Node
	Attempts     int
}

// RunNode executes one node to completion: context build, depth-bounded
// collection, dispatch under retry, run record, content persistence.
// Structural errors (missing node, cyclic graph) abort before any side
// effect but still leave a failed run record. The node's stored content is
// only overwritten after full success.
func (e *Engine) RunNode(ctx context.Context, projectID, nodeID string) (*RunResult, error) {
	runID := uuid.NewString()
	startedAt := time.Now()

	ctx, span := e.tracer.Start(ctx, "engine.run_node", trace.WithAttributes(
		attribute.String("project.id", projectID),
		attribute.String("node.id", nodeID),
		attribute.String("run.id", runID),
	))
	defer span.End()

	ec, err := graph.BuildContext(ctx, e.store, projectID, nodeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context build failed")
		e.appendRecord(ctx, &runlog.Record{
			RunID:      runID,
			ProjectID:  projectID,
			NodeID:     nodeID,
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
			Status:     runlog.StatusFailed,
			InputHash:  structuralInputHash(projectID, nodeID),
			OutputHash: hashString(err.Error()),
			Logs: runlog.Logs{
				AttemptLogs: []string{err.Error()},
			},
		})
		return nil, err
	}

	node := ec.Target
	previous := ec.CollectPrevious(nodeID, e.previousDepth)
	next := ec.CollectNext(nodeID, e.nextDepth)

	inv := &Invocation{
		ProjectID:    projectID,
		Node:         node,
		Context:      ec,
		Previous:     previous,
		Next:         next,
		Store:        e.store,
		Assets:       e.assets,
		Materializer: e.materializer,
	}
	handler := e.handlerFor(node.Type)

	var step *StepResult
	attempts, attemptLogs, err := WithRetry(ctx, e.retry, func(ctx context.Context) error {
		attemptCtx, attemptSpan := e.tracer.Start(ctx, "engine.attempt", trace.WithAttributes(
			attribute.String("node.type", string(node.Type)),
		))
		defer attemptSpan.End()

		result, execErr := handler.Execute(attemptCtx, inv)
		if execErr != nil {
			attemptSpan.RecordError(execErr)
			attemptSpan.SetStatus(codes.Error, "dispatch failed")
			return execErr
		}
		step = result
		return nil
	})

	record := &runlog.Record{
		RunID:     runID,
		ProjectID: projectID,
		NodeID:    nodeID,
		StartedAt: startedAt,
		InputHash: inputHash(node, previous),
		Logs: runlog.Logs{
			Attempts:    attempts,
			AttemptLogs: attemptLogs,
		},
	}

	if err == nil && step.Content != node.Content {
		if uerr := e.store.UpdateNodeContent(ctx, projectID, nodeID, step.Content); uerr != nil {
			err = fmt.Errorf("persist node content: %w", uerr)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		record.FinishedAt = time.Now()
		record.Status = runlog.StatusFailed
		record.OutputHash = hashString(err.Error())
		e.appendRecord(ctx, record)
		log.Errorf("run %s of node %s failed after %d attempts: %v", runID, nodeID, attempts, err)
		return nil, err
	}

	record.FinishedAt = time.Now()
	record.Status = runlog.StatusSuccess
	record.OutputHash = hashString(step.Content)
	record.Logs.StepLogs = step.Logs
	record.Logs.CreatedNodes = createdNodeSummaries(step.CreatedNodes)
	record.Logs.ProviderMetadata = step.ProviderMetadata
	e.appendRecord(ctx, record)

	log.Infof("run %s of node %s succeeded in %d attempt(s), %d node(s) created",
		runID, nodeID, attempts, len(step.CreatedNodes))
	return &RunResult{
		RunID:        runID,
		Content:      step.Content,
		ContentType:  step.ContentType,
		Logs:         append(append([]string(nil), attemptLogs...), step.Logs...),
		CreatedNodes: step.CreatedNodes,
		Attempts:     attempts,
	}, nil
}

// History returns the run records of one node, oldest first.
func (e *Engine) History(ctx context.Context, projectID, nodeID string) ([]*runlog.Record, error) {
	return e.sink.ListByNode(ctx, projectID, nodeID)
}

// appendRecord writes the run record. The run outcome is never masked by a
// sink failure.
func (e *Engine) appendRecord(ctx context.Context, record *runlog.Record) {
	if err := e.sink.Append(ctx, record); err != nil {
		log.Errorf("append run record %s: %v", record.RunID, err)
	}
}
