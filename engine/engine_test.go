//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	assetmem "trpc.group/trpc-go/trpc-canvas-go/asset/inmemory"
	"trpc.group/trpc-go/trpc-canvas-go/codeexecutor"
	"trpc.group/trpc-go/trpc-canvas-go/graph"
	"trpc.group/trpc-go/trpc-canvas-go/model"
	"trpc.group/trpc-go/trpc-canvas-go/runlog"
	storemem "trpc.group/trpc-go/trpc-canvas-go/storage/inmemory"
)

const testProject = "proj-1"

// fakeModel scripts provider behavior per call and captures requests.
type fakeModel struct {
	mu       sync.Mutex
	requests []*model.Request
	generate func(call int, req *model.Request) (*model.Response, error)
}

func (m *fakeModel) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	call := len(m.requests)
	m.mu.Unlock()
	return m.generate(call, req)
}

func textResponse(output any) func(int, *model.Request) (*model.Response, error) {
	return func(int, *model.Request) (*model.Response, error) {
		return &model.Response{Output: output, ContentType: "text/plain"}, nil
	}
}

// fakeRunner records the last execution and returns a fixed outcome.
type fakeRunner struct {
	result     codeexecutor.Result
	err        error
	lastInput  codeexecutor.Input
	lastPolicy codeexecutor.Policy
}

func (r *fakeRunner) Execute(ctx context.Context, input codeexecutor.Input, policy codeexecutor.Policy) (codeexecutor.Result, error) {
	r.lastInput = input
	r.lastPolicy = policy
	return r.result, r.err
}

func mustCreate(t *testing.T, store *storemem.Service, node *graph.Node) *graph.Node {
	t.Helper()
	created, err := store.CreateNode(context.Background(), testProject, node)
	require.NoError(t, err)
	return created
}

func mustEdge(t *testing.T, store *storemem.Service, from, to string) {
	t.Helper()
	require.NoError(t, store.AddEdge(context.Background(), testProject, &graph.Edge{From: from, To: to}))
}

func newTestEngine(store *storemem.Service, opts ...Option) (*Engine, *runlog.InMemorySink) {
	sink := runlog.NewInMemorySink()
	opts = append([]Option{WithRunLogSink(sink), WithRetryOptions(fastRetry(3))}, opts...)
	return New(store, assetmem.NewService(), opts...), sink
}

func TestRunNodeTextEchoesContent(t *testing.T) {
	store := storemem.NewService()
	node := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: "hello"})
	e, sink := newTestEngine(store)

	result, err := e.RunNode(context.Background(), testProject, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, 1, result.Attempts)

	records, err := sink.ListByNode(context.Background(), testProject, node.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, runlog.StatusSuccess, records[0].Status)
	assert.NotEmpty(t, records[0].InputHash)
	assert.NotEmpty(t, records[0].OutputHash)
	assert.Equal(t, 1, records[0].Logs.Attempts)
}

func TestRunNodeMissingNodeRecordsFailure(t *testing.T) {
	store := storemem.NewService()
	mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: "other"})
	e, sink := newTestEngine(store)

	_, err := e.RunNode(context.Background(), testProject, "missing")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)

	records, err := sink.ListByNode(context.Background(), testProject, "missing")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, runlog.StatusFailed, records[0].Status)
	assert.NotEmpty(t, records[0].InputHash)
}

func TestRunNodeCyclicGraphRecordsFailure(t *testing.T) {
	store := storemem.NewService()
	a := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: "a"})
	b := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: "b"})
	mustEdge(t, store, a.ID, b.ID)
	mustEdge(t, store, b.ID, a.ID)
	e, sink := newTestEngine(store)

	_, err := e.RunNode(context.Background(), testProject, a.ID)
	assert.ErrorIs(t, err, graph.ErrCyclicGraph)

	records, err := sink.ListByNode(context.Background(), testProject, a.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, runlog.StatusFailed, records[0].Status)
}

func TestRunNodeGenerativeUsesUpstreamContext(t *testing.T) {
	store := storemem.NewService()
	a := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: "alpha fact"})
	b := mustCreate(t, store, &graph.Node{
		Type:     graph.NodeTypeGenerative,
		Content:  "Write a summary",
		Metadata: &graph.Metadata{Instructions: "be brief"},
	})
	mustEdge(t, store, a.ID, b.ID)

	m := &fakeModel{generate: textResponse("done")}
	e, _ := newTestEngine(store, WithModel(m), WithContextDepths(1, 1))

	result, err := e.RunNode(context.Background(), testProject, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "done", result.Content)

	require.Len(t, m.requests, 1)
	assert.Equal(t, "be brief", m.requests[0].Instructions)
	assert.Contains(t, m.requests[0].Prompt, "Write a summary")
	assert.Contains(t, m.requests[0].Prompt, "alpha fact")

	// Content is only persisted after full success.
	stored, err := store.GetNode(context.Background(), testProject, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "done", stored.Content)
}

func TestRunNodeGenerativeZeroDepthExcludesContext(t *testing.T) {
	store := storemem.NewService()
	a := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: "alpha fact"})
	b := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeGenerative, Content: "Write a summary"})
	mustEdge(t, store, a.ID, b.ID)

	m := &fakeModel{generate: textResponse("done")}
	e, _ := newTestEngine(store, WithModel(m), WithContextDepths(0, 0))

	_, err := e.RunNode(context.Background(), testProject, b.ID)
	require.NoError(t, err)
	require.Len(t, m.requests, 1)
	assert.NotContains(t, m.requests[0].Prompt, "alpha fact")
}

func TestRunNodeGenerativeAttachmentsFromPorts(t *testing.T) {
	store := storemem.NewService()
	img := mustCreate(t, store, &graph.Node{
		Type:     graph.NodeTypeImage,
		Metadata: &graph.Metadata{ImageURL: "https://cdn.example/ref.png"},
	})
	b := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeGenerative, Content: "stylize"})
	require.NoError(t, store.AddEdge(context.Background(), testProject, &graph.Edge{
		From: img.ID, To: b.ID, TargetHandle: "style_reference",
	}))

	m := &fakeModel{generate: textResponse("done")}
	e, _ := newTestEngine(store, WithModel(m))

	_, err := e.RunNode(context.Background(), testProject, b.ID)
	require.NoError(t, err)
	require.Len(t, m.requests, 1)
	require.Len(t, m.requests[0].Attachments, 1)
	assert.Equal(t, "style_reference", m.requests[0].Attachments[0].Role)
	assert.Equal(t, "https://cdn.example/ref.png", m.requests[0].Attachments[0].URL)
}

func TestRunNodeRetriesProviderErrors(t *testing.T) {
	store := storemem.NewService()
	b := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeGenerative, Content: "go"})

	m := &fakeModel{generate: func(call int, req *model.Request) (*model.Response, error) {
		if call < 3 {
			return nil, errors.New("upstream hiccup")
		}
		return &model.Response{Output: "finally"}, nil
	}}
	e, sink := newTestEngine(store, WithModel(m))

	result, err := e.RunNode(context.Background(), testProject, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "finally", result.Content)

	records, _ := sink.ListByNode(context.Background(), testProject, b.ID)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].Logs.Attempts)
	assert.Len(t, records[0].Logs.AttemptLogs, 2)
}

func TestRunNodeExhaustsRetriesAndRecordsFailure(t *testing.T) {
	store := storemem.NewService()
	b := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeGenerative, Content: "go"})

	m := &fakeModel{generate: func(int, *model.Request) (*model.Response, error) {
		return nil, errors.New("always down")
	}}
	e, sink := newTestEngine(store, WithModel(m))

	_, err := e.RunNode(context.Background(), testProject, b.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")

	records, _ := sink.ListByNode(context.Background(), testProject, b.ID)
	require.Len(t, records, 1)
	assert.Equal(t, runlog.StatusFailed, records[0].Status)
	assert.Equal(t, 3, records[0].Logs.Attempts)

	// Stored content untouched on failure.
	stored, err := store.GetNode(context.Background(), testProject, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "go", stored.Content)
}

func TestRunNodeGenerativeSingleShapeMaterializes(t *testing.T) {
	store := storemem.NewService()
	b := mustCreate(t, store, &graph.Node{
		Type:     graph.NodeTypeGenerative,
		Content:  "make an image",
		Metadata: &graph.Metadata{ResponseShape: "single"},
	})

	m := &fakeModel{generate: func(int, *model.Request) (*model.Response, error) {
		return &model.Response{
			Output: map[string]any{"output": []any{"https://x/img1.png", "caption text"}},
			JobID:  "job-7",
		}, nil
	}}
	e, _ := newTestEngine(store, WithModel(m))

	result, err := e.RunNode(context.Background(), testProject, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "caption text", result.Content)
	require.Len(t, result.CreatedNodes, 2)

	types := map[graph.NodeType]int{}
	for _, n := range result.CreatedNodes {
		types[n.Type]++
	}
	assert.Equal(t, 1, types[graph.NodeTypeImage])
	assert.Equal(t, 1, types[graph.NodeTypeText])

	edges, err := store.ListEdges(context.Background(), testProject)
	require.NoError(t, err)
	artifactEdges := 0
	for _, edge := range edges {
		if edge.From == b.ID && edge.Label == graph.EdgeLabelArtifact {
			artifactEdges++
		}
	}
	assert.Equal(t, 2, artifactEdges)
}

func TestRunNodeGenerativeTreeShapeExpandsSubtree(t *testing.T) {
	store := storemem.NewService()
	b := mustCreate(t, store, &graph.Node{
		Type:     graph.NodeTypeGenerative,
		Content:  "mindmap",
		Metadata: &graph.Metadata{ResponseShape: "tree"},
	})

	reply := `{"title": "root", "children": [{"title": "a"}, {"title": "b"}]}`
	m := &fakeModel{generate: textResponse(reply)}
	e, _ := newTestEngine(store, WithModel(m))

	result, err := e.RunNode(context.Background(), testProject, b.ID)
	require.NoError(t, err)
	require.Len(t, result.CreatedNodes, 3)
	assert.Equal(t, "root", result.CreatedNodes[0].Content)
	assert.Equal(t, "a", result.CreatedNodes[1].Content)
	assert.Equal(t, "b", result.CreatedNodes[2].Content)

	edges, err := store.ListEdges(context.Background(), testProject)
	require.NoError(t, err)
	rootID := result.CreatedNodes[0].ID
	var fromSource, fromRoot int
	for _, edge := range edges {
		switch edge.From {
		case b.ID:
			fromSource++
		case rootID:
			fromRoot++
		}
	}
	assert.Equal(t, 1, fromSource)
	assert.Equal(t, 2, fromRoot)
}

func TestRunNodeGenerativeCollectionShapeFillsFolder(t *testing.T) {
	store := storemem.NewService()
	b := mustCreate(t, store, &graph.Node{
		Type:     graph.NodeTypeGenerative,
		Content:  "variations",
		Metadata: &graph.Metadata{ResponseShape: "collection"},
	})

	m := &fakeModel{generate: func(int, *model.Request) (*model.Response, error) {
		return &model.Response{
			Output: map[string]any{"output": []any{"https://x/a.png", "https://x/b.png"}},
			JobID:  "job-9",
		}, nil
	}}
	e, _ := newTestEngine(store, WithModel(m))

	result, err := e.RunNode(context.Background(), testProject, b.ID)
	require.NoError(t, err)
	require.Len(t, result.CreatedNodes, 2)

	nodes, err := store.ListNodes(context.Background(), testProject)
	require.NoError(t, err)
	var folder *graph.Node
	for _, n := range nodes {
		if n.Type == graph.NodeTypeFolder {
			folder = n
		}
	}
	require.NotNil(t, folder)
	require.Len(t, folder.Meta().FolderItems, 2)
	assert.Equal(t, result.CreatedNodes[0].ID, folder.Meta().FolderItems[0])
}

func TestRunNodeParserFormatsUpstreamDocument(t *testing.T) {
	store := storemem.NewService()
	doc := "# Notes\n\nBody text with [a link](https://example.com).\n"
	a := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: doc})
	p := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeParser})
	mustEdge(t, store, a.ID, p.ID)
	e, _ := newTestEngine(store)

	result, err := e.RunNode(context.Background(), testProject, p.ID)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "# Notes")
	assert.Contains(t, result.Content, "https://example.com")
	assert.Equal(t, "text/markdown", result.ContentType)
}

func TestRunNodeParserSchemaFailureIsPermanent(t *testing.T) {
	store := storemem.NewService()
	a := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: "no heading here"})
	p := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeParser})
	mustEdge(t, store, a.ID, p.ID)
	e, sink := newTestEngine(store)

	_, err := e.RunNode(context.Background(), testProject, p.ID)
	require.Error(t, err)

	records, _ := sink.ListByNode(context.Background(), testProject, p.ID)
	require.Len(t, records, 1)
	assert.Equal(t, runlog.StatusFailed, records[0].Status)
	assert.Equal(t, 1, records[0].Logs.Attempts)
}

func TestRunNodeScriptPipesUpstreamStdin(t *testing.T) {
	store := storemem.NewService()
	a := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: "payload"})
	s := mustCreate(t, store, &graph.Node{
		Type:     graph.NodeTypeScript,
		Content:  `print(input)`,
		Metadata: &graph.Metadata{AllowedModules: []string{"string"}},
	})
	mustEdge(t, store, a.ID, s.ID)

	runner := &fakeRunner{result: codeexecutor.Result{Stdout: "payload\n"}}
	e, _ := newTestEngine(store, WithScriptRunner(runner), WithScriptOutputDir(t.TempDir()))

	result, err := e.RunNode(context.Background(), testProject, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "payload\n", result.Content)
	assert.Equal(t, "payload", runner.lastInput.Stdin)
	assert.Equal(t, []string{"string"}, runner.lastPolicy.AllowedModules)
	assert.NotEmpty(t, runner.lastPolicy.OutputDir)
}

func TestRunNodeScriptPolicyViolationIsPermanent(t *testing.T) {
	store := storemem.NewService()
	s := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeScript, Content: `require("os")`})

	runner := &fakeRunner{err: codeexecutor.ErrPolicyViolation}
	e, sink := newTestEngine(store, WithScriptRunner(runner))

	_, err := e.RunNode(context.Background(), testProject, s.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, codeexecutor.ErrPolicyViolation)

	records, _ := sink.ListByNode(context.Background(), testProject, s.ID)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Logs.Attempts)
}

func TestRunNodeScriptNonZeroExitRetries(t *testing.T) {
	store := storemem.NewService()
	s := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeScript, Content: `error("boom")`})

	runner := &fakeRunner{result: codeexecutor.Result{ExitCode: 1, Stderr: "boom"}}
	e, sink := newTestEngine(store, WithScriptRunner(runner))

	_, err := e.RunNode(context.Background(), testProject, s.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 1")

	records, _ := sink.ListByNode(context.Background(), testProject, s.ID)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].Logs.Attempts)
}

func TestRunNodeMediaStubSynthesizesPlaceholder(t *testing.T) {
	store := storemem.NewService()
	s := mustCreate(t, store, &graph.Node{
		Type:     graph.NodeTypeMediaStub,
		Metadata: &graph.Metadata{Title: "sunset video"},
	})
	e, sink := newTestEngine(store)

	result, err := e.RunNode(context.Background(), testProject, s.ID)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "sunset video")

	records, _ := sink.ListByNode(context.Background(), testProject, s.ID)
	require.Len(t, records, 1)
	assert.Equal(t, "stub", records[0].Logs.ProviderMetadata["provider"])
}

func TestRunNodeFolderFallsThroughToText(t *testing.T) {
	store := storemem.NewService()
	f := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeFolder, Content: "group"})
	e, _ := newTestEngine(store)

	result, err := e.RunNode(context.Background(), testProject, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "group", result.Content)
}

func TestRunNodeHistoryAccumulates(t *testing.T) {
	store := storemem.NewService()
	n := mustCreate(t, store, &graph.Node{Type: graph.NodeTypeText, Content: "x"})
	e, _ := newTestEngine(store)

	_, err := e.RunNode(context.Background(), testProject, n.ID)
	require.NoError(t, err)
	_, err = e.RunNode(context.Background(), testProject, n.ID)
	require.NoError(t, err)

	records, err := e.History(context.Background(), testProject, n.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.NotEqual(t, records[0].RunID, records[1].RunID)
	// Identical input fingerprints across identical runs.
	assert.Equal(t, records[0].InputHash, records[1].InputHash)
}
