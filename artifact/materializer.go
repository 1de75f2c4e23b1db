//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

package artifact

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"trpc.group/trpc-go/trpc-canvas-go/asset"
	"trpc.group/trpc-go/trpc-canvas-go/graph"
	"trpc.group/trpc-go/trpc-canvas-go/log"
	"trpc.group/trpc-go/trpc-canvas-go/storage"
)

// Layout constants for nodes created to the right of their source.
const (
	defaultNodeWidth  = 320.0
	defaultNodeHeight = 240.0
	columnGap         = 80.0
	rowGap            = 40.0
)

// sourceExcerptLen bounds the raw value preview stored on created nodes.
const sourceExcerptLen = 140

// Result is the outcome of one materialization pass.
type Result struct {
	// CreatedNodes are the nodes created this pass, in creation order.
	CreatedNodes []*graph.Node
	// Logs are human-readable lines describing the pass.
	Logs []string
	// AggregatedText is the merged text content of the pass, whether or not
	// it became its own node. Callers append it to their step output.
	AggregatedText string
	// Skipped counts artifacts dropped as duplicates.
	Skipped int
}

// Materializer turns extracted artifacts into persisted nodes and edges,
// deduplicating against prior output of the same pipeline.
type Materializer struct {
	store  storage.Service
	assets asset.Service

	// inflight serializes concurrent materialization of the same provider
	// job: a second caller for an in-flight job id awaits and shares the
	// first caller's result instead of re-processing.
	inflight singleflight.Group
}

// NewMaterializer creates a materializer over the given collaborators.
func NewMaterializer(store storage.Service, assets asset.Service) *Materializer {
	return &Materializer{store: store, assets: assets}
}

// MaterializeResponse extracts artifacts from a raw provider response and
// materializes them, counting extractor-suppressed duplicate URLs as skips.
func (m *Materializer) MaterializeResponse(ctx context.Context, projectID string, source *graph.Node, raw any, jobID string) (*Result, error) {
	artifacts, suppressed := extractWithStats(raw)
	return m.materializeWithSkips(ctx, projectID, source, artifacts, jobID, suppressed)
}

// Materialize deduplicates artifacts against the downstream graph state and
// creates nodes and edges for the genuinely new ones.
func (m *Materializer) Materialize(ctx context.Context, projectID string, source *graph.Node, artifacts []Artifact, jobID string) (*Result, error) {
	return m.materializeWithSkips(ctx, projectID, source, artifacts, jobID, 0)
}

func (m *Materializer) materializeWithSkips(ctx context.Context, projectID string, source *graph.Node, artifacts []Artifact, jobID string, priorSkips int) (*Result, error) {
	if jobID == "" {
		return m.materialize(ctx, projectID, source, artifacts, priorSkips, "")
	}
	v, err, _ := m.inflight.Do(jobID, func() (any, error) {
		defer m.inflight.Forget(jobID)
		return m.materialize(ctx, projectID, source, artifacts, priorSkips, jobID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (m *Materializer) materialize(ctx context.Context, projectID string, source *graph.Node, artifacts []Artifact, priorSkips int, jobID string) (*Result, error) {
	// Partition into text and media.
	var textArtifacts, mediaArtifacts []Artifact
	for _, a := range artifacts {
		if a.Kind == KindText {
			textArtifacts = append(textArtifacts, a)
		} else {
			mediaArtifacts = append(mediaArtifacts, a)
		}
	}

	aggregated := aggregateText(textArtifacts)

	index, err := m.buildDedupIndex(ctx, projectID, source, jobID)
	if err != nil {
		return nil, fmt.Errorf("build dedup index: %w", err)
	}

	result := &Result{AggregatedText: aggregated, Skipped: priorSkips}
	usedIDs := make(map[string]struct{})

	for i, a := range mediaArtifacts {
		id := deterministicID(jobID, source.ID, i, a.Value)
		if reason, dup := index.duplicate(id, a.Value, usedIDs); dup {
			result.Skipped++
			result.Logs = append(result.Logs, fmt.Sprintf("duplicate skipped: %s artifact (%s)", a.Kind, reason))
			log.Debugf("materialize: skipping duplicate %s artifact for node %s: %s", a.Kind, source.ID, reason)
			continue
		}
		node, err := m.createMediaNode(ctx, projectID, source, a, id, jobID, len(result.CreatedNodes))
		if err != nil {
			return nil, err
		}
		usedIDs[id] = struct{}{}
		index.register(node)
		result.CreatedNodes = append(result.CreatedNodes, node)
	}

	// The aggregated text is offered as a trailing summary first; it only
	// becomes its own node when it is not a duplicate of existing content.
	// The check runs twice, before and after the summary line is built, so
	// the text node dedups correctly whether or not media artifacts were
	// created in the same pass.
	textIsNew := aggregated != "" && !index.textDuplicate(aggregated)

	result.Logs = append(result.Logs, summaryLine(result.CreatedNodes, result.Skipped, jobID))

	if textIsNew && !index.textDuplicate(aggregated) {
		id := deterministicID(jobID, source.ID, len(mediaArtifacts), aggregated)
		if _, used := usedIDs[id]; !used {
			node, err := m.createTextNode(ctx, projectID, source, aggregated, id, jobID, len(result.CreatedNodes))
			if err != nil {
				return nil, err
			}
			usedIDs[id] = struct{}{}
			index.register(node)
			result.CreatedNodes = append(result.CreatedNodes, node)
			result.Logs = append(result.Logs, "created 1 text node from aggregated output")
		}
	} else if aggregated != "" && !textIsNew {
		result.Skipped++
		result.Logs = append(result.Logs, "duplicate skipped: text artifact (matches existing content)")
	}

	return result, nil
}

// aggregateText merges text artifacts in order, dropping exact duplicates.
func aggregateText(artifacts []Artifact) string {
	seen := make(map[string]struct{}, len(artifacts))
	var parts []string
	for _, a := range artifacts {
		if _, dup := seen[a.Value]; dup {
			continue
		}
		seen[a.Value] = struct{}{}
		parts = append(parts, a.Value)
	}
	return strings.Join(parts, "\n\n")
}

// deterministicID computes the job-scoped identity of one artifact, falling
// back to a signature-derived per-node id when no job id is available.
func deterministicID(jobID, sourceID string, index int, value string) string {
	if jobID != "" {
		return fmt.Sprintf("%s_%d", jobID, index)
	}
	return fmt.Sprintf("art_%s_%s", sourceID, Signature(value)[:12])
}

// dedupIndex registers prior pipeline output downstream of one source node,
// scoped so artifacts from a different job id or source node never collide.
type dedupIndex struct {
	ids        map[string]struct{}
	signatures map[string]struct{}
	links      map[string]struct{}
	texts      map[string]struct{}
}

// buildDedupIndex walks every node downstream of source and registers the
// ones previously produced by this pipeline for this source (and, when a
// job id is given, this job).
func (m *Materializer) buildDedupIndex(ctx context.Context, projectID string, source *graph.Node, jobID string) (*dedupIndex, error) {
	index := &dedupIndex{
		ids:        make(map[string]struct{}),
		signatures: make(map[string]struct{}),
		links:      make(map[string]struct{}),
		texts:      make(map[string]struct{}),
	}

	nodes, err := m.store.ListNodes(ctx, projectID)
	if err != nil {
		return nil, err
	}
	edges, err := m.store.ListEdges(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*graph.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	outgoing := make(map[string][]string)
	for _, e := range edges {
		outgoing[e.From] = append(outgoing[e.From], e.To)
	}

	// Forward BFS from source over the whole downstream cone: collection
	// shapes route artifacts through an intermediate folder node, so direct
	// successors are not enough.
	seen := map[string]struct{}{source.ID: {}}
	frontier := []string{source.ID}
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			for _, to := range outgoing[id] {
				if _, dup := seen[to]; dup {
					continue
				}
				seen[to] = struct{}{}
				next = append(next, to)
				node, ok := byID[to]
				if !ok || node.Metadata == nil {
					continue
				}
				if node.Metadata.SourceNodeID != source.ID {
					continue
				}
				if jobID != "" && node.Metadata.SourceJobID != "" && node.Metadata.SourceJobID != jobID {
					continue
				}
				index.register(node)
			}
		}
		frontier = next
	}
	return index, nil
}

// register adds one pipeline-produced node's identity, signature, link
// variants and text content to the index.
func (i *dedupIndex) register(node *graph.Node) {
	i.ids[node.ID] = struct{}{}
	meta := node.Metadata
	if meta != nil {
		if meta.ArtifactSignature != "" {
			i.signatures[meta.ArtifactSignature] = struct{}{}
		}
		for _, link := range []string{meta.ImageURL, meta.VideoURL, meta.SourceURL} {
			if link != "" {
				i.links[link] = struct{}{}
			}
		}
	}
	if node.Type == graph.NodeTypeText {
		i.texts[node.Content] = struct{}{}
	} else if node.Content != "" {
		i.links[node.Content] = struct{}{}
	}
}

// duplicate reports whether an artifact with the given id and raw value was
// already materialized, and why.
func (i *dedupIndex) duplicate(id, value string, usedIDs map[string]struct{}) (string, bool) {
	if _, ok := usedIDs[id]; ok {
		return "id already used in this pass", true
	}
	if _, ok := i.ids[id]; ok {
		return "existing node carries this id", true
	}
	if _, ok := i.signatures[Signature(value)]; ok {
		return "content signature matches existing node", true
	}
	if _, ok := i.links[value]; ok {
		return "link matches existing node", true
	}
	return "", false
}

// textDuplicate reports whether the aggregated text already exists
// downstream.
func (i *dedupIndex) textDuplicate(text string) bool {
	if _, ok := i.texts[text]; ok {
		return true
	}
	_, ok := i.signatures[Signature(text)]
	return ok
}

func (m *Materializer) createMediaNode(ctx context.Context, projectID string, source *graph.Node, a Artifact, id, jobID string, ordinal int) (*graph.Node, error) {
	stored, err := m.assets.Save(ctx, projectID, a.Value)
	if err != nil {
		return nil, fmt.Errorf("save %s asset: %w", a.Kind, err)
	}

	meta := &graph.Metadata{
		Title:             a.Title,
		ArtifactSignature: Signature(a.Value),
		SourceJobID:       jobID,
		SourceNodeID:      source.ID,
		SourceExcerpt:     excerpt(a.Value),
	}
	nodeType := graph.NodeTypeImage
	if a.Kind == KindVideo {
		nodeType = graph.NodeTypeVideo
		meta.VideoURL = stored.PublicURL
	} else {
		meta.ImageURL = stored.PublicURL
	}
	if stored.PublicURL != a.Value {
		meta.SourceURL = a.Value
		if len(meta.SourceURL) > sourceExcerptLen {
			// Data URIs are huge; the excerpt is enough for discovery.
			meta.SourceURL = ""
		}
	}

	node := &graph.Node{
		ID:       id,
		Type:     nodeType,
		Content:  stored.PublicURL,
		Metadata: meta,
		Position: stackedPosition(source, ordinal),
		Width:    defaultNodeWidth,
		Height:   defaultNodeHeight,
	}
	return m.store.CreateNodeWithEdge(ctx, projectID, node, &graph.Edge{
		From:  source.ID,
		Label: graph.EdgeLabelArtifact,
	})
}

func (m *Materializer) createTextNode(ctx context.Context, projectID string, source *graph.Node, text, id, jobID string, ordinal int) (*graph.Node, error) {
	node := &graph.Node{
		ID:      id,
		Type:    graph.NodeTypeText,
		Content: text,
		Metadata: &graph.Metadata{
			ArtifactSignature: Signature(text),
			SourceJobID:       jobID,
			SourceNodeID:      source.ID,
			SourceExcerpt:     excerpt(text),
		},
		Position: stackedPosition(source, ordinal),
		Width:    defaultNodeWidth,
		Height:   defaultNodeHeight,
	}
	return m.store.CreateNodeWithEdge(ctx, projectID, node, &graph.Edge{
		From:  source.ID,
		Label: graph.EdgeLabelArtifact,
	})
}

// stackedPosition places the ordinal-th created node to the right of the
// source, stacked vertically by creation order.
func stackedPosition(source *graph.Node, ordinal int) graph.Point {
	width := source.Width
	if width == 0 {
		width = defaultNodeWidth
	}
	return graph.Point{
		X: source.Position.X + width + columnGap,
		Y: source.Position.Y + float64(ordinal)*(defaultNodeHeight+rowGap),
	}
}

// summaryLine builds the human-readable pass summary with per-type counts.
func summaryLine(created []*graph.Node, skipped int, jobID string) string {
	counts := make(map[graph.NodeType]int)
	var order []graph.NodeType
	for _, n := range created {
		if counts[n.Type] == 0 {
			order = append(order, n.Type)
		}
		counts[n.Type]++
	}

	var parts []string
	for _, t := range order {
		parts = append(parts, fmt.Sprintf("%d %s %s", counts[t], t, pluralize("node", counts[t])))
	}
	var b strings.Builder
	if len(parts) == 0 {
		b.WriteString("created no nodes")
	} else {
		b.WriteString("created " + strings.Join(parts, ", "))
	}
	if skipped > 0 {
		fmt.Fprintf(&b, "; skipped %d %s", skipped, pluralize("duplicate", skipped))
	}
	if jobID != "" {
		fmt.Fprintf(&b, " (job %s)", jobID)
	}
	return b.String()
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func excerpt(value string) string {
	if len(value) > sourceExcerptLen {
		return value[:sourceExcerptLen]
	}
	return value
}
