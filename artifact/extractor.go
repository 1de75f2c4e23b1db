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
	"reflect"
	"sort"
	"strings"

	"trpc.group/trpc-go/trpc-canvas-go/internal/jsonfix"
)

// contentKeys are the well-known content-bearing keys of provider response
// objects, visited first and in this order.
var contentKeys = []string{
	"output", "url", "urls", "text", "content", "result",
	"data", "image", "video", "message", "caption",
}

// workItem is one pending value on the extraction worklist.
type workItem struct {
	value any
	title string
}

// Extract flattens an arbitrary provider response value into typed
// artifacts. The traversal is an explicit worklist, not recursion, so
// pathological response depth cannot blow the stack; an identity set over
// maps and slices guards shared substructure and cycles. Duplicate URL-like
// values are suppressed within one call, duplicate text is kept for the
// materializer to settle against downstream state.
func Extract(raw any) []Artifact {
	artifacts, _ := extractWithStats(raw)
	return artifacts
}

// extractWithStats additionally reports how many duplicate URL-like values
// were suppressed, so the materialization pipeline can count them as skips.
func extractWithStats(raw any) ([]Artifact, int) {
	var (
		out        []Artifact
		suppressed int
		seenURLs   = make(map[string]struct{})
		visited    = make(map[uintptr]struct{})
	)

	stack := []workItem{{value: raw}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := item.value.(type) {
		case nil:
			// Nothing to do.
		case string:
			a, ok, dup := extractString(v, item.title, seenURLs, &stack)
			if dup {
				suppressed++
			}
			if ok {
				out = append(out, a)
			}
		case []string:
			stack = pushStrings(stack, v, item.title)
		case []any:
			if joined, ok := tokenStream(v); ok {
				stack = append(stack, workItem{value: joined, title: item.title})
				continue
			}
			if revisited(visited, v) {
				continue
			}
			// Reverse push keeps element visit order.
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, workItem{value: v[i], title: item.title})
			}
		case map[string]any:
			if revisited(visited, v) {
				continue
			}
			stack = pushMap(stack, v, item.title)
		default:
			// Numbers, booleans and other scalars carry no artifact
			// content.
		}
	}
	return out, suppressed
}

// extractString handles one string value: structured strings are re-queued
// for traversal, URL-like strings become media artifacts, everything else
// becomes text. The third result reports a suppressed duplicate URL.
func extractString(s, title string, seenURLs map[string]struct{}, stack *[]workItem) (Artifact, bool, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Artifact{}, false, false
	}
	if jsonfix.LooksStructured(trimmed) {
		var parsed any
		if err := jsonfix.Parse(trimmed, &parsed); err == nil {
			switch parsed.(type) {
			case map[string]any, []any:
				*stack = append(*stack, workItem{value: parsed, title: title})
				return Artifact{}, false, false
			}
		}
		// Unparseable but braces-shaped content is still text.
	}
	if isURLLike(trimmed) {
		if _, dup := seenURLs[trimmed]; dup {
			return Artifact{}, false, true
		}
		seenURLs[trimmed] = struct{}{}
		return Artifact{Kind: classifyURL(trimmed), Value: trimmed, Title: title}, true, false
	}
	return Artifact{Kind: KindText, Value: trimmed, Title: title}, true, false
}

// pushStrings queues a []string, concatenating it first when it looks like a
// streamed token sequence.
func pushStrings(stack []workItem, values []string, title string) []workItem {
	urlLike := false
	for _, s := range values {
		if isURLLike(strings.TrimSpace(s)) {
			urlLike = true
			break
		}
	}
	if !urlLike {
		return append(stack, workItem{value: strings.Join(values, ""), title: title})
	}
	for i := len(values) - 1; i >= 0; i-- {
		stack = append(stack, workItem{value: values[i], title: title})
	}
	return stack
}

// tokenStream reports whether values is a pure string slice with no
// URL-like member, returning the concatenation. Providers that stream
// generation token-by-token produce exactly this shape.
func tokenStream(values []any) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return "", false
		}
		if isURLLike(strings.TrimSpace(s)) {
			return "", false
		}
		b.WriteString(s)
	}
	return b.String(), true
}

// pushMap queues a map's values: well-known content keys first in priority
// order, then every remaining key in sorted order so provider-specific
// nesting is not missed. A sibling "title" string labels artifacts found in
// this object.
func pushMap(stack []workItem, m map[string]any, title string) []workItem {
	if t, ok := m["title"].(string); ok && t != "" {
		title = t
	}

	consumed := map[string]struct{}{"title": {}}
	var ordered []workItem
	for _, key := range contentKeys {
		if v, ok := m[key]; ok {
			consumed[key] = struct{}{}
			ordered = append(ordered, workItem{value: v, title: title})
		}
	}

	var rest []string
	for key := range m {
		if _, ok := consumed[key]; ok {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		ordered = append(ordered, workItem{value: m[key], title: title})
	}

	for i := len(ordered) - 1; i >= 0; i-- {
		stack = append(stack, ordered[i])
	}
	return stack
}

// revisited records container identity and reports prior visits.
func revisited(visited map[uintptr]struct{}, v any) bool {
	ptr := reflect.ValueOf(v).Pointer()
	if _, ok := visited[ptr]; ok {
		return true
	}
	visited[ptr] = struct{}{}
	return false
}
