//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package jsonfix cleans up the common ways generative providers mangle JSON
// replies: markdown code fences around the document, // and /* */ comments,
// and trailing commas before a closing brace or bracket. It does not attempt
// full repair of arbitrarily broken documents.
package jsonfix

import (
	"encoding/json"
	"strings"
)

// Clean strips fences, comments and trailing commas from input and returns
// the cleaned document. The result is not guaranteed to be valid JSON; use
// Parse when a decoded value is wanted.
func Clean(input string) string {
	s := stripFences(strings.TrimSpace(input))
	s = stripCommentsAndTrailingCommas(s)
	return strings.TrimSpace(s)
}

// Parse cleans input and unmarshals it.
func Parse(input string, v any) error {
	return json.Unmarshal([]byte(Clean(input)), v)
}

// LooksStructured reports whether input plausibly contains a JSON object or
// array, before any cleanup.
func LooksStructured(input string) bool {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(stripFences(s))
	}
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// stripFences removes a leading ```lang line and the matching trailing
// fence. Content without fences passes through untouched.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	rest := s[3:]
	// Drop an optional language tag up to the first newline.
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		return s
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// stripCommentsAndTrailingCommas walks the document once, honoring string
// boundaries, removing // and /* */ comments, and dropping commas that
// directly precede a closing brace or bracket.
func stripCommentsAndTrailingCommas(s string) string {
	var out []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out = append(out, c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				out = append(out, '\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++ // skip the trailing '/'
		case c == ',':
			// Look ahead past whitespace; drop the comma when the next
			// significant byte closes a container.
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
