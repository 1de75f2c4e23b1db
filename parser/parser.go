//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package parser turns upstream textual content into a structured
// extraction: the document title, the normalized plain text and the
// outbound links. The result is validated before it is returned.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrSchemaValidation reports an extraction that does not conform to the
// result schema. Callers treat it as a permanent failure.
var ErrSchemaValidation = errors.New("parser: extraction failed schema validation")

// Extraction is the structured result of parsing one document.
type Extraction struct {
	Title string   `json:"title" validate:"required"`
	Text  string   `json:"text" validate:"required"`
	Links []string `json:"links,omitempty" validate:"dive,required"`
}

// Format renders the extraction back as a small markdown document.
func (e *Extraction) Format() string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(e.Title)
	b.WriteString("\n\n")
	b.WriteString(e.Text)
	if len(e.Links) > 0 {
		b.WriteString("\n\nLinks:\n")
		for _, link := range e.Links {
			b.WriteString("- ")
			b.WriteString(link)
			b.WriteString("\n")
		}
	}
	return b.String()
}

var validate = validator.New()

// Parse extracts title, normalized text and outbound links from markdown
// content. The first heading becomes the title; text is whitespace
// normalized; links keep document order with duplicates removed.
func Parse(content string) (*Extraction, error) {
	source := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var (
		extraction Extraction
		textParts  []string
		seenLinks  = make(map[string]struct{})
	)

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if extraction.Title == "" {
				extraction.Title = nodeText(node, source)
				return ast.WalkSkipChildren, nil
			}
		case *ast.Link:
			dest := string(node.Destination)
			if _, ok := seenLinks[dest]; !ok && dest != "" {
				seenLinks[dest] = struct{}{}
				extraction.Links = append(extraction.Links, dest)
			}
		case *ast.AutoLink:
			dest := string(node.URL(source))
			if _, ok := seenLinks[dest]; !ok && dest != "" {
				seenLinks[dest] = struct{}{}
				extraction.Links = append(extraction.Links, dest)
			}
		case *ast.Text:
			textParts = append(textParts, string(node.Segment.Value(source)))
		case *ast.String:
			textParts = append(textParts, string(node.Value))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk document: %w", err)
	}

	extraction.Text = strings.Join(strings.Fields(strings.Join(textParts, " ")), " ")

	if err := validate.Struct(&extraction); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaValidation, err)
	}
	return &extraction, nil
}

// nodeText collects the plain text under one node.
func nodeText(n ast.Node, source []byte) string {
	var parts []string
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := child.(type) {
		case *ast.Text:
			parts = append(parts, string(node.Segment.Value(source)))
		case *ast.String:
			parts = append(parts, string(node.Value))
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
