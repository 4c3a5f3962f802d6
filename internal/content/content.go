// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content derives plain-text facts from markdown post bodies:
// listing descriptions, word counts and reading time.
package content

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	// DescriptionLength is the length of generated descriptions, in runes.
	DescriptionLength = 160

	// WordsPerMinute is the reading speed used for ReadingTime.
	WordsPerMinute = 200
)

var (
	markdown = goldmark.New()
	// Descriptions never carry markup.
	stripPolicy = bluemonday.StrictPolicy()
)

// PlainText renders markdown to a single line of plain text.
// Code blocks, images and raw HTML are dropped.
func PlainText(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(source))
		}
		return ast.WalkContinue, nil
	})

	plain := html.UnescapeString(stripPolicy.Sanitize(b.String()))
	return strings.Join(strings.Fields(plain), " ")
}

// Summarize returns at most maxLen runes of the post's plain text, cut at a
// word boundary and marked with an ellipsis when shortened.
func Summarize(src string, maxLen int) string {
	plain := PlainText(src)
	if maxLen <= 0 || utf8.RuneCountInString(plain) <= maxLen {
		return plain
	}

	runes := []rune(plain)[:maxLen-1]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:-") + "…"
}

// Describe returns a listing description generated from the body.
func Describe(src string) string {
	return Summarize(src, DescriptionLength)
}

// WordCount counts the words of the rendered plain text.
func WordCount(src string) int {
	return len(strings.Fields(PlainText(src)))
}

// ReadingTime estimates minutes to read the body; never less than one.
func ReadingTime(src string) int {
	words := WordCount(src)
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
